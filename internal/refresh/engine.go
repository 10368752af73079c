// Package refresh implements the Refresh Engine (spec.md §4.6) and the
// frame-lock/ack handshake (FrameSync, shared with the Output Thread
// in internal/ioloop).
package refresh

import (
	"github.com/pkg/errors"

	"github.com/rdpmux/rdpmux/internal/dirty"
	"github.com/rdpmux/rdpmux/internal/nlog"
	"github.com/rdpmux/rdpmux/internal/rdpcfg"
	"github.com/rdpmux/rdpmux/internal/shm"
)

// FrameSurface is an immutable snapshot of the emulator's backing
// buffer for the duration of one refresh tick (spec.md §3). The
// library borrows Data read-only; it must not be retained past Refresh.
type FrameSurface struct {
	Data          []byte
	Width, Height int32
	Format        int32
	Stride        int32
	Bpp           int32
}

// Engine runs the Dirty-Region Tracker and the copy-to-shared-memory
// step of the refresh tick. It is only ever driven from the emulator's
// calling goroutine (spec.md §4.5/§5): Update and Refresh need no
// mutex between themselves, only FrameSync's frame lock when touching
// `out` and the shared region.
type Engine struct {
	cfg     *rdpcfg.Config
	tracker dirty.Tracker
	sync    *FrameSync
	shm     *shm.Frame
	metrics *Metrics
	gen     uint32
}

func NewEngine(cfg *rdpcfg.Config, fs *FrameSync, metrics *Metrics) *Engine {
	return &Engine{cfg: cfg, sync: fs, metrics: metrics}
}

// Update folds a dirty-rectangle notification into the tracker
// (spec.md §4.5 / public API `display_update`).
func (e *Engine) Update(x, y, w, h int32) {
	e.tracker.Update(x, y, w, h)
	e.metrics.FramesCoalesced.Inc()
}

// SetSharedFrame installs the shared-memory region to copy into, and
// bumps the generation counter (spec.md §4.4: "created once on first
// display switch... subsequent switches reuse the mapping").
func (e *Engine) SetSharedFrame(f *shm.Frame) {
	e.shm = f
	e.gen++
}

// Refresh executes spec.md §4.6 steps 1-7. It returns (published,
// err): published is false on the two no-op paths (nothing dirty,
// S2; or the frame lock is held, S3) and true once a rect has been
// copied into shared memory and merged into `out`.
func (e *Engine) Refresh(surface FrameSurface) (bool, error) {
	rect, ok := e.tracker.Peek()
	if !ok {
		return false, nil // step 1: dirty is empty, deferred
	}

	if !e.sync.TryLock() {
		e.metrics.RefreshSkipped.Inc()
		return false, nil // step 2: contention, back-pressure, dirty retained
	}
	defer e.sync.Unlock()

	if e.shm == nil {
		return false, errors.New("refresh: no shared frame attached; display_switch must run first")
	}

	aligned := dirty.Align(rect, e.cfg.AlignPixels, surface.Width, surface.Height) // step 4

	// step 5: source and destination strides are equal and the strip is
	// full-width, so the copy collapses to one contiguous memcpy of
	// stride*h bytes starting at line y1. The aligned x1/x2 are kept in
	// the metadata (the rect we publish) for downstream tile encoders
	// even though the strip itself spans the full width.
	if aligned.Y2 > aligned.Y1 {
		offset := int64(aligned.Y1) * int64(surface.Stride)
		length := int64(aligned.Y2-aligned.Y1) * int64(surface.Stride)
		if offset+length > int64(len(surface.Data)) {
			return false, errors.New("refresh: strip exceeds surface bounds")
		}
		if err := e.shm.WriteStrip(offset, surface.Data[offset:offset+length]); err != nil {
			return false, errors.Wrap(err, "refresh: write strip")
		}
		e.shm.StampGeneration(e.gen, surface.Width, surface.Height, surface.Format)
	}

	e.tracker.Reset()
	e.sync.PublishLocked(aligned) // step 6
	e.metrics.FramesPublished.Inc()
	nlog.Infof("refresh: published %+v (gen=%d)", aligned, e.gen)
	return true, nil // step 7: UpdateCond signalled by PublishLocked, lock released by defer
}
