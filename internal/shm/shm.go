// Package shm implements the Shared Frame Buffer component
// (spec.md §4.4): a named shared-memory region sized for the maximum
// supported resolution, created once on first display switch and
// mmap'd read-write into this process for the lifetime of the session.
//
// On Linux, POSIX shared memory objects are files under /dev/shm;
// glibc's shm_open is itself implemented that way, which is the path
// golang.org/x/sys/unix (a direct teacher dependency) lets us take
// directly instead of cgo-wrapping shm_open/shm_unlink.
package shm

import (
	"fmt"
	"path/filepath"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/rdpmux/rdpmux/internal/nlog"
)

const shmDir = "/dev/shm"

// mode matches spec.md §6: "mode 0444 (created writable by the owner
// and readable by group/other)". The mode argument to a creating open
// only governs permission checks on *subsequent* opens; it does not
// revoke the write access this process already holds via O_RDWR.
const mode = 0o444

// genHeaderSize is the trailer reserved for StampGeneration, appended
// after the pixel area rather than overlaid on top of it — the
// out-of-process RDP server mmaps this region expecting raw pixel
// bytes starting at offset 0 (spec.md §3/§4.4), so the generation
// checksum cannot live inside that range without corrupting row 0 of
// every refresh that touches it.
const genHeaderSize = 8

// Frame is the mapped shared region plus the bookkeeping needed to
// unmap/unlink it cleanly.
type Frame struct {
	Name      string // "/<vm_id>.rdpmux"
	Fd        int
	Size      int64 // total mapped size: PixelSize + genHeaderSize
	PixelSize int64 // bytes available to WriteStrip, starting at offset 0
	Mapped    []byte
	path      string // filesystem path backing Name
	created   bool
}

// Name returns the well-known shared-memory object name for a VM id
// (spec.md §4.2/§6: "/<vm_id>.rdpmux").
func Name(vmID string) string {
	return "/" + vmID + ".rdpmux"
}

// Open creates (or reopens, on a subsequent display switch) the named
// shared region sized to hold pixelSize bytes of pixel data plus the
// generation trailer, and mmaps it read-write. Failures abort the
// caller's display_switch without disturbing any prior mapping
// (spec.md §4.4, §7 SHM errors).
func Open(name string, pixelSize int64) (*Frame, error) {
	path := filepath.Join(shmDir, filepath.Base(name))
	size := pixelSize + genHeaderSize

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "shm: open %s", path)
	}

	if err := unix.Ftruncate(fd, size); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "shm: truncate %s to %d", path, size)
	}

	mapped, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "shm: mmap %s", path)
	}

	nlog.Infof("shm: mapped %s (%d bytes, %d pixel) at fd=%d", name, size, pixelSize, fd)
	return &Frame{Name: name, Fd: fd, Size: size, PixelSize: pixelSize, Mapped: mapped, path: path, created: true}, nil
}

// WriteStrip copies src into the mapped region starting at byte
// offset, bounds-checked against PixelSize so it can never reach into
// the generation trailer. Used by the Refresh Engine to copy the
// aligned dirty strip under the frame lock (spec.md §4.6 step 5): a
// single contiguous memcpy, since source and destination strides are
// equal.
func (f *Frame) WriteStrip(offset int64, src []byte) error {
	if offset < 0 || offset+int64(len(src)) > f.PixelSize {
		return fmt.Errorf("shm: write out of bounds: offset=%d len=%d pixel_size=%d", offset, len(src), f.PixelSize)
	}
	copy(f.Mapped[offset:], src)
	return nil
}

// StampGeneration writes an 8-byte xxhash checksum of (generation, w,
// h, format) into the trailer just past the pixel area, letting a
// reader that opens the mapping mid-switch detect a torn or stale
// frame (spec.md §3: "avoidance of torn or stale frames across
// resolution changes" — a supplement beyond the strict wire protocol,
// since the consumer process reads this region independently of the
// ack handshake on first attach).
func (f *Frame) StampGeneration(generation uint32, w, h, format int32) {
	var buf [16]byte
	putU32(buf[0:4], generation)
	putU32(buf[4:8], uint32(w))
	putU32(buf[8:12], uint32(h))
	putU32(buf[12:16], uint32(format))
	sum := xxhash.Checksum64(buf[:])
	var out [8]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(sum >> (8 * i))
	}
	if int64(len(f.Mapped)) >= f.PixelSize+genHeaderSize {
		copy(f.Mapped[f.PixelSize:f.PixelSize+genHeaderSize], out[:])
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Close unmaps and unlinks the shared region (spec.md §4.9: teardown
// order is queue, then transport, then primitives, then memory — Close
// is the "memory" step, called last from Cleanup).
func (f *Frame) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	if f.Mapped != nil {
		if err := unix.Munmap(f.Mapped); err != nil {
			errs = append(errs, errors.Wrap(err, "shm: munmap"))
		}
		f.Mapped = nil
	}
	if f.Fd >= 0 {
		if err := unix.Close(f.Fd); err != nil {
			errs = append(errs, errors.Wrap(err, "shm: close fd"))
		}
		f.Fd = -1
	}
	if f.created && f.path != "" {
		if err := unix.Unlink(f.path); err != nil {
			errs = append(errs, errors.Wrap(err, "shm: unlink"))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Errorf("shm: close: %v", errs)
}
