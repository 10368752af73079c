package rdpmux

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/rdpmux/rdpmux/internal/ioloop"
	"github.com/rdpmux/rdpmux/internal/refresh"
	"github.com/rdpmux/rdpmux/internal/shm"
	"github.com/rdpmux/rdpmux/internal/wire"
)

func testSurfaceFor(w, h int32) refresh.FrameSurface {
	stride := w * 4
	return refresh.FrameSurface{
		Data:   make([]byte, stride*h),
		Width:  w,
		Height: h,
		Stride: stride,
		Bpp:    4,
	}
}

// These specs exercise the cross-component properties spec.md §8
// describes as scenarios, driving a real Handle end to end rather than
// the individual package-level unit tests.
var _ = Describe("a display session", func() {
	var h *Handle
	var id string

	BeforeEach(func() {
		id = uuid.New().String()
		var err error
		h, err = Init(id, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = h.Cleanup()
		os.Remove("/dev/shm" + shm.Name(id))
	})

	// S1 — coalesce two updates, then refresh: the emitted rectangle
	// covers the union, 16-aligned and clamped to the surface.
	It("coalesces dirty updates across a refresh", func() {
		Expect(h.DisplaySwitch(0, 640, 480)).To(Succeed())

		h.DisplayUpdate(10, 10, 5, 5)
		h.DisplayUpdate(100, 200, 10, 10)

		surface := testSurfaceFor(640, 480)
		published, err := h.DisplayRefresh(surface)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(BeTrue())

		h.sync.Lock()
		rect, ok := h.sync.TakeOutLocked()
		h.sync.Unlock()
		Expect(ok).To(BeTrue())
		Expect(rect.X1).To(Equal(int32(0)))
		Expect(rect.Y1).To(Equal(int32(0)))
		Expect(rect.X2).To(Equal(int32(112)))
		Expect(rect.Y2).To(Equal(int32(224)))
	})

	// S4 — a display switch clears the outgoing queue down to exactly
	// the new DisplaySwitch record.
	It("clears the outgoing queue on a display switch", func() {
		h.queue.Enqueue(wire.DisplayUpdate{X: 0, Y: 0, W: 1, H: 1})
		h.queue.Enqueue(wire.DisplayUpdate{X: 1, Y: 1, W: 1, H: 1})

		Expect(h.DisplaySwitch(0, 800, 600)).To(Succeed())

		Expect(h.queue.Len()).To(Equal(1))
		rec, ok := h.queue.TryDequeue()
		Expect(ok).To(BeTrue())
		Expect(rec).To(Equal(wire.DisplaySwitch{Format: 0, W: 800, H: 600, ShmID: shm.Name(id)}))
	})

	// S7 — priming `out`, running the output thread, and delivering an
	// ack releases the frame lock so a subsequent refresh can proceed.
	It("releases the frame lock once an ack arrives", func() {
		Expect(h.DisplaySwitch(0, 640, 480)).To(Succeed())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go ioloop.RunOutput(ctx, h.sync, h.queue)

		h.DisplayUpdate(0, 0, 16, 16)
		surface := testSurfaceFor(640, 480)
		published, err := h.DisplayRefresh(surface)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(BeTrue())

		Eventually(func() int { return h.queue.Len() }, time.Second, time.Millisecond).Should(Equal(1))

		h.sync.Lock()
		h.sync.SignalAckLocked(true)
		h.sync.Unlock()

		Eventually(func() bool {
			if h.sync.TryLock() {
				h.sync.Unlock()
				return true
			}
			return false
		}, time.Second, time.Millisecond).Should(BeTrue())
	})
})
