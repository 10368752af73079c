package ioloop

import "context"

// RunBufferUpdate is the vestigial third thread (spec.md §4.9, §9):
// the original design spawns three threads but the buffer-update loop
// does nothing in the current design. Retained as a stub so hosts that
// still expect three thread entry points keep working; it simply waits
// for cancellation.
func RunBufferUpdate(ctx context.Context) {
	<-ctx.Done()
}
