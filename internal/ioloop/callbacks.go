// Package ioloop implements the Output Thread and Main I/O Thread
// (spec.md §4.7, §4.8): the two long-lived goroutines that move
// published frames onto the transport and dispatch inbound input
// events back to the host.
package ioloop

// KeyboardFunc is invoked on the main I/O thread for every decoded
// KeyboardEvent (spec.md §4.8 step 3). It must not block.
type KeyboardFunc func(keycode, flags uint32)

// MouseFunc is invoked on the main I/O thread for every decoded
// MouseEvent (spec.md §4.8 step 3). It must not block.
type MouseFunc func(x, y, flags uint32)

// Callbacks holds the two host-supplied function pointers. Set once at
// startup via RegisterCallbacks, before the I/O threads start, and read
// lock-free thereafter (spec.md §5, "Shared resources": callbacks are
// published before threads start and never mutated after).
type Callbacks struct {
	Keyboard KeyboardFunc
	Mouse    MouseFunc
}
