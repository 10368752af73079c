// Package wire defines the self-describing UpdateRecord variants
// exchanged between rdpmux and the RDP server process, and their
// binary framing (see codec.go).
package wire

// Tag identifies an UpdateRecord's wire type; it is the first element
// of every encoded record's array, right after the msgpack array header
// (spec.md §4.2).
type Tag uint8

const (
	TagDisplayUpdate Tag = iota
	TagDisplaySwitch
	TagKeyboardEvent
	TagMouseEvent
	TagUpdateAck
	TagShutdown
)

func (t Tag) String() string {
	switch t {
	case TagDisplayUpdate:
		return "DisplayUpdate"
	case TagDisplaySwitch:
		return "DisplaySwitch"
	case TagKeyboardEvent:
		return "KeyboardEvent"
	case TagMouseEvent:
		return "MouseEvent"
	case TagUpdateAck:
		return "UpdateAck"
	case TagShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Record is any UpdateRecord variant (spec.md §3).
type Record interface {
	Tag() Tag
}

// DisplayUpdate is a dirty-rectangle notification. On the wire it is
// carried as (x, y, w, h); internally the tracker and refresh engine
// work in (x1,y1,x2,y2) form and convert at the codec boundary
// (spec.md §4.2 Note).
type DisplayUpdate struct {
	X, Y, W, H int32
}

func (DisplayUpdate) Tag() Tag { return TagDisplayUpdate }

// DisplaySwitch announces new framebuffer geometry. ShmID is conveyed
// out-of-band (its well-known name is derivable from the VM id) and is
// not part of the wire encoding; it is populated locally for callers
// that want to log/display it.
type DisplaySwitch struct {
	Format, W, H int32
	ShmID        string
}

func (DisplaySwitch) Tag() Tag { return TagDisplaySwitch }

// KeyboardEvent is an inbound key event from the RDP server.
type KeyboardEvent struct {
	Keycode, Flags uint32
}

func (KeyboardEvent) Tag() Tag { return TagKeyboardEvent }

// MouseEvent is an inbound pointer event from the RDP server.
type MouseEvent struct {
	X, Y, Flags uint32
}

func (MouseEvent) Tag() Tag { return TagMouseEvent }

// UpdateAck is the consumer's signal that it has finished reading the
// shared memory for the most recently published DisplayUpdate/out.
type UpdateAck struct {
	Success bool
}

func (UpdateAck) Tag() Tag { return TagUpdateAck }

// Shutdown requests the main I/O and output threads wind down
// (spec.md §9, Open Question resolved: stop flag + drain + join).
type Shutdown struct{}

func (Shutdown) Tag() Tag { return TagShutdown }
