package wire

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"
)

// Encode serialises a Record as a msgpack fixarray: [tag, field...]
// (spec.md §4.2: "array header of length N followed by an unsigned
// integer tag ... and N-1 typed fields"). Using tinylib/msgp's
// low-level Writer at the array/int/bool primitive level reproduces
// exactly the framing original_source/src/msgpack.c hand-rolls in C,
// without generating per-type marshalers we don't need.
func Encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	mw := msgp.NewWriter(&buf)

	switch r := rec.(type) {
	case DisplayUpdate:
		if err := mw.WriteArrayHeader(5); err != nil {
			return nil, err
		}
		if err := writeTag(mw, TagDisplayUpdate); err != nil {
			return nil, err
		}
		for _, v := range []int32{r.X, r.Y, r.W, r.H} {
			if err := mw.WriteInt32(v); err != nil {
				return nil, err
			}
		}
	case DisplaySwitch:
		if err := mw.WriteArrayHeader(4); err != nil {
			return nil, err
		}
		if err := writeTag(mw, TagDisplaySwitch); err != nil {
			return nil, err
		}
		for _, v := range []int32{r.Format, r.W, r.H} {
			if err := mw.WriteInt32(v); err != nil {
				return nil, err
			}
		}
	case MouseEvent:
		if err := mw.WriteArrayHeader(4); err != nil {
			return nil, err
		}
		if err := writeTag(mw, TagMouseEvent); err != nil {
			return nil, err
		}
		for _, v := range []uint32{r.X, r.Y, r.Flags} {
			if err := mw.WriteUint32(v); err != nil {
				return nil, err
			}
		}
	case KeyboardEvent:
		if err := mw.WriteArrayHeader(3); err != nil {
			return nil, err
		}
		if err := writeTag(mw, TagKeyboardEvent); err != nil {
			return nil, err
		}
		for _, v := range []uint32{r.Keycode, r.Flags} {
			if err := mw.WriteUint32(v); err != nil {
				return nil, err
			}
		}
	case UpdateAck:
		if err := mw.WriteArrayHeader(2); err != nil {
			return nil, err
		}
		if err := writeTag(mw, TagUpdateAck); err != nil {
			return nil, err
		}
		if err := mw.WriteBool(r.Success); err != nil {
			return nil, err
		}
	case Shutdown:
		if err := mw.WriteArrayHeader(1); err != nil {
			return nil, err
		}
		if err := writeTag(mw, TagShutdown); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("wire: encode: unsupported record type %T", rec)
	}

	if err := mw.Flush(); err != nil {
		return nil, errors.Wrap(err, "wire: flush")
	}
	return buf.Bytes(), nil
}

func writeTag(mw *msgp.Writer, t Tag) error {
	return mw.WriteUint8(uint8(t))
}

// Decode reads one self-describing record off the wire. Corrupt
// framing or an unknown tag is returned as an error for the caller
// (the Main I/O Thread) to log and drop, per spec.md §4.2/§7 — Decode
// itself never logs, so it stays testable in isolation.
func Decode(data []byte) (Record, error) {
	mr := msgp.NewReader(bytes.NewReader(data))

	sz, err := mr.ReadArrayHeader()
	if err != nil {
		return nil, errors.Wrap(err, "wire: read array header")
	}
	if sz == 0 {
		return nil, errors.New("wire: empty record")
	}

	tagU, err := mr.ReadUint8()
	if err != nil {
		return nil, errors.Wrap(err, "wire: read tag")
	}
	tag := Tag(tagU)

	switch tag {
	case TagDisplayUpdate:
		if sz != 5 {
			return nil, fmt.Errorf("wire: %s: expected 5 elements, got %d", tag, sz)
		}
		vals, err := readInt32s(mr, 4)
		if err != nil {
			return nil, err
		}
		return DisplayUpdate{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil

	case TagDisplaySwitch:
		if sz != 4 {
			return nil, fmt.Errorf("wire: %s: expected 4 elements, got %d", tag, sz)
		}
		vals, err := readInt32s(mr, 3)
		if err != nil {
			return nil, err
		}
		return DisplaySwitch{Format: vals[0], W: vals[1], H: vals[2]}, nil

	case TagMouseEvent:
		if sz != 4 {
			return nil, fmt.Errorf("wire: %s: expected 4 elements, got %d", tag, sz)
		}
		vals, err := readUint32s(mr, 3)
		if err != nil {
			return nil, err
		}
		return MouseEvent{X: vals[0], Y: vals[1], Flags: vals[2]}, nil

	case TagKeyboardEvent:
		if sz != 3 {
			return nil, fmt.Errorf("wire: %s: expected 3 elements, got %d", tag, sz)
		}
		vals, err := readUint32s(mr, 2)
		if err != nil {
			return nil, err
		}
		return KeyboardEvent{Keycode: vals[0], Flags: vals[1]}, nil

	case TagUpdateAck:
		if sz != 2 {
			return nil, fmt.Errorf("wire: %s: expected 2 elements, got %d", tag, sz)
		}
		ok, err := mr.ReadBool()
		if err != nil {
			return nil, err
		}
		return UpdateAck{Success: ok}, nil

	case TagShutdown:
		if sz != 1 {
			return nil, fmt.Errorf("wire: %s: expected 1 element, got %d", tag, sz)
		}
		return Shutdown{}, nil

	default:
		return nil, fmt.Errorf("wire: unknown tag %d", tagU)
	}
}

func readInt32s(mr *msgp.Reader, n int) ([]int32, error) {
	out := make([]int32, n)
	for i := range out {
		v, err := mr.ReadInt32()
		if err != nil {
			return nil, errors.Wrapf(err, "wire: read int32 field %d", i)
		}
		out[i] = v
	}
	return out, nil
}

func readUint32s(mr *msgp.Reader, n int) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := mr.ReadUint32()
		if err != nil {
			return nil, errors.Wrapf(err, "wire: read uint32 field %d", i)
		}
		out[i] = v
	}
	return out, nil
}
