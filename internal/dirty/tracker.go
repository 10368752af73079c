// Package dirty implements the Dirty-Region Tracker (spec.md §4.5):
// coalesces incoming rectangles into a single bounding box per refresh
// tick. It is lock-free with respect to the refresh path — callers
// must invoke Update only from the emulator's display-callback thread
// (serial invocation assumed, per spec.md §4.5).
package dirty

// Rect is an inclusive-exclusive pixel rectangle: [X1,X2) x [Y1,Y2).
type Rect struct {
	X1, Y1, X2, Y2 int32
}

// Tracker coalesces update(x,y,w,h) calls into a single Rect, lattice-
// union style (spec.md §8, property 1).
type Tracker struct {
	rect Rect
	set  bool
}

// Update folds a new dirty rectangle (x, y, w, h in pixels) into the
// tracker's current bounding box.
func (t *Tracker) Update(x, y, w, h int32) {
	x2, y2 := x+w, y+h
	if !t.set {
		t.rect = Rect{X1: x, Y1: y, X2: x2, Y2: y2}
		t.set = true
		return
	}
	t.rect.X1 = min32(t.rect.X1, x)
	t.rect.Y1 = min32(t.rect.Y1, y)
	t.rect.X2 = max32(t.rect.X2, x2)
	t.rect.Y2 = max32(t.rect.Y2, y2)
}

// Take returns the current bounding box and clears it, reporting false
// if nothing is dirty (spec.md §4.6 step 1: "if dirty is empty, return").
func (t *Tracker) Take() (Rect, bool) {
	if !t.set {
		return Rect{}, false
	}
	r := t.rect
	t.rect = Rect{}
	t.set = false
	return r, true
}

// Peek reports the current rectangle without clearing it (used by
// internal/refresh.Engine.Refresh, tests and diagnostics).
func (t *Tracker) Peek() (Rect, bool) {
	return t.rect, t.set
}

// Empty reports whether nothing is currently dirty.
func (t *Tracker) Empty() bool { return !t.set }

// Reset clears the tracker without returning the rect, used once a
// caller has already Peek'd the rect and committed to consuming it
// (internal/refresh.Engine.Refresh, once the strip copy into shared
// memory has succeeded, just before publishing the rect).
func (t *Tracker) Reset() {
	t.rect = Rect{}
	t.set = false
}

// Union merges two rects the same min/max way Update folds a new
// rectangle in — used by the Refresh Engine to merge a second dirty
// batch into an already-published `out` rect (spec.md §4.6 step 6).
func Union(a, b Rect) Rect {
	return Rect{
		X1: min32(a.X1, b.X1),
		Y1: min32(a.Y1, b.Y1),
		X2: max32(a.X2, b.X2),
		Y2: max32(a.Y2, b.Y2),
	}
}

// Align rounds r to the 16-pixel tile grid and clamps to the surface
// bounds (spec.md §4.6 step 4): x1 floors to the grid, x2 ceils to it,
// then both axes clamp to [0, width]/[0, height].
func Align(r Rect, grid, width, height int32) Rect {
	out := Rect{
		X1: r.X1 - mod32(r.X1, grid),
		Y1: r.Y1 - mod32(r.Y1, grid),
		X2: ceilTo(r.X2, grid),
		Y2: ceilTo(r.Y2, grid),
	}
	if out.X2 > width {
		out.X2 = width
	}
	if out.Y2 > height {
		out.Y2 = height
	}
	if out.X1 < 0 {
		out.X1 = 0
	}
	if out.Y1 < 0 {
		out.Y1 = 0
	}
	return out
}

func mod32(v, grid int32) int32 {
	m := v % grid
	if m < 0 {
		m += grid
	}
	return m
}

func ceilTo(v, grid int32) int32 {
	rem := mod32(v, grid)
	if rem == 0 {
		return v
	}
	return v + (grid - rem)
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
