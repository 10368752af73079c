package dirty_test

import (
	"math/rand"
	"testing"

	"github.com/rdpmux/rdpmux/internal/dirty"
)

// Coalescing is a lattice union: the emitted rectangle is the
// componentwise min/max of all updates regardless of call order
// (spec.md §8, property 1; scenario S1).
func TestCoalesceIsPermutationInvariant(t *testing.T) {
	type upd struct{ x, y, w, h int32 }
	updates := []upd{
		{10, 10, 5, 5},
		{100, 200, 10, 10},
		{7, 400, 1, 1},
	}

	var want dirty.Rect
	{
		var tr dirty.Tracker
		for _, u := range updates {
			tr.Update(u.x, u.y, u.w, u.h)
		}
		r, ok := tr.Take()
		if !ok {
			t.Fatal("expected dirty rect")
		}
		want = dirty.Align(r, 16, 4096, 2048)
	}

	for trial := 0; trial < 20; trial++ {
		perm := append([]upd(nil), updates...)
		rand.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		var tr dirty.Tracker
		for _, u := range perm {
			tr.Update(u.x, u.y, u.w, u.h)
		}
		r, ok := tr.Take()
		if !ok {
			t.Fatal("expected dirty rect")
		}
		got := dirty.Align(r, 16, 4096, 2048)
		if got != want {
			t.Fatalf("permutation %d: got %+v, want %+v", trial, got, want)
		}
	}
}

// S1: update(10,10,5,5), update(100,200,10,10) -> pre-alignment
// (10,10)-(110,210); after 16-alignment (0,0)-(112,224).
func TestScenarioS1(t *testing.T) {
	var tr dirty.Tracker
	tr.Update(10, 10, 5, 5)
	tr.Update(100, 200, 10, 10)

	r, ok := tr.Take()
	if !ok {
		t.Fatal("expected dirty rect")
	}
	if r != (dirty.Rect{X1: 10, Y1: 10, X2: 110, Y2: 210}) {
		t.Fatalf("pre-alignment rect: got %+v", r)
	}

	aligned := dirty.Align(r, 16, 4096, 2048)
	if aligned != (dirty.Rect{X1: 0, Y1: 0, X2: 112, Y2: 224}) {
		t.Fatalf("aligned rect: got %+v", aligned)
	}
}

func TestTakeOnEmptyReturnsFalse(t *testing.T) {
	var tr dirty.Tracker
	if _, ok := tr.Take(); ok {
		t.Fatal("expected ok=false on empty tracker")
	}
	if !tr.Empty() {
		t.Fatal("expected Empty()==true")
	}
}

func TestAlignClampsToSurface(t *testing.T) {
	r := dirty.Rect{X1: 4090, Y1: 2040, X2: 4096, Y2: 2048}
	got := dirty.Align(r, 16, 4096, 2048)
	if got.X2 != 4096 || got.Y2 != 2048 {
		t.Fatalf("expected clamp to surface bounds, got %+v", got)
	}
}
