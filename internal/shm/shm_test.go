package shm_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/rdpmux/rdpmux/internal/shm"
)

func TestOpenWriteClose(t *testing.T) {
	if _, err := os.Stat("/dev/shm"); err != nil {
		t.Skip("/dev/shm not available in this environment")
	}

	name := shm.Name(fmt.Sprintf("test-%d", os.Getpid()))
	f, err := shm.Open(name, 4096)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	payload := []byte("hello, shared frame")
	if err := f.WriteStrip(0, payload); err != nil {
		t.Fatalf("WriteStrip: %v", err)
	}
	got := f.Mapped[:len(payload)]
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}

	if err := f.WriteStrip(4096-4, []byte("abcde")); err == nil {
		t.Fatalf("expected out-of-bounds WriteStrip to error")
	}

	// The generation trailer lives past PixelSize; WriteStrip must
	// never be able to reach it.
	if err := f.WriteStrip(f.PixelSize, []byte("x")); err == nil {
		t.Fatalf("expected WriteStrip into the generation trailer to error")
	}
}

func TestStampGenerationIsDeterministic(t *testing.T) {
	if _, err := os.Stat("/dev/shm"); err != nil {
		t.Skip("/dev/shm not available in this environment")
	}
	name := shm.Name(fmt.Sprintf("test-stamp-%d", os.Getpid()))
	f, err := shm.Open(name, 4096)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	payload := []byte("pixel row zero")
	if err := f.WriteStrip(0, payload); err != nil {
		t.Fatalf("WriteStrip: %v", err)
	}

	f.StampGeneration(1, 640, 480, 1)
	a := append([]byte(nil), f.Mapped[f.PixelSize:f.PixelSize+8]...)
	f.StampGeneration(1, 640, 480, 1)
	b := f.Mapped[f.PixelSize : f.PixelSize+8]
	if string(a) != string(b) {
		t.Fatalf("expected identical checksum for identical inputs")
	}

	if string(f.Mapped[:len(payload)]) != string(payload) {
		t.Fatalf("StampGeneration must not overwrite pixel data at offset 0")
	}
}
