package rdpmux

import (
	"testing"

	"github.com/google/uuid"
)

func TestInitRejectsInvalidUUID(t *testing.T) {
	if _, err := Init("not-a-uuid", 0); err == nil {
		t.Fatal("expected error for malformed vm id")
	}
	if _, err := Init("", 0); err == nil {
		t.Fatal("expected error for empty vm id")
	}
}

func TestInitAcceptsValidUUID(t *testing.T) {
	id := uuid.New().String()
	h, err := Init(id, 42)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if h.identity != id {
		t.Fatalf("identity: got %q, want %q", h.identity, id)
	}
}
