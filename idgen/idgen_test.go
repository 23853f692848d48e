package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Format(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id < prev {
			t.Fatalf("UUIDv7: %q sorts before earlier %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("sub_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "sub_") {
		t.Fatalf("Prefixed: %q lacks prefix", id)
	}
	if len(id) != 4+36 {
		t.Fatalf("Prefixed: unexpected length %d", len(id))
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if got != id {
		t.Fatalf("Parse round-trip: got %q, want %q", got, id)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse accepted invalid UUID")
	}
}
