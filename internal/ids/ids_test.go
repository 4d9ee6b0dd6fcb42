package ids

import "testing"

func TestNewIsSortableAndValid(t *testing.T) {
	a := New()
	b := New()
	if a >= b {
		t.Fatalf("expected monotonic ids, got %s >= %s", a, b)
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("generated ids must be valid: %s %s", a, b)
	}
	if Valid("not-an-id") {
		t.Fatalf("expected garbage to be rejected")
	}
}
