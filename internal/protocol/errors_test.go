package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	if !IsKnownCode("") {
		t.Fatalf("empty code should be known")
	}
	if !IsKnownCode(ErrSlotMismatch) {
		t.Fatalf("%s should be known", ErrSlotMismatch)
	}
	if IsKnownCode("E_NOPE") {
		t.Fatalf("E_NOPE should be unknown")
	}
}

func TestDistanceTo(t *testing.T) {
	a := Vec3i{X: 0, Y: 7, Z: 0}
	b := Vec3i{X: 3, Y: 0, Z: 4}
	if d := a.DistanceTo(b); d != 5 {
		t.Fatalf("DistanceTo=%v, want 5 (Y must not contribute)", d)
	}
}
