package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if got := Clamp(-3, 0, 10); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := Clamp(42, 0, 10); got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if got := Clamp(2.5, 1.0, 2.0); got != 2.0 {
		t.Errorf("expected 2.0, got %f", got)
	}
}

func TestAbs(t *testing.T) {
	if got := Abs(-4); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := Abs(4); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := Abs(-1.5); got != 1.5 {
		t.Errorf("expected 1.5, got %f", got)
	}
}
