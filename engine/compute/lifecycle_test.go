package compute

import (
	"errors"
	"testing"
)

func TestLifecycleUnwindsInReverse(t *testing.T) {
	lc := NewLifecycle()
	var order []string

	lc.PushDestroy("memory", func() { order = append(order, "memory") })
	lc.PushDestroy("buffer", func() { order = append(order, "buffer") })
	lc.PushDestroy("pipeline", func() { order = append(order, "pipeline") })

	if lc.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", lc.Depth())
	}
	lc.Unwind()

	want := []string{"pipeline", "buffer", "memory"}
	if len(order) != len(want) {
		t.Fatalf("expected %d teardowns, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("teardown %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestLifecycleFailureDoesNotStopUnwind(t *testing.T) {
	lc := NewLifecycle()
	var order []string

	lc.PushDestroy("memory", func() { order = append(order, "memory") })
	lc.Push("device", func() error {
		order = append(order, "device")
		return errors.New("device busy")
	})
	lc.PushDestroy("fence", func() { order = append(order, "fence") })

	lc.Unwind()

	if len(order) != 3 {
		t.Fatalf("expected every teardown to run, got %d of 3", len(order))
	}
	if order[0] != "fence" || order[1] != "device" || order[2] != "memory" {
		t.Errorf("unexpected order: %v", order)
	}
}

func TestLifecycleUnwindIsIdempotent(t *testing.T) {
	lc := NewLifecycle()
	calls := 0

	lc.PushDestroy("fence", func() { calls++ })
	lc.Unwind()
	lc.Unwind()

	if calls != 1 {
		t.Errorf("expected a single teardown call, got %d", calls)
	}
	if lc.Depth() != 0 {
		t.Errorf("expected empty stack, got depth %d", lc.Depth())
	}
}

func TestLifecycleEmptyUnwind(t *testing.T) {
	NewLifecycle().Unwind()
}
