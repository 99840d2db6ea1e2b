package compute

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

func TestResolveMemoryTypeFirstMatchWins(t *testing.T) {
	types := []hal.MemoryType{
		{HeapIndex: 0, Flags: hal.MemoryDeviceLocal},
		{HeapIndex: 1, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent},
		{HeapIndex: 1, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent | hal.MemoryHostCached},
	}
	heaps := []hal.MemoryHeap{{Size: 2 << 30}, {Size: 1 << 30}}

	index, err := ResolveMemoryType(types, heaps, MemoryRequirement{
		Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent,
		Size:  128 * 1024,
	})
	if err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if index != 1 {
		t.Errorf("expected first matching index 1, got %d", index)
	}
}

func TestResolveMemoryTypeSupersetQualifies(t *testing.T) {
	// Extra property bits on the type must not disqualify it.
	types := []hal.MemoryType{
		{HeapIndex: 0, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent | hal.MemoryHostCached},
	}
	heaps := []hal.MemoryHeap{{Size: 1 << 30}}

	index, err := ResolveMemoryType(types, heaps, MemoryRequirement{
		Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent,
		Size:  1024,
	})
	if err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if index != 0 {
		t.Errorf("expected index 0, got %d", index)
	}
}

func TestResolveMemoryTypeHeapTooSmall(t *testing.T) {
	types := []hal.MemoryType{
		{HeapIndex: 0, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent},
		{HeapIndex: 1, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent},
	}
	heaps := []hal.MemoryHeap{{Size: 1024}, {Size: 1 << 30}}

	index, err := ResolveMemoryType(types, heaps, MemoryRequirement{
		Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent,
		Size:  1 << 20,
	})
	if err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if index != 1 {
		t.Errorf("expected the type on the larger heap, got %d", index)
	}
}

func TestResolveMemoryTypeNoMatch(t *testing.T) {
	types := []hal.MemoryType{
		{HeapIndex: 0, Flags: hal.MemoryDeviceLocal},
	}
	heaps := []hal.MemoryHeap{{Size: 1 << 30}}

	_, err := ResolveMemoryType(types, heaps, MemoryRequirement{
		Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent,
		Size:  1024,
	})
	if !errors.Is(err, core.ErrSuitability) {
		t.Errorf("expected suitability error, got %v", err)
	}
}

func TestResolveMemoryTypeSkipsDanglingHeap(t *testing.T) {
	types := []hal.MemoryType{
		{HeapIndex: 7, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent},
		{HeapIndex: 0, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent},
	}
	heaps := []hal.MemoryHeap{{Size: 1 << 30}}

	index, err := ResolveMemoryType(types, heaps, MemoryRequirement{
		Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent,
		Size:  1024,
	})
	if err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if index != 1 {
		t.Errorf("expected the type with a valid heap, got %d", index)
	}
}
