package compute

import (
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// MemoryRequirement asks for a memory pool with the given property
// flags and at least size bytes of heap capacity behind it.
type MemoryRequirement struct {
	Flags hal.MemoryPropertyFlags
	Size  uint64
}

// ResolveMemoryType scans the memory types in driver-reported order and
// returns the index of the first one whose flags are a superset of the
// requirement and whose owning heap is large enough. First match wins;
// the order must not be re-sorted.
func ResolveMemoryType(types []hal.MemoryType, heaps []hal.MemoryHeap, req MemoryRequirement) (uint32, error) {
	for i, mt := range types {
		if !mt.Flags.Contains(req.Flags) {
			continue
		}
		if int(mt.HeapIndex) >= len(heaps) {
			core.LogWarn("memory type %d references unknown heap %d, skipping", i, mt.HeapIndex)
			continue
		}
		if heaps[mt.HeapIndex].Size < req.Size {
			continue
		}
		return uint32(i), nil
	}
	return 0, core.SuitabilityError("no suitable memory type")
}
