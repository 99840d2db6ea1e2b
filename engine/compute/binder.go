package compute

import (
	"encoding/binary"
	"math"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// BufferView is a typed byte range carved out of a MemoryBlock. Offset
// and Size are carried independently so readback stays correct even
// for unequal buffer pairs.
type BufferView struct {
	Buffer hal.Buffer
	Offset uint64
	Size   uint64
}

// Resources is the bound object graph for one dispatch: one memory
// block, two non-overlapping buffer views and the descriptor plumbing
// describing them to the shader.
type Resources struct {
	Memory          hal.Memory
	MemoryTypeIndex uint32
	Input           BufferView
	Output          BufferView
	Layout          hal.DescriptorLayout
	Pool            hal.DescriptorPool
	Set             hal.DescriptorSet
}

// BindResources allocates one memory block sized for both buffers,
// carves the input view at offset 0 and the output view right behind
// it, and builds the descriptor layout the shader sees: binding 0 the
// input, binding 1 the output, storage buffers, compute stage only.
// Every created handle is pushed onto the lifecycle stack.
func BindResources(dev hal.Device, lc *Lifecycle, memoryTypeIndex, elementCount uint32) (*Resources, error) {
	viewSize := uint64(elementCount) * bytesPerElement
	totalSize := 2 * viewSize

	mem, err := dev.AllocateMemory(totalSize, memoryTypeIndex)
	if err != nil {
		return nil, core.DriverError(err, "unable to allocate %d bytes of device memory", totalSize)
	}
	lc.PushDestroy("device memory", func() { dev.FreeMemory(mem) })

	res := &Resources{
		Memory:          mem,
		MemoryTypeIndex: memoryTypeIndex,
		Input:           BufferView{Offset: 0, Size: viewSize},
		Output:          BufferView{Offset: viewSize, Size: viewSize},
	}

	for _, view := range []*BufferView{&res.Input, &res.Output} {
		buf, err := dev.CreateBuffer(view.Size, hal.BufferUsageStorage)
		if err != nil {
			return nil, core.DriverError(err, "unable to create storage buffer")
		}
		view.Buffer = buf
		lc.PushDestroy("buffer", func() { dev.DestroyBuffer(buf) })
		if err := dev.BindBufferMemory(buf, mem, view.Offset); err != nil {
			return nil, core.DriverError(err, "unable to bind buffer at offset %d", view.Offset)
		}
	}

	layout, err := dev.CreateDescriptorLayout([]hal.DescriptorBinding{
		{Binding: 0, Type: hal.DescriptorStorageBuffer, Stages: hal.ShaderStageCompute},
		{Binding: 1, Type: hal.DescriptorStorageBuffer, Stages: hal.ShaderStageCompute},
	})
	if err != nil {
		return nil, core.DriverError(err, "unable to create descriptor layout")
	}
	res.Layout = layout
	lc.PushDestroy("descriptor layout", func() { dev.DestroyDescriptorLayout(layout) })

	pool, err := dev.CreateDescriptorPool(1)
	if err != nil {
		return nil, core.DriverError(err, "unable to create descriptor pool")
	}
	res.Pool = pool
	lc.PushDestroy("descriptor pool", func() { dev.DestroyDescriptorPool(pool) })

	set, err := dev.AllocateDescriptorSet(pool, layout)
	if err != nil {
		return nil, core.DriverError(err, "unable to allocate descriptor set")
	}
	res.Set = set

	writes := []hal.DescriptorWrite{
		{Binding: 0, Type: hal.DescriptorStorageBuffer, Buffer: res.Input.Buffer, Offset: 0, Range: res.Input.Size},
		{Binding: 1, Type: hal.DescriptorStorageBuffer, Buffer: res.Output.Buffer, Offset: 0, Range: res.Output.Size},
	}
	if err := dev.UpdateDescriptorSet(set, writes); err != nil {
		return nil, core.DriverError(err, "unable to update descriptor set")
	}

	return res, nil
}

// Populate writes value[i] = i * 0.5 into the input view through a
// mapped range, then unmaps. Must complete before submission; the
// map/unmap pair ordered before submit is the only synchronization
// this transfer needs.
func (r *Resources) Populate(dev hal.Device, elementCount uint32) error {
	mapped, err := dev.MapMemory(r.Memory, r.Input.Offset, r.Input.Size)
	if err != nil {
		return core.DriverError(err, "unable to map input buffer")
	}
	for i := uint32(0); i < elementCount; i++ {
		binary.LittleEndian.PutUint32(mapped[i*4:], math.Float32bits(float32(i)*0.5))
	}
	dev.UnmapMemory(r.Memory)
	return nil
}

// Readback maps the output view at its own offset for its own size and
// copies the floats out. Calling this before the completion fence has
// signaled is a correctness violation; the caller owns that ordering.
func (r *Resources) Readback(dev hal.Device, elementCount uint32) ([]float32, error) {
	mapped, err := dev.MapMemory(r.Memory, r.Output.Offset, r.Output.Size)
	if err != nil {
		return nil, core.DriverError(err, "unable to map output buffer")
	}
	results := make([]float32, elementCount)
	for i := uint32(0); i < elementCount; i++ {
		results[i] = math.Float32frombits(binary.LittleEndian.Uint32(mapped[i*4:]))
	}
	dev.UnmapMemory(r.Memory)
	return results, nil
}
