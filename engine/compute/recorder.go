package compute

import (
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// The dispatch issues one workgroup per element, so the shader's local
// workgroup size in x must be exactly 1 for the element-to-invocation
// mapping to hold. This is the explicit half of the contract with the
// shader binary; the binary's half cannot be verified here.
const requiredLocalSizeX = 1

// RecordCommands allocates a command pool on the selected queue family,
// takes one primary command buffer from it and records the whole
// sequence in a single pass: begin (one-shot), bind pipeline, bind
// descriptor set, dispatch, end. The recording is sealed afterwards.
func RecordCommands(dev hal.Device, lc *Lifecycle, queueFamilyIndex uint32, pipeline *Pipeline, set hal.DescriptorSet, elementCount uint32) (hal.CommandBuffer, error) {
	pool, err := dev.CreateCommandPool(queueFamilyIndex)
	if err != nil {
		return nil, core.DriverError(err, "unable to create command pool")
	}
	lc.PushDestroy("command pool", func() { dev.DestroyCommandPool(pool) })

	cb, err := dev.AllocateCommandBuffer(pool)
	if err != nil {
		return nil, core.DriverError(err, "unable to allocate command buffer")
	}

	if err := cb.Begin(true); err != nil {
		return nil, core.DriverError(err, "unable to begin command buffer")
	}
	cb.BindPipeline(pipeline.Handle)
	cb.BindDescriptorSet(pipeline.Layout, set)
	cb.Dispatch(elementCount/requiredLocalSizeX, 1, 1)
	if err := cb.End(); err != nil {
		return nil, core.DriverError(err, "unable to end command buffer")
	}

	return cb, nil
}
