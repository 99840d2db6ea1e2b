package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/magma/engine/hal"
)

type commandBufferState int

const (
	commandBufferStateReady commandBufferState = iota
	commandBufferStateRecording
	commandBufferStateRecordingEnded
	commandBufferStateSubmitted
)

// commandBuffer implements hal.CommandBuffer over a primary Vulkan
// command buffer.
type commandBuffer struct {
	device *device
	handle vk.CommandBuffer
	state  commandBufferState
}

func (cb *commandBuffer) Begin(oneTimeSubmit bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if res := vk.BeginCommandBuffer(cb.handle, &beginInfo); res != vk.Success {
		return resultErr("vkBeginCommandBuffer", res)
	}
	cb.state = commandBufferStateRecording
	return nil
}

func (cb *commandBuffer) BindPipeline(pipeline hal.Pipeline) {
	cb.device.mu.Lock()
	handle, ok := cb.device.pipelines[pipeline]
	cb.device.mu.Unlock()
	if !ok {
		return
	}
	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointCompute, handle)
}

func (cb *commandBuffer) BindDescriptorSet(layout hal.PipelineLayout, set hal.DescriptorSet) {
	cb.device.mu.Lock()
	layoutHandle, okLayout := cb.device.pipeLayouts[layout]
	setHandle, okSet := cb.device.sets[set]
	cb.device.mu.Unlock()
	if !okLayout || !okSet {
		return
	}
	vk.CmdBindDescriptorSets(cb.handle, vk.PipelineBindPointCompute, layoutHandle,
		0, 1, []vk.DescriptorSet{setHandle}, 0, nil)
}

func (cb *commandBuffer) Dispatch(groupsX, groupsY, groupsZ uint32) {
	vk.CmdDispatch(cb.handle, groupsX, groupsY, groupsZ)
}

func (cb *commandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return resultErr("vkEndCommandBuffer", res)
	}
	cb.state = commandBufferStateRecordingEnded
	return nil
}
