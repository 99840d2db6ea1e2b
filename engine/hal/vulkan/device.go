package vulkan

import (
	"sync"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/magma/engine/hal"
)

// device implements hal.Device. Opaque hal handles are identifiers into
// the maps below; the native objects never cross the seam.
type device struct {
	logical vk.Device
	queue   vk.Queue

	mu          sync.Mutex
	nextID      uint64
	memories    map[hal.Memory]vk.DeviceMemory
	buffers     map[hal.Buffer]vk.Buffer
	layouts     map[hal.DescriptorLayout]vk.DescriptorSetLayout
	pools       map[hal.DescriptorPool]vk.DescriptorPool
	sets        map[hal.DescriptorSet]vk.DescriptorSet
	modules     map[hal.ShaderModule]vk.ShaderModule
	pipeLayouts map[hal.PipelineLayout]vk.PipelineLayout
	pipelines   map[hal.Pipeline]vk.Pipeline
	cmdPools    map[hal.CommandPool]vk.CommandPool
	fences      map[hal.Fence]vk.Fence
}

func newDevice(logical vk.Device, queue vk.Queue) *device {
	return &device{
		logical:     logical,
		queue:       queue,
		memories:    make(map[hal.Memory]vk.DeviceMemory),
		buffers:     make(map[hal.Buffer]vk.Buffer),
		layouts:     make(map[hal.DescriptorLayout]vk.DescriptorSetLayout),
		pools:       make(map[hal.DescriptorPool]vk.DescriptorPool),
		sets:        make(map[hal.DescriptorSet]vk.DescriptorSet),
		modules:     make(map[hal.ShaderModule]vk.ShaderModule),
		pipeLayouts: make(map[hal.PipelineLayout]vk.PipelineLayout),
		pipelines:   make(map[hal.Pipeline]vk.Pipeline),
		cmdPools:    make(map[hal.CommandPool]vk.CommandPool),
		fences:      make(map[hal.Fence]vk.Fence),
	}
}

func (d *device) allocID() uint64 {
	d.nextID++
	return d.nextID
}

func (d *device) AllocateMemory(size uint64, memoryTypeIndex uint32) (hal.Memory, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryTypeIndex,
	}
	var handle vk.DeviceMemory
	if res := vk.AllocateMemory(d.logical, &allocateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkAllocateMemory", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	mem := hal.Memory(d.allocID())
	d.memories[mem] = handle
	return mem, nil
}

func (d *device) FreeMemory(mem hal.Memory) {
	d.mu.Lock()
	handle, ok := d.memories[mem]
	delete(d.memories, mem)
	d.mu.Unlock()
	if ok {
		vk.FreeMemory(d.logical, handle, nil)
	}
}

func (d *device) MapMemory(mem hal.Memory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	handle, ok := d.memories[mem]
	d.mu.Unlock()
	if !ok {
		return nil, resultErr("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(d.logical, handle, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data); res != vk.Success {
		return nil, resultErr("vkMapMemory", res)
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (d *device) UnmapMemory(mem hal.Memory) {
	d.mu.Lock()
	handle, ok := d.memories[mem]
	d.mu.Unlock()
	if ok {
		vk.UnmapMemory(d.logical, handle)
	}
}

func (d *device) CreateBuffer(size uint64, usage hal.BufferUsageFlags) (hal.Buffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(d.logical, &bufferCreateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreateBuffer", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := hal.Buffer(d.allocID())
	d.buffers[buf] = handle
	return buf, nil
}

func bufferUsageFlags(usage hal.BufferUsageFlags) vk.BufferUsageFlags {
	var out vk.BufferUsageFlags
	if usage&hal.BufferUsageStorage != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if usage&hal.BufferUsageUniform != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if usage&hal.BufferUsageTransferSrc != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if usage&hal.BufferUsageTransferDst != 0 {
		out |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	return out
}

func (d *device) BindBufferMemory(buf hal.Buffer, mem hal.Memory, offset uint64) error {
	d.mu.Lock()
	bufHandle, okBuf := d.buffers[buf]
	memHandle, okMem := d.memories[mem]
	d.mu.Unlock()
	if !okBuf || !okMem {
		return resultErr("vkBindBufferMemory", vk.ErrorUnknown)
	}
	if res := vk.BindBufferMemory(d.logical, bufHandle, memHandle, vk.DeviceSize(offset)); res != vk.Success {
		return resultErr("vkBindBufferMemory", res)
	}
	return nil
}

func (d *device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	handle, ok := d.buffers[buf]
	delete(d.buffers, buf)
	d.mu.Unlock()
	if ok {
		vk.DestroyBuffer(d.logical, handle, nil)
	}
}

func (d *device) CreateDescriptorLayout(bindings []hal.DescriptorBinding) (hal.DescriptorLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, binding := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         binding.Binding,
			DescriptorType:  descriptorType(binding.Type),
			DescriptorCount: 1,
			StageFlags:      shaderStageFlags(binding.Stages),
		}
	}
	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var handle vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.logical, &layoutCreateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreateDescriptorSetLayout", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	layout := hal.DescriptorLayout(d.allocID())
	d.layouts[layout] = handle
	return layout, nil
}

func descriptorType(t hal.DescriptorType) vk.DescriptorType {
	if t == hal.DescriptorUniformBuffer {
		return vk.DescriptorTypeUniformBuffer
	}
	return vk.DescriptorTypeStorageBuffer
}

func shaderStageFlags(stages hal.ShaderStageFlags) vk.ShaderStageFlags {
	var out vk.ShaderStageFlags
	if stages&hal.ShaderStageCompute != 0 {
		out |= vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return out
}

func (d *device) DestroyDescriptorLayout(layout hal.DescriptorLayout) {
	d.mu.Lock()
	handle, ok := d.layouts[layout]
	delete(d.layouts, layout)
	d.mu.Unlock()
	if ok {
		vk.DestroyDescriptorSetLayout(d.logical, handle, nil)
	}
}

func (d *device) CreateDescriptorPool(maxSets uint32) (hal.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeStorageBuffer,
		DescriptorCount: maxSets * 2,
	}}
	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var handle vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.logical, &poolCreateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreateDescriptorPool", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := hal.DescriptorPool(d.allocID())
	d.pools[pool] = handle
	return pool, nil
}

func (d *device) DestroyDescriptorPool(pool hal.DescriptorPool) {
	d.mu.Lock()
	handle, ok := d.pools[pool]
	delete(d.pools, pool)
	d.mu.Unlock()
	if ok {
		vk.DestroyDescriptorPool(d.logical, handle, nil)
	}
}

func (d *device) AllocateDescriptorSet(pool hal.DescriptorPool, layout hal.DescriptorLayout) (hal.DescriptorSet, error) {
	d.mu.Lock()
	poolHandle, okPool := d.pools[pool]
	layoutHandle, okLayout := d.layouts[layout]
	d.mu.Unlock()
	if !okPool || !okLayout {
		return 0, resultErr("vkAllocateDescriptorSets", vk.ErrorUnknown)
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     poolHandle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layoutHandle},
	}
	var handle vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(d.logical, &allocateInfo, &handle); res != vk.Success {
		return 0, resultErr("vkAllocateDescriptorSets", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	set := hal.DescriptorSet(d.allocID())
	d.sets[set] = handle
	return set, nil
}

func (d *device) UpdateDescriptorSet(set hal.DescriptorSet, writes []hal.DescriptorWrite) error {
	d.mu.Lock()
	setHandle, ok := d.sets[set]
	if !ok {
		d.mu.Unlock()
		return resultErr("vkUpdateDescriptorSets", vk.ErrorUnknown)
	}
	descriptorWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, write := range writes {
		bufHandle, okBuf := d.buffers[write.Buffer]
		if !okBuf {
			d.mu.Unlock()
			return resultErr("vkUpdateDescriptorSets", vk.ErrorUnknown)
		}
		descriptorWrites = append(descriptorWrites, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          setHandle,
			DstBinding:      write.Binding,
			DstArrayElement: 0,
			DescriptorType:  descriptorType(write.Type),
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: bufHandle,
				Offset: vk.DeviceSize(write.Offset),
				Range:  vk.DeviceSize(write.Range),
			}},
		})
	}
	d.mu.Unlock()
	vk.UpdateDescriptorSets(d.logical, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
	return nil
}

func (d *device) CreateShaderModule(words []uint32) (hal.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(words) * 4),
		PCode:    words,
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(d.logical, &createInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreateShaderModule", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	module := hal.ShaderModule(d.allocID())
	d.modules[module] = handle
	return module, nil
}

func (d *device) DestroyShaderModule(module hal.ShaderModule) {
	d.mu.Lock()
	handle, ok := d.modules[module]
	delete(d.modules, module)
	d.mu.Unlock()
	if ok {
		vk.DestroyShaderModule(d.logical, handle, nil)
	}
}

func (d *device) CreatePipelineLayout(layout hal.DescriptorLayout) (hal.PipelineLayout, error) {
	d.mu.Lock()
	layoutHandle, ok := d.layouts[layout]
	d.mu.Unlock()
	if !ok {
		return 0, resultErr("vkCreatePipelineLayout", vk.ErrorUnknown)
	}
	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{layoutHandle},
		PushConstantRangeCount: 0,
		PPushConstantRanges:    nil,
	}
	var handle vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.logical, &layoutCreateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreatePipelineLayout", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pl := hal.PipelineLayout(d.allocID())
	d.pipeLayouts[pl] = handle
	return pl, nil
}

func (d *device) DestroyPipelineLayout(layout hal.PipelineLayout) {
	d.mu.Lock()
	handle, ok := d.pipeLayouts[layout]
	delete(d.pipeLayouts, layout)
	d.mu.Unlock()
	if ok {
		vk.DestroyPipelineLayout(d.logical, handle, nil)
	}
}

func (d *device) CreateComputePipeline(module hal.ShaderModule, entryPoint string, layout hal.PipelineLayout) (hal.Pipeline, error) {
	d.mu.Lock()
	moduleHandle, okModule := d.modules[module]
	layoutHandle, okLayout := d.pipeLayouts[layout]
	d.mu.Unlock()
	if !okModule || !okLayout {
		return 0, resultErr("vkCreateComputePipelines", vk.ErrorUnknown)
	}
	pipelineCreateInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: moduleHandle,
			PName:  VulkanSafeString(entryPoint),
		},
		Layout: layoutHandle,
	}
	pPipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(
		d.logical,
		vk.NullPipelineCache,
		1,
		[]vk.ComputePipelineCreateInfo{pipelineCreateInfo},
		nil,
		pPipelines); res != vk.Success {
		return 0, resultErr("vkCreateComputePipelines", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pipeline := hal.Pipeline(d.allocID())
	d.pipelines[pipeline] = pPipelines[0]
	return pipeline, nil
}

func (d *device) DestroyPipeline(pipeline hal.Pipeline) {
	d.mu.Lock()
	handle, ok := d.pipelines[pipeline]
	delete(d.pipelines, pipeline)
	d.mu.Unlock()
	if ok {
		vk.DestroyPipeline(d.logical, handle, nil)
	}
}

func (d *device) CreateCommandPool(queueFamilyIndex uint32) (hal.CommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamilyIndex,
	}
	var handle vk.CommandPool
	if res := vk.CreateCommandPool(d.logical, &poolCreateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreateCommandPool", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := hal.CommandPool(d.allocID())
	d.cmdPools[pool] = handle
	return pool, nil
}

func (d *device) DestroyCommandPool(pool hal.CommandPool) {
	d.mu.Lock()
	handle, ok := d.cmdPools[pool]
	delete(d.cmdPools, pool)
	d.mu.Unlock()
	if ok {
		vk.DestroyCommandPool(d.logical, handle, nil)
	}
}

func (d *device) AllocateCommandBuffer(pool hal.CommandPool) (hal.CommandBuffer, error) {
	d.mu.Lock()
	poolHandle, ok := d.cmdPools[pool]
	d.mu.Unlock()
	if !ok {
		return nil, resultErr("vkAllocateCommandBuffers", vk.ErrorUnknown)
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        poolHandle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.logical, &allocateInfo, commandBuffers); res != vk.Success {
		return nil, resultErr("vkAllocateCommandBuffers", res)
	}
	return &commandBuffer{device: d, handle: commandBuffers[0]}, nil
}

func (d *device) CreateFence(signaled bool) (hal.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if res := vk.CreateFence(d.logical, &fenceCreateInfo, nil, &handle); res != vk.Success {
		return 0, resultErr("vkCreateFence", res)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fence := hal.Fence(d.allocID())
	d.fences[fence] = handle
	return fence, nil
}

func (d *device) DestroyFence(fence hal.Fence) {
	d.mu.Lock()
	handle, ok := d.fences[fence]
	delete(d.fences, fence)
	d.mu.Unlock()
	if ok {
		vk.DestroyFence(d.logical, handle, nil)
	}
}

func (d *device) ResetFence(fence hal.Fence) error {
	d.mu.Lock()
	handle, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return resultErr("vkResetFences", vk.ErrorUnknown)
	}
	if res := vk.ResetFences(d.logical, 1, []vk.Fence{handle}); res != vk.Success {
		return resultErr("vkResetFences", res)
	}
	return nil
}

func (d *device) WaitForFence(fence hal.Fence, timeout time.Duration) error {
	d.mu.Lock()
	handle, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return resultErr("vkWaitForFences", vk.ErrorUnknown)
	}
	result := vk.WaitForFences(d.logical, 1, []vk.Fence{handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		return hal.ErrTimeout
	default:
		return resultErr("vkWaitForFences", result)
	}
}

func (d *device) Submit(queueFamilyIndex uint32, cb hal.CommandBuffer, fence hal.Fence) error {
	recording, ok := cb.(*commandBuffer)
	if !ok {
		return resultErr("vkQueueSubmit", vk.ErrorUnknown)
	}
	d.mu.Lock()
	fenceHandle, okFence := d.fences[fence]
	d.mu.Unlock()
	if !okFence {
		return resultErr("vkQueueSubmit", vk.ErrorUnknown)
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{recording.handle},
	}
	if res := vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submitInfo}, fenceHandle); res != vk.Success {
		return resultErr("vkQueueSubmit", res)
	}
	return nil
}

func (d *device) Destroy() error {
	if d.logical != nil {
		vk.DestroyDevice(d.logical, nil)
		d.logical = nil
	}
	d.queue = nil
	return nil
}
