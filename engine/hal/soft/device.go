package soft

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/magma/engine/hal"
)

type memoryBlock struct {
	data   []byte
	mapped bool
}

type bufferState struct {
	size   uint64
	usage  hal.BufferUsageFlags
	memory hal.Memory
	offset uint64
	bound  bool
}

type setState struct {
	layout hal.DescriptorLayout
	pool   hal.DescriptorPool
	writes map[uint32]hal.DescriptorWrite
}

type pipelineState struct {
	kernel     Kernel
	entryPoint string
	layout     hal.PipelineLayout
}

// device implements hal.Device over plain byte slices and maps.
type device struct {
	driver *Driver
	info   hal.DeviceInfo
	caps   hal.Capabilities
	id     uint64

	mu          sync.Mutex
	nextID      uint64
	memories    map[hal.Memory]*memoryBlock
	buffers     map[hal.Buffer]*bufferState
	layouts     map[hal.DescriptorLayout][]hal.DescriptorBinding
	pools       map[hal.DescriptorPool]uint32
	sets        map[hal.DescriptorSet]*setState
	modules     map[hal.ShaderModule][]uint32
	pipeLayouts map[hal.PipelineLayout]hal.DescriptorLayout
	pipelines   map[hal.Pipeline]*pipelineState
	cmdPools    map[hal.CommandPool]uint32
	fences      map[hal.Fence]*softFence

	queue     *softQueue
	destroyed bool
}

func newDevice(driver *Driver, info hal.DeviceInfo, caps hal.Capabilities) *device {
	d := &device{
		driver:      driver,
		info:        info,
		caps:        caps,
		id:          1,
		nextID:      1,
		memories:    make(map[hal.Memory]*memoryBlock),
		buffers:     make(map[hal.Buffer]*bufferState),
		layouts:     make(map[hal.DescriptorLayout][]hal.DescriptorBinding),
		pools:       make(map[hal.DescriptorPool]uint32),
		sets:        make(map[hal.DescriptorSet]*setState),
		modules:     make(map[hal.ShaderModule][]uint32),
		pipeLayouts: make(map[hal.PipelineLayout]hal.DescriptorLayout),
		pipelines:   make(map[hal.Pipeline]*pipelineState),
		cmdPools:    make(map[hal.CommandPool]uint32),
		fences:      make(map[hal.Fence]*softFence),
	}
	d.queue = newSoftQueue(d, driver.silentQueue)
	return d
}

func (d *device) allocID() uint64 {
	id := d.nextID + 1
	d.nextID = id
	return id
}

func (d *device) failure(op string) error {
	if err, ok := d.driver.failures[op]; ok {
		return err
	}
	return nil
}

func (d *device) AllocateMemory(size uint64, memoryTypeIndex uint32) (hal.Memory, error) {
	if err := d.failure("AllocateMemory"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(memoryTypeIndex) >= len(d.info.MemoryTypes) {
		return 0, fmt.Errorf("soft: memory type index %d out of range", memoryTypeIndex)
	}
	heap := d.info.MemoryHeaps[d.info.MemoryTypes[memoryTypeIndex].HeapIndex]
	if size > heap.Size {
		return 0, hal.ErrNoDeviceMemory
	}
	mem := hal.Memory(d.allocID())
	d.memories[mem] = &memoryBlock{data: make([]byte, size)}
	d.driver.journal.record(ActionCreate, "memory", uint64(mem))
	return mem, nil
}

func (d *device) FreeMemory(mem hal.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memories[mem]; !ok {
		return
	}
	delete(d.memories, mem)
	d.driver.journal.record(ActionDestroy, "memory", uint64(mem))
}

func (d *device) MapMemory(mem hal.Memory, offset, size uint64) ([]byte, error) {
	if err := d.failure("MapMemory"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	block, ok := d.memories[mem]
	if !ok {
		return nil, fmt.Errorf("soft: map of unknown memory %d", mem)
	}
	if block.mapped {
		return nil, fmt.Errorf("soft: memory %d already mapped", mem)
	}
	if offset+size > uint64(len(block.data)) {
		return nil, fmt.Errorf("soft: map range [%d, %d) exceeds allocation of %d bytes",
			offset, offset+size, len(block.data))
	}
	block.mapped = true
	return block.data[offset : offset+size], nil
}

func (d *device) UnmapMemory(mem hal.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if block, ok := d.memories[mem]; ok {
		block.mapped = false
	}
}

func (d *device) CreateBuffer(size uint64, usage hal.BufferUsageFlags) (hal.Buffer, error) {
	if err := d.failure("CreateBuffer"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := hal.Buffer(d.allocID())
	d.buffers[buf] = &bufferState{size: size, usage: usage}
	d.driver.journal.record(ActionCreate, "buffer", uint64(buf))
	return buf, nil
}

func (d *device) BindBufferMemory(buf hal.Buffer, mem hal.Memory, offset uint64) error {
	if err := d.failure("BindBufferMemory"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("soft: bind of unknown buffer %d", buf)
	}
	block, ok := d.memories[mem]
	if !ok {
		return fmt.Errorf("soft: bind to unknown memory %d", mem)
	}
	if state.bound {
		return fmt.Errorf("soft: buffer %d already bound", buf)
	}
	if offset+state.size > uint64(len(block.data)) {
		return fmt.Errorf("soft: buffer of %d bytes at offset %d exceeds allocation of %d bytes",
			state.size, offset, len(block.data))
	}
	state.memory = mem
	state.offset = offset
	state.bound = true
	return nil
}

func (d *device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buf]; !ok {
		return
	}
	delete(d.buffers, buf)
	d.driver.journal.record(ActionDestroy, "buffer", uint64(buf))
}

func (d *device) CreateDescriptorLayout(bindings []hal.DescriptorBinding) (hal.DescriptorLayout, error) {
	if err := d.failure("CreateDescriptorLayout"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	layout := hal.DescriptorLayout(d.allocID())
	stored := make([]hal.DescriptorBinding, len(bindings))
	copy(stored, bindings)
	d.layouts[layout] = stored
	d.driver.journal.record(ActionCreate, "descriptor_layout", uint64(layout))
	return layout, nil
}

func (d *device) DestroyDescriptorLayout(layout hal.DescriptorLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layouts[layout]; !ok {
		return
	}
	delete(d.layouts, layout)
	d.driver.journal.record(ActionDestroy, "descriptor_layout", uint64(layout))
}

func (d *device) CreateDescriptorPool(maxSets uint32) (hal.DescriptorPool, error) {
	if err := d.failure("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := hal.DescriptorPool(d.allocID())
	d.pools[pool] = maxSets
	d.driver.journal.record(ActionCreate, "descriptor_pool", uint64(pool))
	return pool, nil
}

func (d *device) DestroyDescriptorPool(pool hal.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[pool]; !ok {
		return
	}
	// Destroying the pool releases its sets, mirroring the driver rule.
	for set, state := range d.sets {
		if state.pool == pool {
			delete(d.sets, set)
		}
	}
	delete(d.pools, pool)
	d.driver.journal.record(ActionDestroy, "descriptor_pool", uint64(pool))
}

func (d *device) AllocateDescriptorSet(pool hal.DescriptorPool, layout hal.DescriptorLayout) (hal.DescriptorSet, error) {
	if err := d.failure("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[pool]; !ok {
		return 0, fmt.Errorf("soft: allocation from unknown pool %d", pool)
	}
	if _, ok := d.layouts[layout]; !ok {
		return 0, fmt.Errorf("soft: allocation with unknown layout %d", layout)
	}
	set := hal.DescriptorSet(d.allocID())
	d.sets[set] = &setState{
		layout: layout,
		pool:   pool,
		writes: make(map[uint32]hal.DescriptorWrite),
	}
	return set, nil
}

func (d *device) UpdateDescriptorSet(set hal.DescriptorSet, writes []hal.DescriptorWrite) error {
	if err := d.failure("UpdateDescriptorSet"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.sets[set]
	if !ok {
		return fmt.Errorf("soft: update of unknown descriptor set %d", set)
	}
	bindings := d.layouts[state.layout]
	for _, write := range writes {
		found := false
		for _, binding := range bindings {
			if binding.Binding == write.Binding && binding.Type == write.Type {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("soft: write to binding %d does not match layout", write.Binding)
		}
		state.writes[write.Binding] = write
	}
	return nil
}

func (d *device) CreateShaderModule(words []uint32) (hal.ShaderModule, error) {
	if err := d.failure("CreateShaderModule"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	module := hal.ShaderModule(d.allocID())
	stored := make([]uint32, len(words))
	copy(stored, words)
	d.modules[module] = stored
	d.driver.journal.record(ActionCreate, "shader_module", uint64(module))
	return module, nil
}

func (d *device) DestroyShaderModule(module hal.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.modules[module]; !ok {
		return
	}
	delete(d.modules, module)
	d.driver.journal.record(ActionDestroy, "shader_module", uint64(module))
}

func (d *device) CreatePipelineLayout(layout hal.DescriptorLayout) (hal.PipelineLayout, error) {
	if err := d.failure("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.layouts[layout]; !ok {
		return 0, fmt.Errorf("soft: pipeline layout over unknown descriptor layout %d", layout)
	}
	pl := hal.PipelineLayout(d.allocID())
	d.pipeLayouts[pl] = layout
	d.driver.journal.record(ActionCreate, "pipeline_layout", uint64(pl))
	return pl, nil
}

func (d *device) DestroyPipelineLayout(layout hal.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipeLayouts[layout]; !ok {
		return
	}
	delete(d.pipeLayouts, layout)
	d.driver.journal.record(ActionDestroy, "pipeline_layout", uint64(layout))
}

func (d *device) CreateComputePipeline(module hal.ShaderModule, entryPoint string, layout hal.PipelineLayout) (hal.Pipeline, error) {
	if err := d.failure("CreateComputePipeline"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.modules[module]; !ok {
		return 0, fmt.Errorf("soft: pipeline over unknown shader module %d", module)
	}
	if _, ok := d.pipeLayouts[layout]; !ok {
		return 0, fmt.Errorf("soft: pipeline over unknown pipeline layout %d", layout)
	}
	kernel, ok := d.driver.kernels[entryPoint]
	if !ok {
		return 0, fmt.Errorf("soft: no kernel registered for entry point %q", entryPoint)
	}
	pipeline := hal.Pipeline(d.allocID())
	d.pipelines[pipeline] = &pipelineState{
		kernel:     kernel,
		entryPoint: entryPoint,
		layout:     layout,
	}
	d.driver.journal.record(ActionCreate, "pipeline", uint64(pipeline))
	return pipeline, nil
}

func (d *device) DestroyPipeline(pipeline hal.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelines[pipeline]; !ok {
		return
	}
	delete(d.pipelines, pipeline)
	d.driver.journal.record(ActionDestroy, "pipeline", uint64(pipeline))
}

func (d *device) CreateCommandPool(queueFamilyIndex uint32) (hal.CommandPool, error) {
	if err := d.failure("CreateCommandPool"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := hal.CommandPool(d.allocID())
	d.cmdPools[pool] = queueFamilyIndex
	d.driver.journal.record(ActionCreate, "command_pool", uint64(pool))
	return pool, nil
}

func (d *device) DestroyCommandPool(pool hal.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cmdPools[pool]; !ok {
		return
	}
	delete(d.cmdPools, pool)
	d.driver.journal.record(ActionDestroy, "command_pool", uint64(pool))
}

func (d *device) AllocateCommandBuffer(pool hal.CommandPool) (hal.CommandBuffer, error) {
	if err := d.failure("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cmdPools[pool]; !ok {
		return nil, fmt.Errorf("soft: allocation from unknown command pool %d", pool)
	}
	return &commandBuffer{}, nil
}

func (d *device) CreateFence(signaled bool) (hal.Fence, error) {
	if err := d.failure("CreateFence"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fence := hal.Fence(d.allocID())
	d.fences[fence] = newSoftFence(signaled)
	d.driver.journal.record(ActionCreate, "fence", uint64(fence))
	return fence, nil
}

func (d *device) DestroyFence(fence hal.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[fence]; !ok {
		return
	}
	delete(d.fences, fence)
	d.driver.journal.record(ActionDestroy, "fence", uint64(fence))
}

func (d *device) ResetFence(fence hal.Fence) error {
	d.mu.Lock()
	f, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("soft: reset of unknown fence %d", fence)
	}
	f.reset()
	return nil
}

func (d *device) WaitForFence(fence hal.Fence, timeout time.Duration) error {
	d.mu.Lock()
	f, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("soft: wait on unknown fence %d", fence)
	}
	return f.wait(timeout)
}

func (d *device) Submit(queueFamilyIndex uint32, cb hal.CommandBuffer, fence hal.Fence) error {
	if err := d.failure("Submit"); err != nil {
		return err
	}
	recording, ok := cb.(*commandBuffer)
	if !ok {
		return fmt.Errorf("soft: submit of a foreign command buffer")
	}
	if !recording.sealed {
		return fmt.Errorf("soft: submit of an unsealed command buffer")
	}
	d.mu.Lock()
	f, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("soft: submit with unknown fence %d", fence)
	}
	return d.queue.submit(recording.ops, f)
}

func (d *device) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return fmt.Errorf("soft: device destroyed twice")
	}
	d.destroyed = true
	d.queue.shutdown()
	d.driver.journal.record(ActionDestroy, "device", d.id)
	return nil
}
