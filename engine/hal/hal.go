// Package hal is the seam between the compute orchestration and the
// underlying graphics/compute driver. The vulkan adapter implements it
// against a real installation; the soft driver implements it in-process
// for tests and machines without a GPU.
package hal

import (
	"errors"
	"time"
)

// Sentinel errors adapters translate driver result codes into.
var (
	ErrTimeout        = errors.New("wait timed out")
	ErrDeviceLost     = errors.New("device lost")
	ErrNotInstalled   = errors.New("driver not installed")
	ErrNoHostMemory   = errors.New("out of host memory")
	ErrNoDeviceMemory = errors.New("out of device memory")
)

// MemoryPropertyFlags mirror the driver's memory property bits.
type MemoryPropertyFlags uint32

const (
	MemoryDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
	MemoryHostCached
)

// Contains reports whether every bit of want is set in f.
func (f MemoryPropertyFlags) Contains(want MemoryPropertyFlags) bool {
	return f&want == want
}

type BufferUsageFlags uint32

const (
	BufferUsageStorage BufferUsageFlags = 1 << iota
	BufferUsageUniform
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

type ShaderStageFlags uint32

const (
	ShaderStageCompute ShaderStageFlags = 1 << iota
)

type DescriptorType uint8

const (
	DescriptorStorageBuffer DescriptorType = iota
	DescriptorUniformBuffer
)

// Opaque handles. Adapters allocate identifiers and keep the mapping to
// their native objects internally. Zero is never a valid handle.
type (
	Memory           uint64
	Buffer           uint64
	DescriptorLayout uint64
	DescriptorPool   uint64
	DescriptorSet    uint64
	ShaderModule     uint64
	PipelineLayout   uint64
	Pipeline         uint64
	CommandPool      uint64
	Fence            uint64
)

type QueueFamily struct {
	Index   uint32
	Count   uint32
	Compute bool
}

type MemoryType struct {
	HeapIndex uint32
	Flags     MemoryPropertyFlags
}

type MemoryHeap struct {
	Size uint64
}

// DeviceInfo describes one physical device as reported by enumeration.
// The slices keep driver-reported order; resolution logic depends on it.
type DeviceInfo struct {
	Index         int
	VendorID      uint32
	DeviceID      uint32
	Name          string
	APIVersion    uint32
	QueueFamilies []QueueFamily
	MemoryTypes   []MemoryType
	MemoryHeaps   []MemoryHeap
	Extensions    []string
}

// HasComputeQueue reports whether any queue family accepts dispatches.
func (d DeviceInfo) HasComputeQueue() bool {
	for _, qf := range d.QueueFamilies {
		if qf.Compute {
			return true
		}
	}
	return false
}

// HasExtension reports whether the device advertises the named extension.
func (d DeviceInfo) HasExtension(name string) bool {
	for _, ext := range d.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// Capabilities is the table of negotiated device features, queried once
// during selection. Construction code branches on its entries instead of
// ad hoc flags.
type Capabilities struct {
	PortabilitySubset  bool
	ComputeQueueFamily uint32
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStageFlags
}

type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Offset  uint64
	Range   uint64
}

// Options configure the opening of a driver instance.
type Options struct {
	AppName    string
	Validation bool
}

// Driver is the entry point an adapter registers under its name.
type Driver interface {
	Name() string
	Open(opts Options) (Instance, error)
}

// Instance owns enumeration and logical device creation. Destroy must be
// the very last teardown call of a run.
type Instance interface {
	EnumerateDevices() ([]DeviceInfo, error)
	OpenDevice(info DeviceInfo, caps Capabilities) (Device, error)
	Destroy() error
}

// Device is the full object surface a dispatch needs. Every Create/
// Allocate call has a matching Destroy/Free call; callers own the
// ordering.
type Device interface {
	AllocateMemory(size uint64, memoryTypeIndex uint32) (Memory, error)
	FreeMemory(mem Memory)
	MapMemory(mem Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(mem Memory)

	CreateBuffer(size uint64, usage BufferUsageFlags) (Buffer, error)
	BindBufferMemory(buf Buffer, mem Memory, offset uint64) error
	DestroyBuffer(buf Buffer)

	CreateDescriptorLayout(bindings []DescriptorBinding) (DescriptorLayout, error)
	DestroyDescriptorLayout(layout DescriptorLayout)
	CreateDescriptorPool(maxSets uint32) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorLayout) (DescriptorSet, error)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite) error

	CreateShaderModule(words []uint32) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)

	CreatePipelineLayout(layout DescriptorLayout) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateComputePipeline(module ShaderModule, entryPoint string, layout PipelineLayout) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)

	CreateCommandPool(queueFamilyIndex uint32) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error)

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	ResetFence(fence Fence) error
	// WaitForFence blocks until the fence signals or timeout elapses.
	// Returns ErrTimeout when the bound is exceeded.
	WaitForFence(fence Fence, timeout time.Duration) error

	Submit(queueFamilyIndex uint32, cb CommandBuffer, fence Fence) error

	Destroy() error
}

// CommandBuffer records a single linear command sequence. Once End
// returns, the recording is sealed.
type CommandBuffer interface {
	Begin(oneTimeSubmit bool) error
	BindPipeline(pipeline Pipeline)
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet)
	Dispatch(groupsX, groupsY, groupsZ uint32)
	End() error
}
