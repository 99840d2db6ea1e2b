// Package soft is an in-process hal.Driver with real execution
// semantics: byte-addressed memory, descriptor tables and a queue
// goroutine running registered kernels. It backs tests and machines
// without a GPU driver.
package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/magma/engine/hal"
)

const DriverName = "soft"

// Kernel executes one dispatch over the byte views bound at each
// descriptor binding slot.
type Kernel func(bindings map[uint32][]byte, groupsX, groupsY, groupsZ uint32)

// DoubleFloats is the stock kernel: binding 1 receives binding 0 with
// every 32-bit float doubled. It matches the compute contract of the
// shipped double.comp shader, local workgroup size 1.
func DoubleFloats(bindings map[uint32][]byte, groupsX, _, _ uint32) {
	in := bindings[0]
	out := bindings[1]
	n := int(groupsX)
	if max := len(in) / 4; n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(in[i*4:]))
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v*2))
	}
}

type Option func(*Driver)

// WithDevices replaces the synthetic device list reported by
// enumeration.
func WithDevices(infos ...hal.DeviceInfo) Option {
	return func(d *Driver) {
		d.devices = infos
	}
}

// WithKernel registers a kernel under a shader entry point name.
func WithKernel(entryPoint string, k Kernel) Option {
	return func(d *Driver) {
		d.kernels[entryPoint] = k
	}
}

// WithSilentQueue makes the queue accept submissions but never signal
// their fences.
func WithSilentQueue() Option {
	return func(d *Driver) {
		d.silentQueue = true
	}
}

// WithFailure injects an error returned by the named device operation,
// e.g. "AllocateMemory".
func WithFailure(op string, err error) Option {
	return func(d *Driver) {
		d.failures[op] = err
	}
}

// Driver implements hal.Driver.
type Driver struct {
	devices     []hal.DeviceInfo
	kernels     map[string]Kernel
	failures    map[string]error
	silentQueue bool
	journal     Journal
}

func New(opts ...Option) *Driver {
	d := &Driver{
		devices:  []hal.DeviceInfo{defaultDevice()},
		kernels:  map[string]Kernel{"main": DoubleFloats},
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func init() {
	hal.Register(New())
}

func (d *Driver) Name() string { return DriverName }

func (d *Driver) Open(opts hal.Options) (hal.Instance, error) {
	inst := &instance{driver: d, id: 1}
	d.journal.record(ActionCreate, "instance", inst.id)
	return inst, nil
}

// Journal exposes the lifecycle record of everything created through
// this driver.
func (d *Driver) Journal() *Journal {
	return &d.journal
}

func defaultDevice() hal.DeviceInfo {
	return hal.DeviceInfo{
		Index:    0,
		VendorID: 0x1234,
		DeviceID: 0x0001,
		Name:     "soft compute device",
		QueueFamilies: []hal.QueueFamily{
			{Index: 0, Count: 1, Compute: true},
		},
		MemoryTypes: []hal.MemoryType{
			{HeapIndex: 0, Flags: hal.MemoryDeviceLocal},
			{HeapIndex: 1, Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent},
		},
		MemoryHeaps: []hal.MemoryHeap{
			{Size: 2 << 30},
			{Size: 1 << 30},
		},
	}
}

type instance struct {
	driver    *Driver
	id        uint64
	destroyed bool
}

func (in *instance) EnumerateDevices() ([]hal.DeviceInfo, error) {
	out := make([]hal.DeviceInfo, len(in.driver.devices))
	copy(out, in.driver.devices)
	return out, nil
}

func (in *instance) OpenDevice(info hal.DeviceInfo, caps hal.Capabilities) (hal.Device, error) {
	if info.Index < 0 || info.Index >= len(in.driver.devices) {
		return nil, fmt.Errorf("soft: no device at index %d", info.Index)
	}
	dev := newDevice(in.driver, info, caps)
	in.driver.journal.record(ActionCreate, "device", dev.id)
	return dev, nil
}

func (in *instance) Destroy() error {
	if in.destroyed {
		return fmt.Errorf("soft: instance destroyed twice")
	}
	in.destroyed = true
	in.driver.journal.record(ActionDestroy, "instance", in.id)
	return nil
}
