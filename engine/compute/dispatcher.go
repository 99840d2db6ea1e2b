package compute

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/magma/engine/config"
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// RunResult is everything a completed dispatch reports back.
type RunResult struct {
	ID               uuid.UUID
	DeviceName       string
	VendorID         uint32
	DeviceID         uint32
	QueueFamilyIndex uint32
	MemoryTypeIndex  uint32
	Output           []float32
	Verified         bool
	SetupMS          float64
	ExecuteMS        float64
	ReadbackMS       float64
}

// Dispatcher drives the full setup-and-execute sequence against one
// driver. The validation toggle is an explicit constructor parameter;
// callers default it, not the build mode.
type Dispatcher struct {
	driver     hal.Driver
	cfg        *config.Config
	validation bool
}

func NewDispatcher(driver hal.Driver, cfg *config.Config, validation bool) *Dispatcher {
	return &Dispatcher{
		driver:     driver,
		cfg:        cfg,
		validation: validation,
	}
}

func (d *Dispatcher) policy() SelectionPolicy {
	return SelectionPolicy{
		FirstDevice: d.cfg.Device.FirstDevice,
		DeviceID:    d.cfg.Device.DeviceID,
	}
}

// Run executes one dispatch over the provided shader binary and reads
// the results back. Teardown of every handle created before a failure
// still runs, in exact reverse creation order.
func (d *Dispatcher) Run(shaderBinary []byte) (result *RunResult, err error) {
	lc := NewLifecycle()
	defer lc.Unwind()

	elementCount := d.cfg.Execution.ElementCount
	timeout := time.Duration(d.cfg.Execution.TimeoutMS) * time.Millisecond

	result = &RunResult{ID: uuid.New()}
	core.LogInfo("[%s] starting dispatch of %d elements on driver '%s'",
		result.ID, elementCount, d.driver.Name())

	clock := core.NewClock()
	clock.Start()

	// Shader validation is independent of any device state; fail before
	// touching the driver.
	unit, err := LoadShader(shaderBinary, d.cfg.Shader.EntryPoint)
	if err != nil {
		return nil, err
	}

	instance, err := d.driver.Open(hal.Options{
		AppName:    "magma-compute",
		Validation: d.validation,
	})
	if err != nil {
		return nil, err
	}
	lc.Push("instance", instance.Destroy)

	infos, err := instance.EnumerateDevices()
	if err != nil {
		return nil, core.DriverError(err, "unable to enumerate devices")
	}

	info, caps, err := SelectDevice(infos, d.policy())
	if err != nil {
		return nil, err
	}
	result.DeviceName = info.Name
	result.VendorID = info.VendorID
	result.DeviceID = info.DeviceID
	result.QueueFamilyIndex = caps.ComputeQueueFamily

	dev, err := instance.OpenDevice(info, caps)
	if err != nil {
		return nil, core.DriverError(err, "unable to open device '%s'", info.Name)
	}
	lc.Push("device", dev.Destroy)

	memoryTypeIndex, err := ResolveMemoryType(info.MemoryTypes, info.MemoryHeaps, MemoryRequirement{
		Flags: hal.MemoryHostVisible | hal.MemoryHostCoherent,
		Size:  2 * uint64(elementCount) * bytesPerElement,
	})
	if err != nil {
		return nil, err
	}
	result.MemoryTypeIndex = memoryTypeIndex
	core.LogInfo("[%s] selected compute queue family %d and memory type %d",
		result.ID, caps.ComputeQueueFamily, memoryTypeIndex)

	resources, err := BindResources(dev, lc, memoryTypeIndex, elementCount)
	if err != nil {
		return nil, err
	}
	if err := resources.Populate(dev, elementCount); err != nil {
		return nil, err
	}

	pipeline, err := BuildPipeline(dev, lc, unit, resources.Layout)
	if err != nil {
		return nil, err
	}

	cb, err := RecordCommands(dev, lc, caps.ComputeQueueFamily, pipeline, resources.Set, elementCount)
	if err != nil {
		return nil, err
	}

	executor, err := NewExecutor(dev, lc, timeout)
	if err != nil {
		return nil, err
	}

	clock.Update()
	result.SetupMS = clock.ElapsedMS()
	core.MetricsRecordPhase(core.PhaseSetup, result.SetupMS)

	clock.Start()
	if err := executor.Submit(caps.ComputeQueueFamily, cb); err != nil {
		return nil, err
	}
	if err := executor.Wait(); err != nil {
		return nil, err
	}
	clock.Update()
	result.ExecuteMS = clock.ElapsedMS()
	core.MetricsRecordPhase(core.PhaseExecute, result.ExecuteMS)

	clock.Start()
	output, err := resources.Readback(dev, elementCount)
	if err != nil {
		return nil, err
	}
	clock.Update()
	result.ReadbackMS = clock.ElapsedMS()
	core.MetricsRecordPhase(core.PhaseReadback, result.ReadbackMS)

	result.Output = output
	result.Verified = verifyOutput(output)
	core.MetricsDispatchCompleted()

	core.LogInfo("[%s] dispatch complete: verified=%t setup=%.2fms execute=%.2fms readback=%.2fms",
		result.ID, result.Verified, result.SetupMS, result.ExecuteMS, result.ReadbackMS)
	return result, nil
}

// verifyOutput checks the round-trip property: the input held i * 0.5,
// the shader doubles it, so round(output[i]) must equal i.
func verifyOutput(output []float32) bool {
	for i, v := range output {
		if math.Round(float64(v)) != float64(i) {
			core.LogError("verification failed at index %d: got %f", i, v)
			return false
		}
	}
	return true
}
