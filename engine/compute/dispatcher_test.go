package compute

import (
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/magma/engine/config"
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal/soft"
)

// Minimal aligned blob; the soft driver treats bytecode as opaque.
var testShaderBinary = []byte{
	0x03, 0x02, 0x23, 0x07,
	0x00, 0x00, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

func softConfig(elementCount uint32) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Device.Driver = soft.DriverName
	cfg.Execution.ElementCount = elementCount
	return cfg
}

func TestDispatcherRoundTrip(t *testing.T) {
	driver := soft.New()
	d := NewDispatcher(driver, softConfig(256), false)

	result, err := d.Run(testShaderBinary)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if !result.Verified {
		t.Error("expected output verification to pass")
	}
	if len(result.Output) != 256 {
		t.Fatalf("expected 256 results, got %d", len(result.Output))
	}
	for _, i := range []int{0, 1, 100, 255} {
		if result.Output[i] != float32(i) {
			t.Errorf("output[%d]: expected %d, got %f", i, i, result.Output[i])
		}
	}
	if result.DeviceName != "soft compute device" {
		t.Errorf("unexpected device name %q", result.DeviceName)
	}
	if result.QueueFamilyIndex != 0 {
		t.Errorf("expected queue family 0, got %d", result.QueueFamilyIndex)
	}
	// Soft device reports a device-local type first, host-visible second.
	if result.MemoryTypeIndex != 1 {
		t.Errorf("expected memory type 1, got %d", result.MemoryTypeIndex)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	driver := soft.New(soft.WithSilentQueue())
	cfg := softConfig(16)
	cfg.Execution.TimeoutMS = 50
	d := NewDispatcher(driver, cfg, false)

	start := time.Now()
	_, err := d.Run(testShaderBinary)
	elapsed := time.Since(start)

	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("wait was not bounded: took %s", elapsed)
	}
	assertReverseTeardown(t, driver.Journal().Events())
}

func TestDispatcherTeardownOrder(t *testing.T) {
	driver := soft.New()
	d := NewDispatcher(driver, softConfig(16), false)

	if _, err := d.Run(testShaderBinary); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	assertReverseTeardown(t, driver.Journal().Events())
}

func TestDispatcherPartialFailureUnwinds(t *testing.T) {
	driver := soft.New(soft.WithFailure("CreateComputePipeline", errors.New("incompatible shader")))
	d := NewDispatcher(driver, softConfig(16), false)

	_, err := d.Run(testShaderBinary)
	if !errors.Is(err, core.ErrPipelineBuild) {
		t.Fatalf("expected pipeline build error, got %v", err)
	}
	assertReverseTeardown(t, driver.Journal().Events())
}

func TestDispatcherAllocationFailureUnwinds(t *testing.T) {
	driver := soft.New(soft.WithFailure("AllocateMemory", errors.New("device heap exhausted")))
	d := NewDispatcher(driver, softConfig(16), false)

	_, err := d.Run(testShaderBinary)
	if !errors.Is(err, core.ErrDriver) {
		t.Fatalf("expected driver error, got %v", err)
	}
	assertReverseTeardown(t, driver.Journal().Events())
}

func TestDispatcherNoDevices(t *testing.T) {
	driver := soft.New(soft.WithDevices())
	d := NewDispatcher(driver, softConfig(16), false)

	_, err := d.Run(testShaderBinary)
	if !errors.Is(err, core.ErrSuitability) {
		t.Fatalf("expected suitability error, got %v", err)
	}
	assertReverseTeardown(t, driver.Journal().Events())
}

func TestDispatcherUnknownEntryPoint(t *testing.T) {
	driver := soft.New()
	cfg := softConfig(16)
	cfg.Shader.EntryPoint = "kmain"
	d := NewDispatcher(driver, cfg, false)

	_, err := d.Run(testShaderBinary)
	if !errors.Is(err, core.ErrPipelineBuild) {
		t.Fatalf("expected pipeline build error, got %v", err)
	}
	assertReverseTeardown(t, driver.Journal().Events())
}

func TestDispatcherMisalignedShader(t *testing.T) {
	driver := soft.New()
	d := NewDispatcher(driver, softConfig(16), false)

	_, err := d.Run(testShaderBinary[:6])
	if !errors.Is(err, core.ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	// The shader is rejected before any handle exists.
	if n := len(driver.Journal().Events()); n != 0 {
		t.Errorf("expected no driver objects, journal has %d events", n)
	}
}

func TestDispatcherCustomKernel(t *testing.T) {
	// A kernel that writes i instead of doubling breaks verification but
	// still completes the run.
	driver := soft.New(soft.WithKernel("main", func(bindings map[uint32][]byte, groupsX, _, _ uint32) {
		out := bindings[1]
		for i := range out {
			out[i] = 0
		}
	}))
	d := NewDispatcher(driver, softConfig(16), false)

	result, err := d.Run(testShaderBinary)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Verified {
		t.Error("expected verification to fail for the zeroing kernel")
	}
}

// assertReverseTeardown checks that every created object was destroyed
// and that destruction ran in exact reverse creation order.
func assertReverseTeardown(t *testing.T, events []soft.JournalEvent) {
	t.Helper()

	type object struct {
		kind string
		id   uint64
	}
	var created, destroyed []object
	for _, e := range events {
		switch e.Action {
		case soft.ActionCreate:
			created = append(created, object{e.Object, e.ID})
		case soft.ActionDestroy:
			destroyed = append(destroyed, object{e.Object, e.ID})
		}
	}

	if len(created) != len(destroyed) {
		t.Fatalf("%d objects created but %d destroyed", len(created), len(destroyed))
	}
	for i, d := range destroyed {
		c := created[len(created)-1-i]
		if c != d {
			t.Errorf("teardown %d: expected %s %d, got %s %d", i, c.kind, c.id, d.kind, d.id)
		}
	}
}
