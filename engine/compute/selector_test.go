package compute

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

func computeDevice(name string, deviceID uint32) hal.DeviceInfo {
	return hal.DeviceInfo{
		Name:     name,
		VendorID: 0x1234,
		DeviceID: deviceID,
		QueueFamilies: []hal.QueueFamily{
			{Index: 0, Count: 1, Compute: true},
		},
	}
}

func displayOnlyDevice(name string, deviceID uint32) hal.DeviceInfo {
	return hal.DeviceInfo{
		Name:     name,
		VendorID: 0x1234,
		DeviceID: deviceID,
		QueueFamilies: []hal.QueueFamily{
			{Index: 0, Count: 1, Compute: false},
		},
	}
}

func TestSelectFirstDevice(t *testing.T) {
	infos := []hal.DeviceInfo{
		displayOnlyDevice("igpu", 0x0001),
		computeDevice("dgpu", 0x0002),
		computeDevice("second dgpu", 0x0003),
	}

	info, caps, err := SelectDevice(infos, SelectionPolicy{FirstDevice: true})
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}
	if info.Name != "dgpu" {
		t.Errorf("expected first compute-capable device, got %s", info.Name)
	}
	if caps.ComputeQueueFamily != 0 {
		t.Errorf("expected queue family 0, got %d", caps.ComputeQueueFamily)
	}
}

func TestSelectByDeviceID(t *testing.T) {
	infos := []hal.DeviceInfo{
		computeDevice("dgpu", 0x0002),
		computeDevice("second dgpu", 0x0003),
	}

	want := uint32(0x0003)
	info, _, err := SelectDevice(infos, SelectionPolicy{DeviceID: &want})
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}
	if info.Name != "second dgpu" {
		t.Errorf("expected device 0x0003, got %s", info.Name)
	}
}

func TestSelectByDeviceIDSkipsNonCompute(t *testing.T) {
	// A matching id on a device without compute queues must not win.
	want := uint32(0x0001)
	infos := []hal.DeviceInfo{
		displayOnlyDevice("igpu", 0x0001),
	}

	_, _, err := SelectDevice(infos, SelectionPolicy{DeviceID: &want})
	if !errors.Is(err, core.ErrSuitability) {
		t.Errorf("expected suitability error, got %v", err)
	}
}

func TestSelectNoSuitableDevice(t *testing.T) {
	infos := []hal.DeviceInfo{
		displayOnlyDevice("igpu", 0x0001),
	}

	_, _, err := SelectDevice(infos, SelectionPolicy{FirstDevice: true})
	if !errors.Is(err, core.ErrSuitability) {
		t.Errorf("expected suitability error, got %v", err)
	}
}

func TestSelectEmptyEnumeration(t *testing.T) {
	_, _, err := SelectDevice(nil, SelectionPolicy{FirstDevice: true})
	if !errors.Is(err, core.ErrSuitability) {
		t.Errorf("expected suitability error, got %v", err)
	}
}

func TestSelectNoPolicy(t *testing.T) {
	infos := []hal.DeviceInfo{computeDevice("dgpu", 0x0002)}

	_, _, err := SelectDevice(infos, SelectionPolicy{})
	if !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCapabilitiesPortabilitySubset(t *testing.T) {
	info := computeDevice("moltenvk", 0x0002)
	info.Extensions = []string{"VK_KHR_portability_subset"}

	caps := capabilitiesFor(info)
	if !caps.PortabilitySubset {
		t.Error("expected portability subset capability")
	}

	caps = capabilitiesFor(computeDevice("dgpu", 0x0002))
	if caps.PortabilitySubset {
		t.Error("did not expect portability subset capability")
	}
}

func TestFirstComputeQueueFamily(t *testing.T) {
	info := hal.DeviceInfo{
		QueueFamilies: []hal.QueueFamily{
			{Index: 0, Compute: false},
			{Index: 1, Compute: true},
			{Index: 2, Compute: true},
		},
	}
	index, ok := FirstComputeQueueFamily(info)
	if !ok || index != 1 {
		t.Errorf("expected family 1, got %d (ok=%t)", index, ok)
	}

	_, ok = FirstComputeQueueFamily(hal.DeviceInfo{})
	if ok {
		t.Error("expected no compute family on empty device")
	}
}
