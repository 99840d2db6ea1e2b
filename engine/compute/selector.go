package compute

import (
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// SelectDevice applies the selection policy over the enumerated devices
// and returns the chosen device together with its capability table.
// Devices without a compute-capable queue family never qualify.
func SelectDevice(infos []hal.DeviceInfo, policy SelectionPolicy) (hal.DeviceInfo, hal.Capabilities, error) {
	var none hal.DeviceInfo
	if !policy.FirstDevice && policy.DeviceID == nil {
		return none, hal.Capabilities{}, core.ConfigurationError("neither selection mode specified")
	}

	for _, candidate := range describeDevices(infos) {
		core.LogInfo("Examining device '%s' (vendor 0x%04X, device 0x%04X, compute: %t)",
			candidate.Name, candidate.VendorID, candidate.DeviceID, candidate.HasCompute)
		if !candidate.HasCompute {
			continue
		}
		if policy.FirstDevice {
			return candidate.Info, capabilitiesFor(candidate.Info), nil
		}
		if candidate.DeviceID == *policy.DeviceID {
			return candidate.Info, capabilitiesFor(candidate.Info), nil
		}
	}
	return none, hal.Capabilities{}, core.SuitabilityError("no suitable device")
}

// capabilitiesFor builds the capability table queried once at selection
// time. Pipeline and device construction branch on its entries.
func capabilitiesFor(info hal.DeviceInfo) hal.Capabilities {
	queueFamily, _ := FirstComputeQueueFamily(info)
	return hal.Capabilities{
		PortabilitySubset:  info.HasExtension("VK_KHR_portability_subset"),
		ComputeQueueFamily: queueFamily,
	}
}

// FirstComputeQueueFamily returns the lowest-index queue family that
// accepts dispatch commands.
func FirstComputeQueueFamily(info hal.DeviceInfo) (uint32, bool) {
	for _, qf := range info.QueueFamilies {
		if qf.Compute {
			return qf.Index, true
		}
	}
	return 0, false
}
