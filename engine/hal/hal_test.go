package hal

import "testing"

func TestMemoryPropertyFlagsContains(t *testing.T) {
	flags := MemoryHostVisible | MemoryHostCoherent | MemoryHostCached

	if !flags.Contains(MemoryHostVisible | MemoryHostCoherent) {
		t.Error("expected superset to contain the requested bits")
	}
	if flags.Contains(MemoryDeviceLocal) {
		t.Error("did not expect device-local bit")
	}
	if !flags.Contains(0) {
		t.Error("empty requirement matches everything")
	}
}

func TestDeviceInfoHasComputeQueue(t *testing.T) {
	info := DeviceInfo{
		QueueFamilies: []QueueFamily{
			{Index: 0, Compute: false},
			{Index: 1, Compute: true},
		},
	}
	if !info.HasComputeQueue() {
		t.Error("expected compute queue")
	}
	if (DeviceInfo{}).HasComputeQueue() {
		t.Error("empty device has no compute queue")
	}
}

func TestDeviceInfoHasExtension(t *testing.T) {
	info := DeviceInfo{Extensions: []string{"VK_KHR_portability_subset"}}
	if !info.HasExtension("VK_KHR_portability_subset") {
		t.Error("expected extension to be reported")
	}
	if info.HasExtension("VK_KHR_swapchain") {
		t.Error("did not expect unlisted extension")
	}
}
