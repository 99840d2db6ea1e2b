package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

type instance struct {
	handle     vk.Instance
	physical   []vk.PhysicalDevice
	validation bool
}

func (in *instance) EnumerateDevices() ([]hal.DeviceInfo, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(in.handle, &count, nil); res != vk.Success {
		return nil, resultErr("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return nil, nil
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(in.handle, &count, physicalDevices); res != vk.Success {
		return nil, resultErr("vkEnumeratePhysicalDevices", res)
	}
	in.physical = physicalDevices

	infos := make([]hal.DeviceInfo, 0, count)
	for i := 0; i < int(count); i++ {
		info, err := describePhysicalDevice(physicalDevices[i])
		if err != nil {
			return nil, err
		}
		info.Index = i
		infos = append(infos, info)
	}
	return infos, nil
}

func describePhysicalDevice(pd vk.PhysicalDevice) (hal.DeviceInfo, error) {
	var info hal.DeviceInfo

	properties := vk.PhysicalDeviceProperties{}
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()
	info.VendorID = properties.VendorID
	info.DeviceID = properties.DeviceID
	info.Name = VulkanTrimString(properties.DeviceName[:])
	info.APIVersion = properties.ApiVersion

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, queueFamilies)
	for i := 0; i < int(queueFamilyCount); i++ {
		queueFamilies[i].Deref()
		info.QueueFamilies = append(info.QueueFamilies, hal.QueueFamily{
			Index:   uint32(i),
			Count:   queueFamilies[i].QueueCount,
			Compute: queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0,
		})
	}

	memory := vk.PhysicalDeviceMemoryProperties{}
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()
	for i := 0; i < int(memory.MemoryTypeCount); i++ {
		memory.MemoryTypes[i].Deref()
		info.MemoryTypes = append(info.MemoryTypes, hal.MemoryType{
			HeapIndex: memory.MemoryTypes[i].HeapIndex,
			Flags:     memoryPropertyFlags(memory.MemoryTypes[i].PropertyFlags),
		})
	}
	for i := 0; i < int(memory.MemoryHeapCount); i++ {
		memory.MemoryHeaps[i].Deref()
		info.MemoryHeaps = append(info.MemoryHeaps, hal.MemoryHeap{
			Size: uint64(memory.MemoryHeaps[i].Size),
		})
	}

	var extensionCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &extensionCount, nil); res != vk.Success {
		return info, resultErr("vkEnumerateDeviceExtensionProperties", res)
	}
	if extensionCount != 0 {
		extensions := make([]vk.ExtensionProperties, extensionCount)
		if res := vk.EnumerateDeviceExtensionProperties(pd, "", &extensionCount, extensions); res != vk.Success {
			return info, resultErr("vkEnumerateDeviceExtensionProperties", res)
		}
		for i := range extensions {
			extensions[i].Deref()
			info.Extensions = append(info.Extensions, VulkanTrimString(extensions[i].ExtensionName[:]))
		}
	}

	return info, nil
}

func memoryPropertyFlags(flags vk.MemoryPropertyFlags) hal.MemoryPropertyFlags {
	var out hal.MemoryPropertyFlags
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) != 0 {
		out |= hal.MemoryDeviceLocal
	}
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		out |= hal.MemoryHostVisible
	}
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0 {
		out |= hal.MemoryHostCoherent
	}
	if flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit) != 0 {
		out |= hal.MemoryHostCached
	}
	return out
}

// OpenDevice creates the logical device with one queue from the compute
// family. The portability subset extension is enabled when the
// capability table reports it, as shimmed implementations require.
func (in *instance) OpenDevice(info hal.DeviceInfo, caps hal.Capabilities) (hal.Device, error) {
	if info.Index < 0 || info.Index >= len(in.physical) {
		if _, err := in.EnumerateDevices(); err != nil {
			return nil, err
		}
		if info.Index < 0 || info.Index >= len(in.physical) {
			return nil, core.DriverError(nil, "no physical device at index %d", info.Index)
		}
	}
	pd := in.physical[info.Index]

	core.LogInfo("Creating logical device...")
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: caps.ComputeQueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	extensionNames := []string{}
	if caps.PortabilitySubset {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtName)
		extensionNames = append(extensionNames, portabilitySubsetExtName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	var logical vk.Device
	if res := vk.CreateDevice(pd, &deviceCreateInfo, nil, &logical); res != vk.Success {
		return nil, resultErr("vkCreateDevice", res)
	}
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(logical, caps.ComputeQueueFamily, 0, &queue)
	core.LogInfo("Compute queue obtained.")

	return newDevice(logical, queue), nil
}

func (in *instance) Destroy() error {
	if in.handle != nil {
		vk.DestroyInstance(in.handle, nil)
		in.handle = nil
	}
	in.physical = nil
	return nil
}
