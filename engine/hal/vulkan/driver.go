// Package vulkan adapts the hal driver seam onto a real Vulkan
// installation through the goki/vulkan bindings. The bootstrap is
// headless: no window, no surface, compute only.
package vulkan

import (
	"runtime"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

const DriverName = "vulkan"

const (
	validationLayerName      = "VK_LAYER_KHRONOS_validation"
	portabilitySubsetExtName = "VK_KHR_portability_subset"
)

var initOnce sync.Once
var initErr error

// Driver implements hal.Driver.
type Driver struct{}

func init() {
	hal.Register(&Driver{})
}

func (d *Driver) Name() string { return DriverName }

// Open loads the Vulkan library and creates an instance. When
// validation is requested, the Khronos validation layer must be
// installed, otherwise Open refuses to continue.
func (d *Driver) Open(opts hal.Options) (hal.Instance, error) {
	initOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			initErr = err
			return
		}
		initErr = vk.Init()
	})
	if initErr != nil {
		return nil, core.DriverError(hal.ErrNotInstalled, "unable to load vulkan: %s", initErr)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(opts.AppName),
		EngineVersion:      uint32(vk.MakeVersion(1, 0, 0)),
		PEngineName:        VulkanSafeString("Magma"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		// MoltenVK and other shim implementations.
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	requiredLayers := []string{}
	if opts.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		available, err := instanceLayerNames()
		if err != nil {
			return nil, err
		}
		found := false
		for _, layer := range available {
			if layer == validationLayerName {
				found = true
				break
			}
		}
		if !found {
			return nil, core.ConfigurationError("validation layer requested but %s is not installed", validationLayerName)
		}
		requiredLayers = append(requiredLayers, validationLayerName)
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var handle vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &handle); res != vk.Success {
		return nil, resultErr("vkCreateInstance", res)
	}
	vk.InitInstance(handle)
	core.LogInfo("Vulkan instance created.")

	return &instance{handle: handle, validation: opts.Validation}, nil
}

func instanceLayerNames() ([]string, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, resultErr("vkEnumerateInstanceLayerProperties", res)
	}
	if count == 0 {
		return nil, nil
	}
	props := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, props); res != vk.Success {
		return nil, resultErr("vkEnumerateInstanceLayerProperties", res)
	}
	names := make([]string, 0, count)
	for i := range props {
		props[i].Deref()
		names = append(names, VulkanTrimString(props[i].LayerName[:]))
	}
	return names, nil
}
