// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strings"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkcompute/src/gfx"
)

// Names required by debug mode.
const (
	ValidationLayer           = "VK_LAYER_KHRONOS_validation"
	DebugReportExtension      = "VK_EXT_debug_report"
	PhysicalDeviceProperties2 = "VK_KHR_get_physical_device_properties2"
)

// DefaultVulkanApplicationInfo application info describes a Vulkan application
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   safeString("vkcompute"),
	PEngineName:        safeString("vkcompute"),
}

// PhysicalDeviceInfo describes available physical properties of a compute device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Compute       bool
	ShaderInt64   bool
	Extensions    []string
	Layers        []string
	Memory        uint64
}

// NewVulkanInstance creates a Vulkan instance. In debug mode the validation
// layer and debug report extension must be present, the instance will forward
// validation messages to the log.
func NewVulkanInstance(appInfo *vk.ApplicationInfo, cfg InstanceConfiguration) (*VulkanInstance, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, gfx.Mark(err, "vk.SetDefaultGetInstanceProcAddr()", gfx.ErrConfiguration)
	}

	if err := vk.Init(); err != nil {
		return nil, gfx.Mark(err, "vk.Init()", gfx.ErrConfiguration)
	}

	cfg = withDebugNames(cfg)

	layers, err := instanceLayers()
	if err != nil {
		return nil, err
	}
	if missing := missingNames(cfg.Layers, layers); len(missing) > 0 {
		return nil, gfx.Markf(gfx.ErrConfiguration, "missing instance layers: %s", strings.Join(missing, ", "))
	}

	extensions, err := instanceExtensions()
	if err != nil {
		return nil, err
	}
	log.WithField("extensions", extensions).Debug("available instance extensions")
	if missing := missingNames(cfg.Extensions, extensions); len(missing) > 0 {
		return nil, gfx.Markf(gfx.ErrConfiguration, "missing instance extensions: %s", strings.Join(missing, ", "))
	}

	/* Create instance */
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, gfx.Mark(err, "vk.CreateInstance()", gfx.ErrConfiguration)
	}
	vk.InitInstance(instance)

	vi := &VulkanInstance{
		configuration: cfg,
		instance:      instance,
	}

	if cfg.DebugMode {
		if err := vi.registerDebugReport(); err != nil {
			vk.DestroyInstance(instance, nil)
			return nil, err
		}
	}

	/* Enumerate devices */
	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vi.Release()
		return nil, err
	}
	vi.availableDevices = physicalDevices

	return vi, nil
}

// withDebugNames returns cfg with its own copies of the layer and extension
// lists, extended by the names debug mode requires.
func withDebugNames(cfg InstanceConfiguration) InstanceConfiguration {
	cfg.Layers = append([]string(nil), cfg.Layers...)
	cfg.Extensions = append([]string(nil), cfg.Extensions...)
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, ValidationLayer)
		cfg.Extensions = append(cfg.Extensions, DebugReportExtension, PhysicalDeviceProperties2)
	}
	return cfg
}

// VulkanInstance describes a Vulkan API Instance
type VulkanInstance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	instance         vk.Instance
	debugReport      vk.DebugReportCallback
	debugRegistered  bool
}

func instanceLayers() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, gfx.Mark(err, "vk.EnumerateInstanceLayerProperties()", gfx.ErrConfiguration)
	}
	props := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, props)); err != nil {
		return nil, gfx.Mark(err, "vk.EnumerateInstanceLayerProperties()", gfx.ErrConfiguration)
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

func instanceExtensions() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, gfx.Mark(err, "vk.EnumerateInstanceExtensionProperties()", gfx.ErrConfiguration)
	}
	props := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, props)); err != nil {
		return nil, gfx.Mark(err, "vk.EnumerateInstanceExtensionProperties()", gfx.ErrConfiguration)
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

func (v *VulkanInstance) registerDebugReport() error {
	ci := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit |
			vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var callback vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(v.instance, &ci, nil, &callback)); err != nil {
		return gfx.Mark(err, "vk.CreateDebugReportCallback()", gfx.ErrConfiguration)
	}
	v.debugReport = callback
	v.debugRegistered = true
	return nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	entry := log.WithFields(log.Fields{
		"layer": pLayerPrefix,
		"code":  messageCode,
	})
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		entry.Errorf("Debug Report: %s: %s", pLayerPrefix, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		entry.Warnf("Debug Report: %s: %s", pLayerPrefix, pMessage)
	default:
		entry.Debugf("Debug Report: %s: %s", pLayerPrefix, pMessage)
	}
	return vk.Bool32(vk.False)
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, gfx.Mark(err, "vk.EnumeratePhysicalDevices()", gfx.ErrNoDevice)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, gfx.Mark(err, "vk.EnumeratePhysicalDevices()", gfx.ErrNoDevice)
	}
	return availableDevices[:deviceCount], nil
}

// PhysicalDevicesInfo returns a description of every device the instance sees
func (v *VulkanInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i, device := range v.availableDevices {
		// Get extension info
		var numDeviceExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &numDeviceExtensions, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &numDeviceExtensions, deviceExt)); err != nil {
			pdi[i].Invalid = true
		}
		for _, ext := range deviceExt {
			ext.Deref()
			pdi[i].Extensions = append(pdi[i].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		// Get layers info
		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(device, &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		// Get memory info
		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
		memoryProperties.Deref()
		for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory += uint64(memoryProperties.MemoryHeaps[iMem].Size)
		}

		_, pdi[i].Compute = computeQueueFamily(queueFamilies(device))
		pdi[i].ShaderInt64 = supportsShaderInt64(device)

		// Get general device info
		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].ID = int(physicalDeviceProperties.DeviceID)
		pdi[i].VendorID = int(physicalDeviceProperties.VendorID)
		pdi[i].Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
		pdi[i].DriverVersion = int(physicalDeviceProperties.DriverVersion)
	}
	return pdi
}

// Inner returns internal vk.Instance
func (v *VulkanInstance) Inner() vk.Instance {
	return v.instance
}

// Configuration returns the configuration the instance was created with,
// including the layers and extensions added by debug mode.
func (v *VulkanInstance) Configuration() InstanceConfiguration {
	return v.configuration
}

// AvailableDevices returns handles of physical devices
func (v *VulkanInstance) AvailableDevices() []vk.PhysicalDevice {
	return v.availableDevices
}

// Release unregisters the debug report and destroys the instance
func (v *VulkanInstance) Release() {
	if v.debugRegistered {
		vk.DestroyDebugReportCallback(v.instance, v.debugReport, nil)
		v.debugRegistered = false
	}
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}
