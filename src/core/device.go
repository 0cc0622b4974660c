// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/vkcompute/src/gfx"
	"github.com/devblok/vkcompute/src/gfx/vkr"
)

// NewDeviceContext selects the first physical device of the instance and
// creates a logical device with a single compute queue on it.
// Devices are not ranked by capability.
func NewDeviceContext(instance *VulkanInstance) (*DeviceContext, error) {
	devices := instance.AvailableDevices()
	if len(devices) == 0 {
		return nil, gfx.Markf(gfx.ErrNoDevice, "no vulkan capable physical device found")
	}
	physicalDevice := devices[0]

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(physicalDevice, &props)
	props.Deref()
	log.WithFields(log.Fields{
		"device":      vk.ToString(props.DeviceName[:]),
		"shaderInt64": supportsShaderInt64(physicalDevice),
	}).Info("selected physical device")

	familyIndex, ok := computeQueueFamily(queueFamilies(physicalDevice))
	if !ok {
		return nil, gfx.Markf(gfx.ErrNoComputeQueue, "device %q has no queue family with compute support",
			vk.ToString(props.DeviceName[:]))
	}

	/* Logical Device setup */
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: familyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	// device layers mirror the instance layers
	layers := instance.Configuration().Layers
	dci := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
		EnabledLayerCount:    uint32(len(layers)),
		PpEnabledLayerNames:  safeStrings(layers),
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(physicalDevice, &dci, nil, &device)); err != nil {
		return nil, gfx.Mark(err, "vk.CreateDevice()", gfx.ErrNoDevice)
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, familyIndex, 0, &queue)

	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memProperties)
	memProperties.Deref()

	memoryTypes := vkr.MemoryTypes(memProperties)
	return &DeviceContext{
		physicalDevice: physicalDevice,
		device:         device,
		queue:          queue,
		queueFamily:    familyIndex,
		memoryTypes:    memoryTypes,
		allocator:      vkr.NewMemoryAllocatorFromTypes(device, memoryTypes),
	}, nil
}

// DeviceContext owns the selected compute device and its queue.
type DeviceContext struct {
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32
	memoryTypes    []vk.MemoryPropertyFlags
	allocator      *vkr.MemoryAllocator
}

// Device returns the logical device.
func (d *DeviceContext) Device() vk.Device {
	return d.device
}

// PhysicalDevice returns the physical device the context was created on.
func (d *DeviceContext) PhysicalDevice() vk.PhysicalDevice {
	return d.physicalDevice
}

// Queue returns the compute queue.
func (d *DeviceContext) Queue() vk.Queue {
	return d.queue
}

// QueueFamily returns the index of the compute queue family.
func (d *DeviceContext) QueueFamily() uint32 {
	return d.queueFamily
}

// MemoryProperties returns the property flags of every memory type.
func (d *DeviceContext) MemoryProperties() []vk.MemoryPropertyFlags {
	return d.memoryTypes
}

// Allocator returns the memory allocator of this device.
func (d *DeviceContext) Allocator() *vkr.MemoryAllocator {
	return d.allocator
}

// Release waits for the device to go idle and destroys it.
func (d *DeviceContext) Release() {
	vk.DeviceWaitIdle(d.device)
	vk.DestroyDevice(d.device, nil)
}

func queueFamilies(device vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)
	for idx := range families {
		families[idx].Deref()
	}
	return families
}

// computeQueueFamily returns the index of the first family that
// has queues and supports compute work.
func computeQueueFamily(families []vk.QueueFamilyProperties) (uint32, bool) {
	required := vk.QueueFlags(vk.QueueComputeBit)
	for idx, family := range families {
		if family.QueueCount > 0 && family.QueueFlags&required != 0 {
			return uint32(idx), true
		}
	}
	return 0, false
}

func supportsShaderInt64(device vk.PhysicalDevice) bool {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()
	return features.ShaderInt64 == vk.True
}
