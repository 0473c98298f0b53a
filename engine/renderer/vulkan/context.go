package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
)

type VulkanContext struct {
	// Size of the offscreen target the raster pass draws into.
	FramebufferWidth  uint32
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// Every set bound in a frame comes from DescriptorPool, reset in BeginFrame.
	DescriptorPool vk.DescriptorPool

	Target         *VulkanImage
	MainRenderpass *VulkanRenderpass
	Framebuffer    *VulkanFramebuffer

	CommandBuffer *VulkanCommandBuffer
	InFlightFence *VulkanFence
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// allocateMemory allocates and returns memory matching reqs, preferring
// propertyFlags and falling back to any compatible type.
func (vc *VulkanContext) allocateMemory(reqs vk.MemoryRequirements, propertyFlags vk.MemoryPropertyFlagBits) (vk.DeviceMemory, error) {
	index := vc.FindMemoryIndex(reqs.MemoryTypeBits, uint32(propertyFlags))
	if index < 0 {
		index = vc.FindMemoryIndex(reqs.MemoryTypeBits, 0)
	}
	if index < 0 {
		return nil, core.ErrUnknown
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	if err := lockPool.SafeCall(MemoryManagement, func() error {
		return vkError("vkAllocateMemory", vk.AllocateMemory(vc.Device.LogicalDevice, &allocInfo, vc.Allocator, &memory))
	}); err != nil {
		return nil, err
	}
	return memory, nil
}
