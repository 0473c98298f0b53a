package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// VulkanBuffer is a device local buffer. Payload buffers are written by the
// GPU only, so there is no host visible staging copy.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Desc   metadata.BufferDesc
	label  string
}

func (b *VulkanBuffer) Label() string  { return b.label }
func (b *VulkanBuffer) Size() uint64   { return b.Desc.Size }
func (b *VulkanBuffer) Stride() uint32 { return b.Desc.Stride }

func bufferUsageFlags(usage gputypes.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&gputypes.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&gputypes.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&gputypes.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&gputypes.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&gputypes.BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageIndirectBufferBit
	}
	if usage&gputypes.BufferUsageCopySrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage&gputypes.BufferUsageCopyDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	if flags == 0 {
		flags = vk.BufferUsageStorageBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func NewBuffer(context *VulkanContext, desc *metadata.BufferDesc) (*VulkanBuffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q has zero size: %w", desc.Label, core.ErrInvalidConfig)
	}
	buffer := &VulkanBuffer{
		Desc:  *desc,
		label: core.Label("Buffer", desc.Label),
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if err := lockPool.SafeCall(BufferManagement, func() error {
		return vkError("vkCreateBuffer", vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &buffer.Handle))
	}); err != nil {
		return nil, err
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &memReqs)
	memReqs.Deref()

	memory, err := context.allocateMemory(memReqs, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	buffer.Memory = memory

	if err := vkError("vkBindBufferMemory", vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0)); err != nil {
		buffer.Destroy(context)
		return nil, err
	}

	core.LogDebug("Buffer %s created (%d bytes)", buffer.label, desc.Size)
	return buffer, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	_ = lockPool.SafeCall(BufferManagement, func() error {
		if b.Handle != nil {
			vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
			b.Handle = nil
		}
		if b.Memory != nil {
			vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
			b.Memory = nil
		}
		return nil
	})
}

// asBuffer unwraps a handle created by this backend.
func asBuffer(b metadata.Buffer) (*VulkanBuffer, error) {
	vb, ok := b.(*VulkanBuffer)
	if !ok || vb == nil {
		return nil, fmt.Errorf("buffer %T was not created by the vulkan backend: %w", b, core.ErrInvalidState)
	}
	return vb, nil
}
