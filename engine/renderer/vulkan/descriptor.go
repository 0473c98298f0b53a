package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

const (
	// The descriptor pool holds one set per root view or table bound in a
	// frame and is reset when the next frame begins.
	VULKAN_MAX_DESCRIPTOR_SETS      uint32 = 4096
	VULKAN_MAX_DESCRIPTORS_PER_TYPE uint32 = 16384
)

// VulkanDescriptorTable keeps the buffer infos of its views. Binding a table
// copies them into a set allocated for the slot it is bound to, since set
// layouts follow the ranges of the pipeline layout and not the table.
type VulkanDescriptorTable struct {
	Infos []vk.DescriptorBufferInfo
	Desc  metadata.DescriptorTableDesc
	label string
}

func (t *VulkanDescriptorTable) Label() string { return t.label }

func vkDescriptorType(t metadata.DescriptorType) (vk.DescriptorType, error) {
	switch t {
	case metadata.DescriptorTypeSRV, metadata.DescriptorTypeUAV,
		metadata.DescriptorTypeRootSRV, metadata.DescriptorTypeRootUAV:
		return vk.DescriptorTypeStorageBuffer, nil
	case metadata.DescriptorTypeCBV, metadata.DescriptorTypeRootCBV:
		return vk.DescriptorTypeUniformBuffer, nil
	case metadata.DescriptorTypeSampler:
		return vk.DescriptorTypeSampler, nil
	}
	return 0, fmt.Errorf("descriptor type %d has no descriptor set binding: %w", t, core.ErrInvalidPipelineLayout)
}

func vkShaderStage(stage metadata.ShaderStage) vk.ShaderStageFlags {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	case metadata.ShaderStagePixel:
		return vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	case metadata.ShaderStageCompute:
		return vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	// All, plus the mesh stages which only appear in native layouts.
	return vk.ShaderStageFlags(vk.ShaderStageAll)
}

func createDescriptorPool(context *VulkanContext, maxSets uint32, flags vk.DescriptorPoolCreateFlags) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: VULKAN_MAX_DESCRIPTORS_PER_TYPE},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: VULKAN_MAX_DESCRIPTORS_PER_TYPE},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         flags,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := vkError("vkCreateDescriptorPool", vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool)); err != nil {
		return nil, err
	}
	return pool, nil
}

func createSetLayout(context *VulkanContext, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		return vkError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout))
	}); err != nil {
		return nil, err
	}
	return layout, nil
}

func allocateSet(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		return vkError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &set))
	}); err != nil {
		return nil, err
	}
	return set, nil
}

func writeBuffers(context *VulkanContext, set vk.DescriptorSet, binding uint32, descriptorType vk.DescriptorType, infos []vk.DescriptorBufferInfo) {
	if len(infos) == 0 {
		return
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: uint32(len(infos)),
		DescriptorType:  descriptorType,
		PBufferInfo:     infos,
	}
	_ = lockPool.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func NewDescriptorTable(context *VulkanContext, desc *metadata.DescriptorTableDesc) (*VulkanDescriptorTable, error) {
	if len(desc.Views) == 0 {
		return nil, fmt.Errorf("descriptor table %q has no views: %w", desc.Label, core.ErrInvalidConfig)
	}
	if _, err := vkDescriptorType(desc.Type); err != nil {
		return nil, err
	}

	table := &VulkanDescriptorTable{
		Infos: make([]vk.DescriptorBufferInfo, len(desc.Views)),
		Desc:  *desc,
		label: core.Label("DescriptorTable", desc.Label),
	}
	for i, view := range desc.Views {
		vb, err := asBuffer(view.Buffer)
		if err != nil {
			return nil, err
		}
		table.Infos[i] = bufferInfo(vb, view.Offset, view.Size)
	}

	core.LogDebug("Descriptor table %s created with %d views", table.label, len(desc.Views))
	return table, nil
}

// bufferInfo describes size bytes of b from offset, the rest of the buffer when size is 0.
func bufferInfo(b *VulkanBuffer, offset, size uint64) vk.DescriptorBufferInfo {
	r := vk.DeviceSize(size)
	if size == 0 {
		r = vk.DeviceSize(vk.WholeSize)
	}
	return vk.DescriptorBufferInfo{
		Buffer: b.Handle,
		Offset: vk.DeviceSize(offset),
		Range:  r,
	}
}

// checkViewOffset rejects root view offsets the device cannot bind. Constant
// buffer views follow the uniform alignment, the others the storage one.
func checkViewOffset(kind metadata.SlotKind, offset, uniformAlignment, storageAlignment uint64) error {
	alignment := storageAlignment
	if kind == metadata.SlotKindRootCBV {
		alignment = uniformAlignment
	}
	if alignment > 1 && offset%alignment != 0 {
		return fmt.Errorf("%s offset %d is not a multiple of %d: %w", kind, offset, alignment, core.ErrSlotOutOfRange)
	}
	return nil
}

func asDescriptorTable(t metadata.DescriptorTable) (*VulkanDescriptorTable, error) {
	vt, ok := t.(*VulkanDescriptorTable)
	if !ok || vt == nil {
		return nil, fmt.Errorf("descriptor table %T was not created by the vulkan backend: %w", t, core.ErrInvalidState)
	}
	return vt, nil
}
