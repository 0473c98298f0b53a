package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The shader module creation info. */
	CreateInfo vk.ShaderModuleCreateInfo
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func shaderStageBit(stage metadata.ShaderStage) (vk.ShaderStageFlagBits, error) {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit, nil
	case metadata.ShaderStagePixel:
		return vk.ShaderStageFragmentBit, nil
	case metadata.ShaderStageCompute:
		return vk.ShaderStageComputeBit, nil
	}
	return 0, fmt.Errorf("shader stage %s cannot be compiled into a vulkan module: %w", stage, core.ErrInvalidPipeline)
}

// moduleCreateInfo points at the blob's words, CodeSize is in bytes.
func moduleCreateInfo(blob *metadata.ShaderBlob) vk.ShaderModuleCreateInfo {
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(blob.Size()),
		PCode:    blob.Code,
	}
}

// NewShaderStage creates the module for blob. The module is only needed until
// the pipeline using it has been created.
func NewShaderStage(context *VulkanContext, blob *metadata.ShaderBlob) (*VulkanShaderStage, error) {
	if blob == nil || len(blob.Code) == 0 {
		return nil, fmt.Errorf("empty shader blob: %w", core.ErrInvalidPipeline)
	}
	bit, err := shaderStageBit(blob.Stage)
	if err != nil {
		return nil, err
	}

	stage := &VulkanShaderStage{CreateInfo: moduleCreateInfo(blob)}

	if err := lockPool.SafeCall(ShaderManagement, func() error {
		return vkError("vkCreateShaderModule", vk.CreateShaderModule(
			context.Device.LogicalDevice,
			&stage.CreateInfo,
			context.Allocator,
			&stage.Handle))
	}); err != nil {
		return nil, fmt.Errorf("shader %s: %w", blob.Name, err)
	}

	// Shader stage info
	stage.ShaderStageCreateInfo.SType = vk.StructureTypePipelineShaderStageCreateInfo
	stage.ShaderStageCreateInfo.Stage = bit
	stage.ShaderStageCreateInfo.Module = stage.Handle
	stage.ShaderStageCreateInfo.PName = VulkanSafeString(blob.Entry())

	return stage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle == nil {
		return
	}
	_ = lockPool.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = nil
		return nil
	})
}
