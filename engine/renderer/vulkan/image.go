package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
)

// VulkanImage is the offscreen color target the raster pass draws into. It
// stays in the general layout so every render pass instance of a frame can
// load what the previous one stored.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat

	// Set once the image has left the undefined layout.
	initialized bool
}

func vkFormat(format gputypes.TextureFormat) (vk.Format, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case gputypes.TextureFormatR8Unorm:
		return vk.FormatR8Unorm, nil
	}
	return vk.FormatUndefined, fmt.Errorf("texture format %v is not a supported color target: %w", format, core.ErrInvalidConfig)
}

func ImageCreate(context *VulkanContext, width, height uint32, format gputypes.TextureFormat) (*VulkanImage, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("offscreen target is %dx%d: %w", width, height, core.ErrInvalidConfig)
	}
	vf, err := vkFormat(format)
	if err != nil {
		return nil, err
	}
	image := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vf,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := lockPool.SafeCall(ImageManagement, func() error {
		return vkError("vkCreateImage", vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &image.Handle))
	}); err != nil {
		return nil, err
	}

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &memReqs)
	memReqs.Deref()

	image.Memory, err = context.allocateMemory(memReqs, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		image.Destroy(context)
		return nil, err
	}
	if err := vkError("vkBindImageMemory", vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0)); err != nil {
		image.Destroy(context)
		return nil, err
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   vf,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	if err := lockPool.SafeCall(ImageManagement, func() error {
		return vkError("vkCreateImageView", vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &image.View))
	}); err != nil {
		image.Destroy(context)
		return nil, err
	}

	core.LogDebug("Offscreen image created (%dx%d)", width, height)
	return image, nil
}

func colorRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}

// Prepare moves a fresh image out of the undefined layout. Later frames keep
// the general layout.
func (vi *VulkanImage) Prepare(commandBuffer *VulkanCommandBuffer) {
	if vi.initialized {
		return
	}
	vi.initialized = true
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutGeneral,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange:    colorRange(),
	}
	vk.CmdPipelineBarrier(commandBuffer.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	_ = lockPool.SafeCall(ImageManagement, func() error {
		if vi.View != nil {
			vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
			vi.View = nil
		}
		if vi.Memory != nil {
			vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
			vi.Memory = nil
		}
		if vi.Handle != nil {
			vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
			vi.Handle = nil
		}
		return nil
	})
}
