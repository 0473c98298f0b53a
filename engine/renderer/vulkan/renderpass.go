package vulkan

import (
	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
)

// VulkanRenderpass draws into the offscreen color target. It loads and stores
// the attachment so a frame can begin and end it around every compute pass.
type VulkanRenderpass struct {
	Handle      vk.RenderPass
	ColorFormat gputypes.TextureFormat
	X, Y, W, H  float32
	R, G, B, A  float32
}

func RenderpassCreate(context *VulkanContext, format gputypes.TextureFormat, x, y, w, h, r, g, b, a float32) (*VulkanRenderpass, error) {
	vf, err := vkFormat(format)
	if err != nil {
		return nil, err
	}
	outRenderpass := &VulkanRenderpass{
		ColorFormat: format,
		X:           x,
		Y:           y,
		W:           w,
		H:           h,
		R:           r,
		G:           g,
		B:           b,
		A:           a,
	}

	// Color attachment
	colorAttachment := vk.AttachmentDescription{
		Format:         vf,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutGeneral,
		FinalLayout:    vk.ImageLayoutGeneral,
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutGeneral,
		},
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	// Vertex fetch reads the payloads written by the compute pass before it.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageComputeShaderBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessShaderWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageVertexShaderBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit | vk.AccessShaderReadBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pRenderPass vk.RenderPass
	if err := lockPool.SafeCall(RenderpassManagement, func() error {
		return vkError("vkCreateRenderPass", vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass))
	}); err != nil {
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	core.LogDebug("Offscreen renderpass created.")
	return outRenderpass, nil
}

// Compatible reports whether pipelines written for formats can draw in the pass.
func (vr *VulkanRenderpass) Compatible(formats []gputypes.TextureFormat) bool {
	return len(formats) == 1 && formats[0] == vr.ColorFormat
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) renderArea() vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{
			X: int32(vr.X),
			Y: int32(vr.Y),
		},
		Extent: vk.Extent2D{
			Width:  uint32(vr.W),
			Height: uint32(vr.H),
		},
	}
}

// RenderpassBegin begins the pass and sets the dynamic viewport and scissor
// to the render area.
func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, frameBuffer *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer.Handle,
		RenderArea:  vr.renderArea(),
	}
	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS

	viewport := vk.Viewport{
		X:        vr.X,
		Y:        vr.Y,
		Width:    vr.W,
		Height:   vr.H,
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{vr.renderArea()})
}

// RenderpassClear clears the color attachment. Only valid inside the pass.
func (vr *VulkanRenderpass) RenderpassClear(commandBuffer *VulkanCommandBuffer) {
	var clearValue vk.ClearValue
	clearValue.SetColor([]float32{vr.R, vr.G, vr.B, vr.A})
	attachment := vk.ClearAttachment{
		AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ColorAttachment: 0,
		ClearValue:      clearValue,
	}
	rect := vk.ClearRect{
		Rect:           vr.renderArea(),
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	vk.CmdClearAttachments(commandBuffer.Handle, 1, []vk.ClearAttachment{attachment}, 1, []vk.ClearRect{rect})
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
