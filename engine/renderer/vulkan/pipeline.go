package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Slots of a pipeline layout map onto Vulkan as follows: constant slots
// become push constant ranges packed in slot order, every other slot gets its
// own descriptor set with one binding per range.
type slotBinding struct {
	kind       metadata.SlotKind
	set        uint32
	setLayout  vk.DescriptorSetLayout
	ranges     []slotRange
	pushOffset uint32
	pushSize   uint32
	stages     vk.ShaderStageFlags
}

type slotRange struct {
	descriptor vk.DescriptorType
	count      uint32
}

type VulkanPipelineLayout struct {
	Handle vk.PipelineLayout
	Desc   metadata.PipelineLayoutDesc
	slots  []slotBinding
	label  string
}

func (l *VulkanPipelineLayout) Label() string { return l.label }

func NewPipelineLayout(context *VulkanContext, desc *metadata.PipelineLayoutDesc) (*VulkanPipelineLayout, error) {
	layout := &VulkanPipelineLayout{
		Desc:  *desc,
		slots: make([]slotBinding, len(desc.Slots)),
		label: core.Label("PipelineLayout", desc.Label),
	}

	var setLayouts []vk.DescriptorSetLayout
	var pushRanges []vk.PushConstantRange
	var pushOffset uint32

	for i, slot := range desc.Slots {
		b := slotBinding{kind: slot.Kind(), stages: vkShaderStage(slot.Stage)}
		switch b.kind {
		case metadata.SlotKindNone:
		case metadata.SlotKindConstant:
			b.pushOffset = pushOffset
			b.pushSize = slot.ConstantCount() * 4
			pushOffset += b.pushSize
			pushRanges = append(pushRanges, vk.PushConstantRange{
				StageFlags: b.stages,
				Offset:     b.pushOffset,
				Size:       b.pushSize,
			})
		default:
			bindings := make([]vk.DescriptorSetLayoutBinding, len(slot.Ranges))
			for r, rng := range slot.Ranges {
				t, err := vkDescriptorType(rng.Type)
				if err != nil {
					layout.Destroy(context)
					return nil, fmt.Errorf("slot %d: %w", i, err)
				}
				b.ranges = append(b.ranges, slotRange{descriptor: t, count: rng.NumDescriptors})
				bindings[r] = vk.DescriptorSetLayoutBinding{
					Binding:         uint32(r),
					DescriptorType:  t,
					DescriptorCount: rng.NumDescriptors,
					StageFlags:      b.stages,
				}
			}
			setLayout, err := createSetLayout(context, bindings)
			if err != nil {
				layout.Destroy(context)
				return nil, err
			}
			b.set = uint32(len(setLayouts))
			b.setLayout = setLayout
			setLayouts = append(setLayouts, setLayout)
		}
		layout.slots[i] = b
	}

	limit := context.Device.Properties.Limits.MaxPushConstantsSize
	if limit != 0 && pushOffset > limit {
		layout.Destroy(context)
		return nil, fmt.Errorf("layout %q needs %d bytes of push constants, device allows %d: %w",
			layout.label, pushOffset, limit, core.ErrInvalidPipelineLayout)
	}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushRanges)),
		PPushConstantRanges:    pushRanges,
	}
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return vkError("vkCreatePipelineLayout", vk.CreatePipelineLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout.Handle))
	}); err != nil {
		layout.Destroy(context)
		return nil, err
	}

	core.LogDebug("Pipeline layout %s created: %d sets, %d push constant bytes", layout.label, len(setLayouts), pushOffset)
	return layout, nil
}

func (l *VulkanPipelineLayout) slot(index uint32) (slotBinding, error) {
	if int(index) >= len(l.slots) {
		return slotBinding{}, fmt.Errorf("slot %d of layout %s: %w", index, l.label, core.ErrSlotOutOfRange)
	}
	return l.slots[index], nil
}

func (l *VulkanPipelineLayout) Destroy(context *VulkanContext) {
	_ = lockPool.SafeCall(PipelineManagement, func() error {
		for i := range l.slots {
			if l.slots[i].setLayout != nil {
				vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, l.slots[i].setLayout, context.Allocator)
				l.slots[i].setLayout = nil
			}
		}
		if l.Handle != nil {
			vk.DestroyPipelineLayout(context.Device.LogicalDevice, l.Handle, context.Allocator)
			l.Handle = nil
		}
		return nil
	})
}

func asPipelineLayout(l metadata.PipelineLayout) (*VulkanPipelineLayout, error) {
	vl, ok := l.(*VulkanPipelineLayout)
	if !ok || vl == nil {
		return nil, fmt.Errorf("pipeline layout %T was not created by the vulkan backend: %w", l, core.ErrInvalidPipelineLayout)
	}
	return vl, nil
}

/**
 * @brief Holds a Vulkan pipeline and the layout it was created against.
 */
type VulkanPipeline struct {
	Handle    vk.Pipeline
	BindPoint vk.PipelineBindPoint
	Layout    *VulkanPipelineLayout
	Topology  gputypes.PrimitiveTopology
	label     string
}

func (p *VulkanPipeline) Label() string { return p.label }

func NewComputePipeline(context *VulkanContext, desc *metadata.ComputePipelineDesc) (*VulkanPipeline, error) {
	layout, err := asPipelineLayout(desc.Layout)
	if err != nil {
		return nil, err
	}
	stage, err := NewShaderStage(context, desc.CS)
	if err != nil {
		return nil, err
	}
	defer stage.Destroy(context)

	pipeline := &VulkanPipeline{
		BindPoint: vk.PipelineBindPointCompute,
		Layout:    layout,
		label:     core.Label("ComputePipeline", desc.Label),
	}
	createInfo := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              stage.ShaderStageCreateInfo,
		Layout:             layout.Handle,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return vkError("vkCreateComputePipelines", vk.CreateComputePipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.ComputePipelineCreateInfo{createInfo},
			context.Allocator,
			pipelines))
	}); err != nil {
		return nil, err
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("Compute pipeline %s created!", pipeline.label)
	return pipeline, nil
}

func vkTopology(t gputypes.PrimitiveTopology) vk.PrimitiveTopology {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList
	case gputypes.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	case gputypes.PrimitiveTopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case gputypes.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	}
	return vk.PrimitiveTopologyTriangleList
}

func vkBlendAttachment(mode metadata.BlendMode) vk.PipelineColorBlendAttachmentState {
	state := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorZero,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorBlendOp:        vk.BlendOpAdd,
	}
	switch mode {
	case metadata.BlendModeAlpha:
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		state.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
	case metadata.BlendModeAdditive:
		state.BlendEnable = vk.True
		state.SrcColorBlendFactor = vk.BlendFactorOne
		state.DstColorBlendFactor = vk.BlendFactorOne
	default:
		state.BlendEnable = vk.False
		state.SrcColorBlendFactor = vk.BlendFactorOne
		state.DstColorBlendFactor = vk.BlendFactorZero
	}
	return state
}

func NewGraphicsPipeline(context *VulkanContext, desc *metadata.GraphicsPipelineDesc) (*VulkanPipeline, error) {
	layout, err := asPipelineLayout(desc.Layout)
	if err != nil {
		return nil, err
	}
	output := desc.Output
	if output.DSVFormat != gputypes.TextureFormatUndefined {
		core.LogWarn("Pipeline %s requests a depth target, the offscreen target has none; depth is ignored", desc.Label)
	}

	var stages []vk.PipelineShaderStageCreateInfo
	vs, err := NewShaderStage(context, desc.VS)
	if err != nil {
		return nil, err
	}
	defer vs.Destroy(context)
	stages = append(stages, vs.ShaderStageCreateInfo)
	if desc.PS != nil {
		ps, err := NewShaderStage(context, desc.PS)
		if err != nil {
			return nil, err
		}
		defer ps.Destroy(context)
		stages = append(stages, ps.ShaderStageCreateInfo)
	}

	renderpass := context.MainRenderpass
	if !renderpass.Compatible(output.RTVFormats) {
		core.LogWarn("Pipeline %s targets %v, drawing into the %v offscreen target instead", desc.Label, output.RTVFormats, renderpass.ColorFormat)
	}

	// Viewport and scissor are dynamic, set when the offscreen pass begins.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}
	if output.Rasterizer.Wireframe {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}
	if output.Rasterizer.FrontCounterClockwise {
		rasterizerCreateInfo.FrontFace = vk.FrontFaceCounterClockwise
	}
	switch output.Rasterizer.CullMode {
	case metadata.FaceCullModeNone:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}

	attachments := []vk.PipelineColorBlendAttachmentState{vkBlendAttachment(output.Blend)}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertices are fetched from the payload buffers, never from vertex streams.
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vkTopology(output.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	pipeline := &VulkanPipeline{
		BindPoint: vk.PipelineBindPointGraphics,
		Layout:    layout,
		Topology:  output.Topology,
		label:     core.Label("GraphicsPipeline", desc.Label),
	}
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout.Handle,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return vkError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			context.Device.LogicalDevice,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pipelines))
	}); err != nil {
		return nil, err
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("Graphics pipeline %s created!", pipeline.label)
	return pipeline, nil
}

func (p *VulkanPipeline) Destroy(context *VulkanContext) {
	if p.Handle == nil {
		return
	}
	_ = lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = nil
		return nil
	})
}

func asPipeline(p metadata.Pipeline) (*VulkanPipeline, error) {
	vp, ok := p.(*VulkanPipeline)
	if !ok || vp == nil {
		return nil, fmt.Errorf("pipeline %T was not created by the vulkan backend: %w", p, core.ErrInvalidPipeline)
	}
	return vp, nil
}
