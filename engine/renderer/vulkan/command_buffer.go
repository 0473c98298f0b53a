package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

// VulkanCommandBuffer records a frame. Draws open the offscreen render pass
// on demand; dispatches and barriers close it again.
//
// Misuse that the command list interface cannot report (foreign handles,
// wrong slot kinds, mesh dispatches) is kept as the first error and returned
// by Err and by EndFrame.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	context        *VulkanContext
	computeLayout  *VulkanPipelineLayout
	graphicsLayout *VulkanPipelineLayout
	pipeline       *VulkanPipeline
	topology       gputypes.PrimitiveTopology
	cleared        bool
	err            error
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
		context: context,
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := lockPool.SafeCall(CommandBufferManagement, func() error {
		return vkError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles))
	}); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle == nil {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	vBeginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}

	if isSingleUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := vkError("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, vBeginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	v.computeLayout = nil
	v.graphicsLayout = nil
	v.pipeline = nil
	v.topology = gputypes.PrimitiveTopologyTriangleList
	v.cleared = false
	v.err = nil

	return nil
}

func (v *VulkanCommandBuffer) End() error {
	v.endRenderPass()
	if err := vkError("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

// Submit ends recording and submits to queue, signaling fence on completion.
func (v *VulkanCommandBuffer) Submit(queueIndex uint32, queue vk.Queue, fence *VulkanFence) error {
	if err := v.End(); err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	if err := lockPool.SafeQueueCall(queueIndex, func() error {
		return vkError("vkQueueSubmit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	}); err != nil {
		return err
	}
	v.UpdateSubmitted()
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

// Err returns the first recording error since Begin.
func (v *VulkanCommandBuffer) Err() error {
	return v.err
}

func (v *VulkanCommandBuffer) fail(err error) {
	if v.err == nil {
		core.LogError("Command buffer: %s", err)
		v.err = err
	}
}

func (v *VulkanCommandBuffer) beginRenderPass() {
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return
	}
	v.context.MainRenderpass.RenderpassBegin(v, v.context.Framebuffer)
	if !v.cleared {
		v.context.MainRenderpass.RenderpassClear(v)
		v.cleared = true
	}
}

func (v *VulkanCommandBuffer) endRenderPass() {
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		v.context.MainRenderpass.RenderpassEnd(v)
	}
}

func (v *VulkanCommandBuffer) SetComputePipelineLayout(layout metadata.PipelineLayout) {
	l, err := asPipelineLayout(layout)
	if err != nil {
		v.fail(err)
		return
	}
	v.computeLayout = l
}

func (v *VulkanCommandBuffer) SetGraphicsPipelineLayout(layout metadata.PipelineLayout) {
	l, err := asPipelineLayout(layout)
	if err != nil {
		v.fail(err)
		return
	}
	v.graphicsLayout = l
}

func (v *VulkanCommandBuffer) SetPipelineState(pipeline metadata.Pipeline) {
	p, err := asPipeline(pipeline)
	if err != nil {
		v.fail(err)
		return
	}
	v.pipeline = p
	vk.CmdBindPipeline(v.Handle, p.BindPoint, p.Handle)
}

func (v *VulkanCommandBuffer) layoutFor(bindPoint vk.PipelineBindPoint) *VulkanPipelineLayout {
	if bindPoint == vk.PipelineBindPointCompute {
		return v.computeLayout
	}
	return v.graphicsLayout
}

// slotFor resolves index in the layout bound at bindPoint and checks its kind.
func (v *VulkanCommandBuffer) slotFor(bindPoint vk.PipelineBindPoint, index uint32, kind metadata.SlotKind) (*VulkanPipelineLayout, slotBinding, bool) {
	layout := v.layoutFor(bindPoint)
	if layout == nil {
		v.fail(fmt.Errorf("binding slot %d without a pipeline layout: %w", index, core.ErrInvalidState))
		return nil, slotBinding{}, false
	}
	slot, err := layout.slot(index)
	if err != nil {
		v.fail(err)
		return nil, slotBinding{}, false
	}
	if slot.kind != kind {
		v.fail(fmt.Errorf("slot %d of %s is %s, bound as %s: %w", index, layout.Label(), slot.kind, kind, core.ErrSlotKindMismatch))
		return nil, slotBinding{}, false
	}
	return layout, slot, true
}

func (v *VulkanCommandBuffer) bindSet(bindPoint vk.PipelineBindPoint, layout *VulkanPipelineLayout, slot slotBinding, write func(set vk.DescriptorSet)) {
	set, err := allocateSet(v.context, v.context.DescriptorPool, slot.setLayout)
	if err != nil {
		v.fail(err)
		return
	}
	write(set)
	vk.CmdBindDescriptorSets(v.Handle, bindPoint, layout.Handle, slot.set, 1, []vk.DescriptorSet{set}, 0, nil)
}

func (v *VulkanCommandBuffer) setTable(bindPoint vk.PipelineBindPoint, index uint32, table metadata.DescriptorTable) {
	t, err := asDescriptorTable(table)
	if err != nil {
		v.fail(err)
		return
	}
	layout, slot, ok := v.slotFor(bindPoint, index, metadata.SlotKindTable)
	if !ok {
		return
	}
	v.bindSet(bindPoint, layout, slot, func(set vk.DescriptorSet) {
		// Views fill the ranges in order, as descriptors of a table are contiguous.
		infos := t.Infos
		for r, rng := range slot.ranges {
			n := min(int(rng.count), len(infos))
			writeBuffers(v.context, set, uint32(r), rng.descriptor, infos[:n])
			infos = infos[n:]
		}
	})
}

func (v *VulkanCommandBuffer) setConstants(bindPoint vk.PipelineBindPoint, index uint32, data []uint32, destOffset uint32) {
	layout, slot, ok := v.slotFor(bindPoint, index, metadata.SlotKindConstant)
	if !ok || len(data) == 0 {
		return
	}
	if uint64(destOffset)+uint64(len(data)) > uint64(slot.pushSize/4) {
		v.fail(fmt.Errorf("%d constants at %d overflow slot %d of %s: %w", len(data), destOffset, index, layout.Label(), core.ErrSlotOutOfRange))
		return
	}
	vk.CmdPushConstants(v.Handle, layout.Handle, slot.stages,
		slot.pushOffset+destOffset*4, uint32(len(data)*4), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) setRootView(bindPoint vk.PipelineBindPoint, index uint32, kind metadata.SlotKind, buffer metadata.Buffer, offset uint64) {
	b, err := asBuffer(buffer)
	if err != nil {
		v.fail(err)
		return
	}
	layout, slot, ok := v.slotFor(bindPoint, index, kind)
	if !ok {
		return
	}
	if err := checkViewOffset(kind, offset, v.context.Device.UniformAlignment, v.context.Device.StorageAlignment); err != nil {
		v.fail(fmt.Errorf("slot %d of %s: %w", index, layout.Label(), err))
		return
	}
	v.bindSet(bindPoint, layout, slot, func(set vk.DescriptorSet) {
		writeBuffers(v.context, set, 0, slot.ranges[0].descriptor, []vk.DescriptorBufferInfo{bufferInfo(b, offset, 0)})
	})
}

func (v *VulkanCommandBuffer) SetComputeDescriptorTable(index uint32, table metadata.DescriptorTable) {
	v.setTable(vk.PipelineBindPointCompute, index, table)
}

func (v *VulkanCommandBuffer) SetGraphicsDescriptorTable(index uint32, table metadata.DescriptorTable) {
	v.setTable(vk.PipelineBindPointGraphics, index, table)
}

func (v *VulkanCommandBuffer) SetCompute32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32) {
	v.setConstants(vk.PipelineBindPointCompute, index, []uint32{srcData}, destOffsetIn32BitValues)
}

func (v *VulkanCommandBuffer) SetGraphics32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32) {
	v.setConstants(vk.PipelineBindPointGraphics, index, []uint32{srcData}, destOffsetIn32BitValues)
}

func (v *VulkanCommandBuffer) SetCompute32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32) {
	v.setConstants(vk.PipelineBindPointCompute, index, srcData, destOffsetIn32BitValues)
}

func (v *VulkanCommandBuffer) SetGraphics32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32) {
	v.setConstants(vk.PipelineBindPointGraphics, index, srcData, destOffsetIn32BitValues)
}

func (v *VulkanCommandBuffer) SetComputeRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64) {
	v.setRootView(vk.PipelineBindPointCompute, index, metadata.SlotKindRootCBV, buffer, offset)
}

func (v *VulkanCommandBuffer) SetGraphicsRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64) {
	v.setRootView(vk.PipelineBindPointGraphics, index, metadata.SlotKindRootCBV, buffer, offset)
}

func (v *VulkanCommandBuffer) SetComputeRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64) {
	v.setRootView(vk.PipelineBindPointCompute, index, metadata.SlotKindRootSRV, buffer, offset)
}

func (v *VulkanCommandBuffer) SetGraphicsRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64) {
	v.setRootView(vk.PipelineBindPointGraphics, index, metadata.SlotKindRootSRV, buffer, offset)
}

func (v *VulkanCommandBuffer) SetComputeRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64) {
	v.setRootView(vk.PipelineBindPointCompute, index, metadata.SlotKindRootUAV, buffer, offset)
}

func (v *VulkanCommandBuffer) SetGraphicsRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64) {
	v.setRootView(vk.PipelineBindPointGraphics, index, metadata.SlotKindRootUAV, buffer, offset)
}

var stateAccess = []struct {
	state  metadata.ResourceState
	access vk.AccessFlagBits
	stage  vk.PipelineStageFlagBits
}{
	{metadata.ResourceStateVertexAndConstantBuffer, vk.AccessVertexAttributeReadBit | vk.AccessUniformReadBit, vk.PipelineStageVertexInputBit | vk.PipelineStageVertexShaderBit},
	{metadata.ResourceStateIndexBuffer, vk.AccessIndexReadBit, vk.PipelineStageVertexInputBit},
	{metadata.ResourceStateUnorderedAccess, vk.AccessShaderReadBit | vk.AccessShaderWriteBit, vk.PipelineStageComputeShaderBit},
	{metadata.ResourceStateNonPixelShaderResource, vk.AccessShaderReadBit, vk.PipelineStageVertexShaderBit | vk.PipelineStageComputeShaderBit},
	{metadata.ResourceStatePixelShaderResource, vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit},
	{metadata.ResourceStateIndirectArgument, vk.AccessIndirectCommandReadBit, vk.PipelineStageDrawIndirectBit},
	{metadata.ResourceStateCopyDest, vk.AccessTransferWriteBit, vk.PipelineStageTransferBit},
	{metadata.ResourceStateCopySource, vk.AccessTransferReadBit, vk.PipelineStageTransferBit},
}

// accessFor maps a combined resource state to the accesses and stages that use it.
func accessFor(state metadata.ResourceState) (vk.AccessFlags, vk.PipelineStageFlags) {
	var access vk.AccessFlagBits
	var stage vk.PipelineStageFlagBits
	for _, s := range stateAccess {
		if state&s.state != 0 {
			access |= s.access
			stage |= s.stage
		}
	}
	if stage == 0 {
		stage = vk.PipelineStageTopOfPipeBit
	}
	return vk.AccessFlags(access), vk.PipelineStageFlags(stage)
}

func (v *VulkanCommandBuffer) Barrier(barriers []metadata.ResourceBarrier) {
	if len(barriers) == 0 {
		return
	}
	v.endRenderPass()

	var srcStages, dstStages vk.PipelineStageFlags
	bufferBarriers := make([]vk.BufferMemoryBarrier, 0, len(barriers))
	for _, b := range barriers {
		buffer, err := asBuffer(b.Resource)
		if err != nil {
			v.fail(err)
			return
		}

		var srcAccess, dstAccess vk.AccessFlags
		var srcStage, dstStage vk.PipelineStageFlags
		switch {
		case b.Type == metadata.BarrierTypeUAV:
			srcAccess = vk.AccessFlags(vk.AccessShaderWriteBit)
			dstAccess = vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit)
			srcStage = vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
			dstStage = vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
		case b.Flags&metadata.BarrierFlagResetSrcState != 0:
			// Discarded contents need no availability operation.
			srcStage = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
			dstAccess, dstStage = accessFor(b.After)
		default:
			srcAccess, srcStage = accessFor(b.Before)
			dstAccess, dstStage = accessFor(b.After)
		}
		srcStages |= srcStage
		dstStages |= dstStage

		bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              buffer.Handle,
			Offset:              0,
			Size:                vk.DeviceSize(vk.WholeSize),
		})
	}

	vk.CmdPipelineBarrier(v.Handle, srcStages, dstStages, 0,
		0, nil,
		uint32(len(bufferBarriers)), bufferBarriers,
		0, nil)
}

func (v *VulkanCommandBuffer) Dispatch(x, y, z uint32) {
	v.endRenderPass()
	vk.CmdDispatch(v.Handle, x, y, z)
}

func (v *VulkanCommandBuffer) DispatchIndirect(args metadata.Buffer, offset uint64) {
	b, err := asBuffer(args)
	if err != nil {
		v.fail(err)
		return
	}
	v.endRenderPass()
	vk.CmdDispatchIndirect(v.Handle, b.Handle, vk.DeviceSize(offset))
}

// IASetPrimitiveTopology records the topology. Vulkan bakes it into the
// pipeline, so a mismatch is only reported.
func (v *VulkanCommandBuffer) IASetPrimitiveTopology(topology gputypes.PrimitiveTopology) {
	v.topology = topology
	if v.pipeline != nil && v.pipeline.BindPoint == vk.PipelineBindPointGraphics && v.pipeline.Topology != topology {
		core.LogDebug("Topology %v differs from the %v baked into %s", topology, v.pipeline.Topology, v.pipeline.Label())
	}
}

func (v *VulkanCommandBuffer) IASetIndexBuffer(view metadata.IndexBufferView) {
	b, err := asBuffer(view.Buffer)
	if err != nil {
		v.fail(err)
		return
	}
	indexType := vk.IndexTypeUint32
	if view.Format == gputypes.IndexFormatUint16 {
		indexType = vk.IndexTypeUint16
	}
	vk.CmdBindIndexBuffer(v.Handle, b.Handle, vk.DeviceSize(view.Offset), indexType)
}

func (v *VulkanCommandBuffer) DrawIndexedIndirect(args metadata.Buffer, offset uint64) {
	b, err := asBuffer(args)
	if err != nil {
		v.fail(err)
		return
	}
	v.beginRenderPass()
	vk.CmdDrawIndexedIndirect(v.Handle, b.Handle, vk.DeviceSize(offset), 1, metadata.DrawIndexedArgsWords*4)
}

// DispatchMesh cannot be recorded, the device never reports mesh shader support.
func (v *VulkanCommandBuffer) DispatchMesh(x, y, z uint32) {
	v.fail(fmt.Errorf("DispatchMesh(%d, %d, %d): %w", x, y, z, core.ErrMeshShaderUnsupported))
}
