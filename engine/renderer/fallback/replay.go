package fallback

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// emulate records the three fallback passes. Nothing is recorded when it fails.
// A missing payload or pipeline is kept as the context error, an oversized
// dispatch is only rejected.
func (c *Context) emulate(x, y, z uint32) error {
	p := c.layer.payloads
	if p == nil {
		c.fail(fmt.Errorf("DispatchMesh before Init: %w", core.ErrNotInitialized))
		return c.err
	}
	if c.pipeline.Fallback(MeshFallback) == nil || c.pipeline.Fallback(RasterFallback) == nil {
		c.fail(fmt.Errorf("DispatchMesh with pipeline %q: %w", c.pipeline.Label(), core.ErrMissingFallbackPipeline))
		return c.err
	}

	groups := uint64(x) * uint64(y) * uint64(z)
	if groups > uint64(p.sizes.BatchCapacity) {
		return fmt.Errorf("%d groups, capacity %d: %w", groups, p.sizes.BatchCapacity, core.ErrPayloadOverflow)
	}
	if groups == 0 {
		return nil
	}
	batchCount := uint32(groups)

	barriers := make([]metadata.ResourceBarrier, 0, 3)

	if as := c.pipeline.Fallback(AmplificationFallback); as != nil {
		barriers = p.dispatch.transition(barriers[:0], metadata.ResourceStateUnorderedAccess, metadata.BarrierFlagNone)
		c.barrier(barriers)

		b := binderFor(c.cl, AmplificationFallback)
		b.setLayout(c.layout.Fallback(AmplificationFallback))
		b.replay(c.Pending(AmplificationFallback))
		b.setUAV(c.layout.PayloadSlot(AmplificationFallback), p.dispatch.buffer, 0)

		c.cl.SetPipelineState(as)
		c.cl.Dispatch(x, y, z)
	}

	barriers = p.vertex.transition(barriers[:0], metadata.ResourceStateUnorderedAccess, metadata.BarrierFlagResetSrcState)
	barriers = p.index.transition(barriers, metadata.ResourceStateUnorderedAccess, metadata.BarrierFlagResetSrcState)
	barriers = p.dispatch.transition(barriers, metadata.ResourceStateIndirectArgument|metadata.ResourceStateNonPixelShaderResource, metadata.BarrierFlagNone)
	c.barrier(barriers)

	// Mesh stage, one indirect dispatch per batch record.
	{
		b := binderFor(c.cl, MeshFallback)
		b.setLayout(c.layout.Fallback(MeshFallback))
		b.replay(c.Pending(MeshFallback))
		b.setTable(c.layout.PayloadSlot(MeshFallback), p.uavTable)
		b.setSRV(c.layout.PayloadSRVSlot(), p.dispatch.buffer, uint64(metadata.BatchRecordMeshletOffset)*4)

		c.cl.SetPipelineState(c.pipeline.Fallback(MeshFallback))
		batchSlot := c.layout.BatchIndexSlot(MeshFallback)
		for i := uint32(0); i < batchCount; i++ {
			b.setConstant(batchSlot, i, 0)
			c.cl.DispatchIndirect(p.dispatch.buffer, p.sizes.RecordOffset(i)+uint64(metadata.BatchRecordDispatchOffset)*4)
		}
	}

	barriers = p.vertex.transition(barriers[:0], metadata.ResourceStateNonPixelShaderResource, metadata.BarrierFlagNone)
	barriers = p.index.transition(barriers, metadata.ResourceStateIndexBuffer, metadata.BarrierFlagNone)
	c.barrier(barriers)

	// Raster stage, one indirect draw per batch record.
	{
		b := binderFor(c.cl, RasterFallback)
		b.setLayout(c.layout.Fallback(RasterFallback))
		b.replay(c.Pending(RasterFallback))
		b.setTable(c.layout.PayloadSlot(RasterFallback), p.srvTable)

		c.cl.SetPipelineState(c.pipeline.Fallback(RasterFallback))
		c.cl.IASetPrimitiveTopology(gputypes.PrimitiveTopologyTriangleList)
		c.cl.IASetIndexBuffer(p.indexBufferView())
		batchSlot := c.layout.BatchIndexSlot(RasterFallback)
		for i := uint32(0); i < batchCount; i++ {
			b.setConstant(batchSlot, i, 0)
			c.cl.DrawIndexedIndirect(p.dispatch.buffer, p.sizes.RecordOffset(i))
		}
	}

	c.layer.metrics.EmulatedDispatches.Add(1)
	c.layer.metrics.Batches.Add(uint64(batchCount))
	return nil
}

func (c *Context) barrier(barriers []metadata.ResourceBarrier) {
	if len(barriers) == 0 {
		return
	}
	c.cl.Barrier(barriers)
	c.layer.metrics.Barriers.Add(uint64(len(barriers)))
}
