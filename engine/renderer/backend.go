package renderer

import (
	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Device creates the GPU objects the fallback layer needs. Implementations
// return an error instead of a nil handle when creation fails.
type Device interface {
	SupportsMeshShader() bool
	// StorageBufferOffsetAlignment is the byte alignment of root SRV and UAV offsets.
	StorageBufferOffsetAlignment() uint64
	CreateBuffer(desc *metadata.BufferDesc) (metadata.Buffer, error)
	CreateDescriptorTable(desc *metadata.DescriptorTableDesc) (metadata.DescriptorTable, error)
	CreatePipelineLayout(desc *metadata.PipelineLayoutDesc) (metadata.PipelineLayout, error)
	CreateComputePipeline(desc *metadata.ComputePipelineDesc) (metadata.Pipeline, error)
	CreateGraphicsPipeline(desc *metadata.GraphicsPipelineDesc) (metadata.Pipeline, error)
	CreateMeshPipeline(desc *metadata.MeshShaderStateDesc) (metadata.Pipeline, error)
}

// CommandList records GPU work. Calls are not safe for concurrent use.
// Offsets of root views are in bytes.
type CommandList interface {
	SetComputePipelineLayout(layout metadata.PipelineLayout)
	SetGraphicsPipelineLayout(layout metadata.PipelineLayout)
	SetPipelineState(pipeline metadata.Pipeline)

	SetComputeDescriptorTable(index uint32, table metadata.DescriptorTable)
	SetGraphicsDescriptorTable(index uint32, table metadata.DescriptorTable)
	SetCompute32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32)
	SetGraphics32BitConstant(index uint32, srcData uint32, destOffsetIn32BitValues uint32)
	SetCompute32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32)
	SetGraphics32BitConstants(index uint32, srcData []uint32, destOffsetIn32BitValues uint32)
	SetComputeRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64)
	SetGraphicsRootConstantBufferView(index uint32, buffer metadata.Buffer, offset uint64)
	SetComputeRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64)
	SetGraphicsRootShaderResourceView(index uint32, buffer metadata.Buffer, offset uint64)
	SetComputeRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64)
	SetGraphicsRootUnorderedAccessView(index uint32, buffer metadata.Buffer, offset uint64)

	Barrier(barriers []metadata.ResourceBarrier)

	Dispatch(x, y, z uint32)
	DispatchIndirect(args metadata.Buffer, offset uint64)
	IASetPrimitiveTopology(topology gputypes.PrimitiveTopology)
	IASetIndexBuffer(view metadata.IndexBufferView)
	DrawIndexedIndirect(args metadata.Buffer, offset uint64)
	DispatchMesh(x, y, z uint32)
}
