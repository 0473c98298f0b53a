package fallback

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/math"
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// PayloadSizes describes the capacity of the intermediate buffers.
type PayloadSizes struct {
	BatchSize     uint32
	BatchCapacity uint32
	VertexCount   uint32
	VertexStride  uint32
	IndexCount    uint32
	IndexFormat   gputypes.IndexFormat
	// RecordWords is the size of one batch record in 32-bit words.
	RecordWords uint32
	// DispatchWords covers every batch record plus one spare draw-arguments
	// header so the last record can be read as a full draw.
	DispatchWords uint32
}

// ComputePayloadSizes sizes the payloads for meshlet groups of at most
// groupVertCount vertices and groupPrimCount triangles.
func ComputePayloadSizes(maxMeshletCount, groupVertCount, groupPrimCount, vertexStride, batchSize uint32, format gputypes.IndexFormat) (PayloadSizes, error) {
	if maxMeshletCount == 0 || groupVertCount == 0 || groupPrimCount == 0 || vertexStride == 0 || batchSize == 0 {
		return PayloadSizes{}, fmt.Errorf("payload sizes must be non-zero: %w", core.ErrInvalidConfig)
	}
	capacity := math.DivUp(maxMeshletCount, batchSize)
	recordWords := metadata.BatchRecordWords(batchSize)
	return PayloadSizes{
		BatchSize:     batchSize,
		BatchCapacity: capacity,
		VertexCount:   groupVertCount * maxMeshletCount,
		VertexStride:  vertexStride,
		IndexCount:    3 * groupPrimCount * maxMeshletCount,
		IndexFormat:   format,
		RecordWords:   recordWords,
		DispatchWords: recordWords*capacity + metadata.DrawIndexedArgsWords,
	}, nil
}

func (s PayloadSizes) VertexBytes() uint64 {
	return uint64(s.VertexCount) * uint64(s.VertexStride)
}

func (s PayloadSizes) IndexBytes() uint64 {
	return uint64(s.IndexCount) * uint64(metadata.IndexSize(s.IndexFormat))
}

func (s PayloadSizes) DispatchBytes() uint64 {
	return uint64(s.DispatchWords) * 4
}

// RecordOffset is the byte offset of the record of the given batch.
func (s PayloadSizes) RecordOffset(batch uint32) uint64 {
	return uint64(batch) * uint64(s.RecordWords) * 4
}

// payloadBuffer tracks the last state a payload was transitioned to.
type payloadBuffer struct {
	buffer metadata.Buffer
	state  metadata.ResourceState
}

func newPayloadBuffer(device renderer.Device, desc *metadata.BufferDesc) (*payloadBuffer, error) {
	buffer, err := device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create payload buffer %s: %w", desc.Label, err)
	}
	return &payloadBuffer{buffer: buffer, state: desc.InitialState}, nil
}

// transition appends the barrier moving the payload to state. A payload that
// stays in the UAV state gets a UAV barrier, any other same-state request is a no-op.
func (p *payloadBuffer) transition(barriers []metadata.ResourceBarrier, state metadata.ResourceState, flags metadata.BarrierFlag) []metadata.ResourceBarrier {
	if p.state == state {
		if state == metadata.ResourceStateUnorderedAccess {
			return append(barriers, metadata.ResourceBarrier{Type: metadata.BarrierTypeUAV, Resource: p.buffer})
		}
		return barriers
	}
	b := metadata.ResourceBarrier{
		Type:     metadata.BarrierTypeTransition,
		Resource: p.buffer,
		Before:   p.state,
		After:    state,
		Flags:    flags,
	}
	p.state = state
	return append(barriers, b)
}

// payloads owns the three intermediate buffers and the tables that expose them.
type payloads struct {
	sizes    PayloadSizes
	vertex   *payloadBuffer
	index    *payloadBuffer
	dispatch *payloadBuffer
	uavTable metadata.DescriptorTable
	srvTable metadata.DescriptorTable
}

func createPayloads(device renderer.Device, sizes PayloadSizes) (*payloads, error) {
	p := &payloads{sizes: sizes}
	var err error

	p.vertex, err = newPayloadBuffer(device, &metadata.BufferDesc{
		Label:        "VertexPayloads",
		Size:         sizes.VertexBytes(),
		Stride:       sizes.VertexStride,
		Usage:        gputypes.BufferUsageStorage,
		InitialState: metadata.ResourceStateUnorderedAccess,
	})
	if err != nil {
		return nil, err
	}

	p.index, err = newPayloadBuffer(device, &metadata.BufferDesc{
		Label:        "IndexPayloads",
		Size:         sizes.IndexBytes(),
		Stride:       metadata.IndexSize(sizes.IndexFormat),
		Usage:        gputypes.BufferUsageStorage | gputypes.BufferUsageIndex,
		IndexFormat:  sizes.IndexFormat,
		InitialState: metadata.ResourceStateUnorderedAccess,
	})
	if err != nil {
		return nil, err
	}

	p.dispatch, err = newPayloadBuffer(device, &metadata.BufferDesc{
		Label:        "DispatchPayloads",
		Size:         sizes.DispatchBytes(),
		Stride:       4,
		Usage:        gputypes.BufferUsageStorage | gputypes.BufferUsageIndirect,
		InitialState: metadata.ResourceStateUnorderedAccess,
	})
	if err != nil {
		return nil, err
	}

	p.uavTable, err = device.CreateDescriptorTable(&metadata.DescriptorTableDesc{
		Label: "PayloadUAVs",
		Type:  metadata.DescriptorTypeUAV,
		Views: []metadata.BufferView{
			{Buffer: p.vertex.buffer},
			{Buffer: p.index.buffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payload UAV table: %w", err)
	}

	p.srvTable, err = device.CreateDescriptorTable(&metadata.DescriptorTableDesc{
		Label: "PayloadSRVs",
		Type:  metadata.DescriptorTypeSRV,
		Views: []metadata.BufferView{
			{Buffer: p.vertex.buffer},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payload SRV table: %w", err)
	}

	return p, nil
}

func (p *payloads) indexBufferView() metadata.IndexBufferView {
	return metadata.IndexBufferView{
		Buffer: p.index.buffer,
		Size:   p.sizes.IndexBytes(),
		Format: p.sizes.IndexFormat,
	}
}
