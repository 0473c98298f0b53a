package metadata

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

/**
 * @brief Opaque GPU buffer owned by a backend.
 */
type Buffer interface {
	Label() string
	/** @brief Size in bytes. */
	Size() uint64
	/** @brief Element stride in bytes, 0 for raw buffers. */
	Stride() uint32
}

/** @brief Opaque descriptor table owned by a backend. */
type DescriptorTable interface {
	Label() string
}

/** @brief Compiled pipeline layout owned by a backend. */
type PipelineLayout interface {
	Label() string
}

/** @brief Compiled pipeline state object owned by a backend. */
type Pipeline interface {
	Label() string
}

/**
 * @brief How a resource is being used by the GPU. Values combine as flags.
 */
type ResourceState uint32

const (
	ResourceStateCommon                  ResourceState = 0
	ResourceStateVertexAndConstantBuffer ResourceState = 1 << 0
	ResourceStateIndexBuffer             ResourceState = 1 << 1
	ResourceStateUnorderedAccess         ResourceState = 1 << 2
	ResourceStateNonPixelShaderResource  ResourceState = 1 << 3
	ResourceStatePixelShaderResource     ResourceState = 1 << 4
	ResourceStateIndirectArgument        ResourceState = 1 << 5
	ResourceStateCopyDest                ResourceState = 1 << 6
	ResourceStateCopySource              ResourceState = 1 << 7
)

func (s ResourceState) String() string {
	if s == ResourceStateCommon {
		return "common"
	}
	names := []string{"vertex-constant", "index", "uav", "non-pixel-srv", "pixel-srv", "indirect", "copy-dst", "copy-src"}
	var parts []string
	for i, n := range names {
		if s&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("ResourceState(%#x)", uint32(s))
	}
	return strings.Join(parts, "|")
}

type BarrierType int

const (
	BarrierTypeTransition BarrierType = iota
	/** @brief Orders UAV accesses on a resource that stays in the UAV state. */
	BarrierTypeUAV
)

type BarrierFlag uint32

const (
	BarrierFlagNone BarrierFlag = 0
	/** @brief The previous contents are discarded, the source state is treated as undefined. */
	BarrierFlagResetSrcState BarrierFlag = 1 << 0
)

type ResourceBarrier struct {
	Type     BarrierType
	Resource Buffer
	Before   ResourceState
	After    ResourceState
	Flags    BarrierFlag
}

func (b ResourceBarrier) String() string {
	if b.Type == BarrierTypeUAV {
		return fmt.Sprintf("uav(%s)", b.Resource.Label())
	}
	return fmt.Sprintf("%s: %s -> %s", b.Resource.Label(), b.Before, b.After)
}

type BufferDesc struct {
	Label  string
	Size   uint64
	Stride uint32
	Usage  gputypes.BufferUsage
	/** @brief Only meaningful for buffers created with the index usage. */
	IndexFormat  gputypes.IndexFormat
	InitialState ResourceState
}

/**
 * @brief A range of a buffer as seen by a descriptor.
 */
type BufferView struct {
	Buffer Buffer
	Offset uint64
	/** @brief Size in bytes, 0 for the rest of the buffer. */
	Size uint64
}

type DescriptorTableDesc struct {
	Label string
	/** @brief SRV, UAV or CBV. Every view of a table shares the type. */
	Type  DescriptorType
	Views []BufferView
}

type IndexBufferView struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
	Format gputypes.IndexFormat
}

// IndexSize returns the byte size of one index of the given format.
func IndexSize(format gputypes.IndexFormat) uint32 {
	if format == gputypes.IndexFormatUint16 {
		return 2
	}
	return 4
}
