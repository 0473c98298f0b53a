package fallback

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Layer emulates mesh dispatches on devices without mesh shaders, or forwards
// them unchanged when native mesh shading is available and enabled.
//
// Contexts begun from one Layer share its payload buffers, so record them
// from a single goroutine.
type Layer struct {
	device              renderer.Device
	meshShaderSupported bool
	useNative           bool
	payloads            *payloads
	metrics             core.Metrics
}

func New(device renderer.Device, meshShaderSupported bool) *Layer {
	return &Layer{
		device:              device,
		meshShaderSupported: meshShaderSupported,
		useNative:           meshShaderSupported,
	}
}

// Init creates the payload buffers with 16-bit indices.
func (l *Layer) Init(maxMeshletCount, groupVertCount, groupPrimCount, vertexStride, batchSize uint32) error {
	return l.init(maxMeshletCount, groupVertCount, groupPrimCount, vertexStride, batchSize, gputypes.IndexFormatUint16)
}

func (l *Layer) InitWithConfig(cfg *core.PayloadSection) error {
	format := gputypes.IndexFormatUint16
	switch cfg.IndexFormat {
	case "", "uint16":
	case "uint32":
		format = gputypes.IndexFormatUint32
	default:
		return fmt.Errorf("index format %q: %w", cfg.IndexFormat, core.ErrInvalidConfig)
	}
	return l.init(cfg.MaxMeshletCount, cfg.GroupVertexCount, cfg.GroupPrimitiveCount, cfg.VertexStride, cfg.BatchSize, format)
}

func (l *Layer) init(maxMeshletCount, groupVertCount, groupPrimCount, vertexStride, batchSize uint32, format gputypes.IndexFormat) error {
	sizes, err := ComputePayloadSizes(maxMeshletCount, groupVertCount, groupPrimCount, vertexStride, batchSize, format)
	if err != nil {
		return err
	}
	// The mesh pass reads the meshlet list through a root SRV past the first record's arguments.
	meshletOffset := uint64(metadata.BatchRecordMeshletOffset) * 4
	if a := l.device.StorageBufferOffsetAlignment(); a > 1 && meshletOffset%a != 0 {
		return fmt.Errorf("dispatch payload meshlets at byte %d, device aligns storage views to %d: %w", meshletOffset, a, core.ErrSlotOutOfRange)
	}
	p, err := createPayloads(l.device, sizes)
	if err != nil {
		core.LogError("Fallback payload creation failed: %s", err)
		return err
	}
	l.payloads = p
	core.LogDebug("Fallback payloads: %d vertices x %d bytes, %d indices, %d batches of %d meshlets",
		sizes.VertexCount, sizes.VertexStride, sizes.IndexCount, sizes.BatchCapacity, sizes.BatchSize)
	return nil
}

// EnableNativeMeshShader selects the native path. It has no effect on devices
// without mesh shader support. Contexts already begun keep their mode.
func (l *Layer) EnableNativeMeshShader(enable bool) {
	l.useNative = enable && l.meshShaderSupported
}

func (l *Layer) UsesNative() bool {
	return l.useNative
}

func (l *Layer) MeshShaderSupported() bool {
	return l.meshShaderSupported
}

// PayloadSizes reports the payload capacity. The zero value before Init.
func (l *Layer) PayloadSizes() PayloadSizes {
	if l.payloads == nil {
		return PayloadSizes{}
	}
	return l.payloads.sizes
}

func (l *Layer) Metrics() core.MetricsSnapshot {
	return l.metrics.Snapshot()
}

// Begin starts recording mesh work into cl.
func (l *Layer) Begin(cl renderer.CommandList) *Context {
	return &Context{
		layer:  l,
		cl:     cl,
		native: l.useNative,
		state:  StateIdle,
	}
}
