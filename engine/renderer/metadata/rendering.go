package metadata

import "github.com/gogpu/gputypes"

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

type BlendMode int

const (
	BlendModeOpaque BlendMode = iota
	BlendModeAlpha
	BlendModeAdditive
)

type RasterizerDesc struct {
	CullMode              FaceCullMode
	Wireframe             bool
	FrontCounterClockwise bool
}

type DepthStencilDesc struct {
	DepthEnable bool
	DepthWrite  bool
}

/**
 * @brief Fixed-function state shared by graphics and mesh pipelines.
 */
type OutputState struct {
	Blend        BlendMode
	Rasterizer   RasterizerDesc
	DepthStencil DepthStencilDesc
	Topology     gputypes.PrimitiveTopology
	/** @brief Formats of the bound render targets, in slot order. */
	RTVFormats  []gputypes.TextureFormat
	DSVFormat   gputypes.TextureFormat
	SampleCount uint32
	SampleMask  uint32
	/** @brief Driver pipeline cache blob, may be nil. */
	CachedBlob []byte
}

type ComputePipelineDesc struct {
	Label  string
	Layout PipelineLayout
	CS     *ShaderBlob
}

type GraphicsPipelineDesc struct {
	Label  string
	Layout PipelineLayout
	VS     *ShaderBlob
	/** @brief May be nil for depth-only passes. */
	PS     *ShaderBlob
	Output OutputState
}

const MeshShaderStateVersion uint32 = 1

/**
 * @brief Description of a native mesh pipeline. The fallback pipelines copy
 * the pixel shader and the fixed-function state from it.
 */
type MeshShaderStateDesc struct {
	Version uint32
	Label   string
	/** @brief The native layout. Ignored by the fallback path. */
	Layout PipelineLayout
	/** @brief May be nil when the pipeline has no amplification stage. */
	AS     *ShaderBlob
	MS     *ShaderBlob
	PS     *ShaderBlob
	Output OutputState
}
