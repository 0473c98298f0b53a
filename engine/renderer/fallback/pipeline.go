package fallback

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Pipeline bundles the native mesh pipeline with the fallback pipelines.
// The amplification fallback is nil when the mesh pipeline has no amplification stage.
type Pipeline struct {
	label     string
	native    metadata.Pipeline
	fallbacks [passCount]metadata.Pipeline
}

func (p *Pipeline) Label() string { return p.label }

func (p *Pipeline) IsValid(meshShaderSupported bool) bool {
	if p == nil {
		return false
	}
	return (p.native != nil) == meshShaderSupported &&
		p.fallbacks[MeshFallback.index()] != nil &&
		p.fallbacks[RasterFallback.index()] != nil
}

func (p *Pipeline) Native() metadata.Pipeline {
	return p.native
}

func (p *Pipeline) Fallback(pass Pass) metadata.Pipeline {
	return p.fallbacks[pass.index()]
}

// FallbackShaders are the shaders run in place of the mesh pipeline stages:
// the amplification and mesh stages rewritten as compute shaders and the
// vertex shader that reads the vertex payload.
type FallbackShaders struct {
	AS *metadata.ShaderBlob
	MS *metadata.ShaderBlob
	VS *metadata.ShaderBlob
}

// GetPipeline creates the pipelines of every pass. The raster pipeline takes
// its pixel shader and fixed-function state from state.
func (l *Layer) GetPipeline(layout *PipelineLayout, shaders FallbackShaders, state *metadata.MeshShaderStateDesc) (*Pipeline, error) {
	if !layout.IsValid(l.meshShaderSupported) {
		return nil, core.ErrInvalidPipelineLayout
	}
	if state == nil {
		return nil, fmt.Errorf("nil mesh shader state: %w", core.ErrInvalidPipeline)
	}
	if state.Version != metadata.MeshShaderStateVersion {
		return nil, fmt.Errorf("mesh shader state version %d, expected %d: %w", state.Version, metadata.MeshShaderStateVersion, core.ErrInvalidPipeline)
	}
	if shaders.MS == nil || shaders.VS == nil {
		return nil, core.ErrMissingFallbackPipeline
	}

	name := core.Label("MeshPipeline", state.Label)
	pipeline := &Pipeline{label: name}

	if l.meshShaderSupported {
		native := *state
		native.Label = name + "_Native"
		native.Layout = layout.Native()
		p, err := l.device.CreateMeshPipeline(&native)
		if err != nil {
			return nil, fmt.Errorf("failed to create native pipeline %s: %w", name, err)
		}
		pipeline.native = p
	}

	if shaders.AS != nil {
		p, err := l.device.CreateComputePipeline(&metadata.ComputePipelineDesc{
			Label:  name + "_FallbackAS",
			Layout: layout.Fallback(AmplificationFallback),
			CS:     shaders.AS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create amplification fallback %s: %w", name, err)
		}
		pipeline.fallbacks[AmplificationFallback.index()] = p
	}

	p, err := l.device.CreateComputePipeline(&metadata.ComputePipelineDesc{
		Label:  name + "_FallbackMS",
		Layout: layout.Fallback(MeshFallback),
		CS:     shaders.MS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh fallback %s: %w", name, err)
	}
	pipeline.fallbacks[MeshFallback.index()] = p

	output := state.Output
	output.Topology = gputypes.PrimitiveTopologyTriangleList
	p, err = l.device.CreateGraphicsPipeline(&metadata.GraphicsPipelineDesc{
		Label:  name + "_FallbackPS",
		Layout: layout.Fallback(RasterFallback),
		VS:     shaders.VS,
		PS:     state.PS,
		Output: output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create raster fallback %s: %w", name, err)
	}
	pipeline.fallbacks[RasterFallback.index()] = p

	core.LogDebug("Fallback pipeline %s created (amplification: %t)", name, shaders.AS != nil)
	return pipeline, nil
}
