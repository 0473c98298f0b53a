package fallback

import (
	"fmt"

	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Pass is one of the three passes that together stand in for a mesh dispatch.
type Pass int

const (
	// AmplificationFallback runs the amplification stage as a compute dispatch.
	AmplificationFallback Pass = iota
	// MeshFallback runs the mesh stage as one indirect compute dispatch per batch.
	MeshFallback
	// RasterFallback draws the emitted vertices and indices with the pixel shader.
	RasterFallback
)

const passCount = 3

// Passes returns every pass in execution order.
func Passes() [passCount]Pass {
	return [passCount]Pass{AmplificationFallback, MeshFallback, RasterFallback}
}

func (p Pass) String() string {
	switch p {
	case AmplificationFallback:
		return "amplification-fallback"
	case MeshFallback:
		return "mesh-fallback"
	case RasterFallback:
		return "raster-fallback"
	}
	return fmt.Sprintf("Pass(%d)", int(p))
}

// SourceStage is the stage whose slots the pass keeps from the unified layout.
func (p Pass) SourceStage() metadata.ShaderStage {
	switch p {
	case AmplificationFallback:
		return metadata.ShaderStageAmplification
	case MeshFallback:
		return metadata.ShaderStageMesh
	case RasterFallback:
		return metadata.ShaderStagePixel
	}
	panic(fmt.Sprintf("fallback: unknown pass %d", int(p)))
}

// DestStage is the stage the kept slots are relabelled to.
func (p Pass) DestStage() metadata.ShaderStage {
	switch p {
	case AmplificationFallback, MeshFallback:
		return metadata.ShaderStageCompute
	case RasterFallback:
		return metadata.ShaderStagePixel
	}
	panic(fmt.Sprintf("fallback: unknown pass %d", int(p)))
}

func (p Pass) IsCompute() bool {
	return p.DestStage() == metadata.ShaderStageCompute
}

func (p Pass) index() int {
	switch p {
	case AmplificationFallback, MeshFallback, RasterFallback:
		return int(p)
	}
	panic(fmt.Sprintf("fallback: unknown pass %d", int(p)))
}
