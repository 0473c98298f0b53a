package fallback

import (
	"fmt"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// PipelineLayout bundles the native layout of a mesh pipeline with the three
// layouts derived from it for the fallback passes. Immutable once built.
type PipelineLayout struct {
	label     string
	unified   []metadata.LayoutSlot
	native    metadata.PipelineLayout
	fallbacks [passCount]metadata.PipelineLayout
	descs     [passCount]*metadata.PipelineLayoutDesc
	indexMaps [passCount]IndexMap
	synthetic [passCount]syntheticSlots
}

func (l *PipelineLayout) Label() string { return l.label }

// IsValid reports whether the bundle is usable on a device with the given mesh shader support.
func (l *PipelineLayout) IsValid(meshShaderSupported bool) bool {
	if l == nil {
		return false
	}
	if (l.native != nil) != meshShaderSupported {
		return false
	}
	for _, f := range l.fallbacks {
		if f == nil {
			return false
		}
	}
	return true
}

func (l *PipelineLayout) Native() metadata.PipelineLayout {
	return l.native
}

func (l *PipelineLayout) Fallback(pass Pass) metadata.PipelineLayout {
	return l.fallbacks[pass.index()]
}

// Desc returns the derived description the fallback layout of the pass was compiled from.
func (l *PipelineLayout) Desc(pass Pass) *metadata.PipelineLayoutDesc {
	return l.descs[pass.index()]
}

func (l *PipelineLayout) IndexMap(pass Pass) IndexMap {
	return l.indexMaps[pass.index()]
}

// PayloadSlot is the derived slot the pass's payload binding goes to: the
// dispatch payload UAV for the amplification pass, the payload UAV table for
// the mesh pass and the vertex payload SRV table for the raster pass.
func (l *PipelineLayout) PayloadSlot(pass Pass) uint32 {
	return l.synthetic[pass.index()].payload
}

// PayloadSRVSlot is the mesh pass slot reading the dispatch payload.
func (l *PipelineLayout) PayloadSRVSlot() uint32 {
	return l.synthetic[MeshFallback.index()].payloadSRV
}

// BatchIndexSlot is InvalidIndex for the amplification pass.
func (l *PipelineLayout) BatchIndexSlot(pass Pass) uint32 {
	return l.synthetic[pass.index()].batchIndex
}

// Len is the number of unified slots.
func (l *PipelineLayout) Len() uint32 {
	return uint32(len(l.unified))
}

func (l *PipelineLayout) slot(index uint32) (metadata.LayoutSlot, bool) {
	if int64(index) >= int64(len(l.unified)) {
		return metadata.LayoutSlot{}, false
	}
	return l.unified[index], true
}

// GetPipelineLayout compiles the native layout (when mesh shaders are
// supported) and the three fallback layouts of a unified layout.
func (l *Layer) GetPipelineLayout(unified *metadata.PipelineLayoutDesc) (*PipelineLayout, error) {
	if unified == nil {
		return nil, fmt.Errorf("nil unified layout: %w", core.ErrInvalidPipelineLayout)
	}
	name := core.Label("MeshLayout", unified.Label)

	layout := &PipelineLayout{
		label:   name,
		unified: make([]metadata.LayoutSlot, len(unified.Slots)),
	}
	for i, s := range unified.Slots {
		layout.unified[i] = s.WithStage(s.Stage)
	}

	if l.meshShaderSupported {
		native, err := l.device.CreatePipelineLayout(&metadata.PipelineLayoutDesc{
			Label: name + "_NativeLayout",
			Slots: layout.unified,
			Flags: unified.Flags,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create native layout %s: %w", name, err)
		}
		layout.native = native
	}

	for _, pass := range Passes() {
		b, indexMap, synthetic := translatePass(layout.unified, pass)
		desc := b.Desc(name+"_"+layoutSuffix(pass), unified.Flags)
		compiled, err := l.device.CreatePipelineLayout(desc)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s layout for %s: %w", pass, name, err)
		}
		i := pass.index()
		layout.fallbacks[i] = compiled
		layout.descs[i] = desc
		layout.indexMaps[i] = indexMap
		layout.synthetic[i] = synthetic
	}

	core.LogDebug("Fallback pipeline layout %s created (%d unified slots)", name, len(layout.unified))
	return layout, nil
}

func layoutSuffix(pass Pass) string {
	switch pass {
	case AmplificationFallback:
		return "FallbackASLayout"
	case MeshFallback:
		return "FallbackMSLayout"
	case RasterFallback:
		return "FallbackPSLayout"
	}
	panic(fmt.Sprintf("fallback: unknown pass %d", int(pass)))
}
