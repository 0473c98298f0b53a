package fallback

import (
	"fmt"

	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// InvalidIndex marks a unified slot that has no counterpart in a derived layout.
const InvalidIndex uint32 = 0xffffffff

// PayloadSpace is the register space reserved for the slots the layer adds.
const PayloadSpace uint32 = 15

// IndexPair routes one unified slot into a derived layout. Cmd is the position
// among the pending commands of the slot's kind, Prm the derived slot index.
type IndexPair struct {
	Cmd  uint32
	Prm  uint32
	Kind metadata.SlotKind
}

func (p IndexPair) Valid() bool {
	return p.Cmd != InvalidIndex
}

var invalidPair = IndexPair{Cmd: InvalidIndex, Prm: InvalidIndex, Kind: metadata.SlotKindNone}

// IndexMap has one entry per unified slot.
type IndexMap []IndexPair

// Lookup returns the pair for slot and whether the slot maps into the derived layout.
func (m IndexMap) Lookup(slot uint32) (IndexPair, bool) {
	if int64(slot) >= int64(len(m)) {
		return invalidPair, false
	}
	p := m[slot]
	return p, p.Valid()
}

// Translate keeps the slots visible to src (or to every stage), retargets them
// to dst and returns the derived layout together with the map from unified
// slot to derived slot. Wildcard slots stay wildcard.
func Translate(slots []metadata.LayoutSlot, src, dst metadata.ShaderStage) (*metadata.PipelineLayoutBuilder, IndexMap) {
	b := metadata.NewPipelineLayoutBuilder()
	indexMap := make(IndexMap, len(slots))

	var counters [metadata.SlotKindTable + 1]uint32
	for n, slot := range slots {
		kind := slot.Kind()
		if kind == metadata.SlotKindNone || (slot.Stage != src && slot.Stage != metadata.ShaderStageAll) {
			indexMap[n] = invalidPair
			continue
		}

		stage := slot.Stage
		if stage != metadata.ShaderStageAll {
			stage = dst
		}
		prm := b.Append(slot.WithStage(stage))
		indexMap[n] = IndexPair{Cmd: counters[kind], Prm: prm, Kind: kind}
		counters[kind]++
	}

	return b, indexMap
}

// syntheticSlots records where the layer's own bindings of a pass landed.
type syntheticSlots struct {
	payload    uint32
	payloadSRV uint32
	batchIndex uint32
}

// appendSynthetic adds the payload and batch index slots of the pass after the translated ones.
func appendSynthetic(pass Pass, b *metadata.PipelineLayoutBuilder) syntheticSlots {
	n := b.Len()
	switch pass {
	case AmplificationFallback:
		b.SetRootUAV(n, 0, PayloadSpace,
			metadata.DescriptorFlagDataStaticWhileSetAtExecute|metadata.DescriptorFlagDescriptorsVolatile,
			metadata.ShaderStageAll)
		return syntheticSlots{payload: n, payloadSRV: InvalidIndex, batchIndex: InvalidIndex}
	case MeshFallback:
		// vertex and index payloads
		b.SetRange(n, metadata.DescriptorTypeUAV, 2, 0, PayloadSpace, metadata.DescriptorFlagDataStaticWhileSetAtExecute)
		b.SetShaderStage(n, metadata.ShaderStageAll)
		b.SetRootSRV(n+1, 0, PayloadSpace, metadata.DescriptorFlagNone, metadata.ShaderStageAll)
		b.SetConstants(n+2, 1, 0, PayloadSpace, metadata.ShaderStageAll)
		return syntheticSlots{payload: n, payloadSRV: n + 1, batchIndex: n + 2}
	case RasterFallback:
		b.SetRange(n, metadata.DescriptorTypeSRV, 1, 0, PayloadSpace, metadata.DescriptorFlagDescriptorsVolatile)
		b.SetShaderStage(n, metadata.ShaderStageVertex)
		b.SetConstants(n+1, 1, 0, PayloadSpace, metadata.ShaderStageVertex)
		return syntheticSlots{payload: n, payloadSRV: InvalidIndex, batchIndex: n + 1}
	}
	panic(fmt.Sprintf("fallback: unknown pass %d", int(pass)))
}

// translatePass is Translate with the pass's stages followed by its synthetic slots.
func translatePass(slots []metadata.LayoutSlot, pass Pass) (*metadata.PipelineLayoutBuilder, IndexMap, syntheticSlots) {
	b, indexMap := Translate(slots, pass.SourceStage(), pass.DestStage())
	return b, indexMap, appendSynthetic(pass, b)
}
