package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

func TestTranslateIndexMaps(t *testing.T) {
	slots := meshletLayoutDesc().Slots
	sentinel := IndexPair{Cmd: InvalidIndex, Prm: InvalidIndex}

	tests := []struct {
		name string
		pass Pass
		want IndexMap
	}{
		{
			name: "amplification keeps wildcard and amplification slots",
			pass: AmplificationFallback,
			want: IndexMap{
				{Cmd: 0, Prm: 0, Kind: metadata.SlotKindRootCBV},
				sentinel,
				sentinel,
				sentinel,
				{Cmd: 1, Prm: 1, Kind: metadata.SlotKindRootCBV},
				sentinel,
			},
		},
		{
			name: "mesh keeps wildcard and mesh slots",
			pass: MeshFallback,
			want: IndexMap{
				{Cmd: 0, Prm: 0, Kind: metadata.SlotKindRootCBV},
				{Cmd: 1, Prm: 1, Kind: metadata.SlotKindRootCBV},
				{Cmd: 2, Prm: 2, Kind: metadata.SlotKindRootCBV},
				{Cmd: 0, Prm: 3, Kind: metadata.SlotKindTable},
				sentinel,
				sentinel,
			},
		},
		{
			name: "raster keeps wildcard and pixel slots",
			pass: RasterFallback,
			want: IndexMap{
				{Cmd: 0, Prm: 0, Kind: metadata.SlotKindRootCBV},
				sentinel,
				sentinel,
				sentinel,
				sentinel,
				{Cmd: 0, Prm: 1, Kind: metadata.SlotKindConstant},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, indexMap := Translate(slots, tt.pass.SourceStage(), tt.pass.DestStage())
			require.Len(t, indexMap, len(slots))
			assert.Equal(t, tt.want, indexMap)
		})
	}
}

func TestTranslateRelabelsStages(t *testing.T) {
	slots := meshletLayoutDesc().Slots
	b, _ := Translate(slots, metadata.ShaderStageMesh, metadata.ShaderStageCompute)
	derived := b.Slots()

	require.Len(t, derived, 4)
	assert.Equal(t, metadata.ShaderStageAll, derived[0].Stage, "wildcard stays wildcard")
	for _, s := range derived[1:] {
		assert.Equal(t, metadata.ShaderStageCompute, s.Stage)
	}
	assert.Equal(t, slots[slotSRVs].Ranges, derived[3].Ranges)
}

func TestTranslatePreservesOrder(t *testing.T) {
	b := metadata.NewPipelineLayoutBuilder()
	b.SetRootSRV(0, 0, 0, metadata.DescriptorFlagNone, metadata.ShaderStageMesh)
	b.SetRootCBV(1, 0, 0, metadata.ShaderStagePixel)
	b.SetRootUAV(2, 0, 0, metadata.DescriptorFlagNone, metadata.ShaderStageMesh)
	b.SetRootSRV(3, 1, 0, metadata.DescriptorFlagNone, metadata.ShaderStageAll)
	b.SetConstants(4, 2, 0, 0, metadata.ShaderStageMesh)

	derived, indexMap := Translate(b.Slots(), metadata.ShaderStageMesh, metadata.ShaderStageCompute)

	var prms []uint32
	for _, p := range indexMap {
		if p.Valid() {
			prms = append(prms, p.Prm)
		}
	}
	assert.Equal(t, []uint32{0, 1, 2, 3}, prms)
	assert.Equal(t, uint32(4), derived.Len())

	// counters are per kind
	assert.Equal(t, uint32(0), indexMap[0].Cmd)
	assert.Equal(t, uint32(0), indexMap[2].Cmd)
	assert.Equal(t, uint32(1), indexMap[3].Cmd)
	assert.Equal(t, uint32(0), indexMap[4].Cmd)
	assert.False(t, indexMap[1].Valid())
}

func TestTranslateSkipsEmptySlots(t *testing.T) {
	b := metadata.NewPipelineLayoutBuilder()
	b.SetRootCBV(2, 0, 0, metadata.ShaderStageAll)

	derived, indexMap := Translate(b.Slots(), metadata.ShaderStageMesh, metadata.ShaderStageCompute)
	require.Len(t, indexMap, 3)
	assert.False(t, indexMap[0].Valid())
	assert.False(t, indexMap[1].Valid())
	assert.Equal(t, IndexPair{Cmd: 0, Prm: 0, Kind: metadata.SlotKindRootCBV}, indexMap[2])
	assert.Equal(t, uint32(1), derived.Len())
}

func TestTranslateIsPure(t *testing.T) {
	slots := meshletLayoutDesc().Slots
	b1, m1 := Translate(slots, metadata.ShaderStagePixel, metadata.ShaderStagePixel)
	b2, m2 := Translate(slots, metadata.ShaderStagePixel, metadata.ShaderStagePixel)
	assert.Equal(t, m1, m2)
	assert.Equal(t, b1.Slots(), b2.Slots())
	assert.Equal(t, meshletLayoutDesc().Slots, slots)
}

func TestSyntheticSlots(t *testing.T) {
	slots := meshletLayoutDesc().Slots

	b, _, s := translatePass(slots, AmplificationFallback)
	derived := b.Slots()
	assert.Equal(t, uint32(2), s.payload)
	assert.Equal(t, InvalidIndex, s.batchIndex)
	assert.Equal(t, metadata.SlotKindRootUAV, derived[s.payload].Kind())
	assert.Equal(t, PayloadSpace, derived[s.payload].Ranges[0].Space)

	b, _, s = translatePass(slots, MeshFallback)
	derived = b.Slots()
	require.Len(t, derived, 7)
	assert.Equal(t, syntheticSlots{payload: 4, payloadSRV: 5, batchIndex: 6}, s)
	assert.Equal(t, metadata.SlotKindTable, derived[4].Kind())
	assert.Equal(t, uint32(2), derived[4].Ranges[0].NumDescriptors)
	assert.Equal(t, metadata.DescriptorTypeUAV, derived[4].Ranges[0].Type)
	assert.Equal(t, metadata.SlotKindRootSRV, derived[5].Kind())
	assert.Equal(t, uint32(1), derived[6].ConstantCount())

	b, _, s = translatePass(slots, RasterFallback)
	derived = b.Slots()
	require.Len(t, derived, 4)
	assert.Equal(t, syntheticSlots{payload: 2, payloadSRV: InvalidIndex, batchIndex: 3}, s)
	assert.Equal(t, metadata.ShaderStageVertex, derived[2].Stage)
	assert.Equal(t, metadata.DescriptorTypeSRV, derived[2].Ranges[0].Type)
	assert.Equal(t, metadata.ShaderStageVertex, derived[3].Stage)
}

func TestIndexMapLookup(t *testing.T) {
	m := IndexMap{{Cmd: 0, Prm: 3, Kind: metadata.SlotKindTable}, invalidPair}

	p, ok := m.Lookup(0)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), p.Prm)

	_, ok = m.Lookup(1)
	assert.False(t, ok)
	_, ok = m.Lookup(7)
	assert.False(t, ok)
}

func TestPassStages(t *testing.T) {
	assert.Equal(t, metadata.ShaderStageAmplification, AmplificationFallback.SourceStage())
	assert.Equal(t, metadata.ShaderStageCompute, AmplificationFallback.DestStage())
	assert.Equal(t, metadata.ShaderStageMesh, MeshFallback.SourceStage())
	assert.True(t, MeshFallback.IsCompute())
	assert.False(t, RasterFallback.IsCompute())
	assert.Panics(t, func() { Pass(9).SourceStage() })
}
