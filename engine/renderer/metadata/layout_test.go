package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderGrowsAndClassifies(t *testing.T) {
	b := NewPipelineLayoutBuilder()
	b.SetRootCBV(0, 0, 0, ShaderStageAll)
	b.SetRange(3, DescriptorTypeSRV, 4, 0, 0, DescriptorFlagDataStatic)
	b.SetRange(3, DescriptorTypeUAV, 1, 4, 0, DescriptorFlagNone)
	b.SetShaderStage(3, ShaderStageMesh)
	b.SetConstants(4, 2, 1, 0, ShaderStagePixel)

	slots := b.Slots()
	require.Len(t, slots, 5)
	assert.Equal(t, SlotKindRootCBV, slots[0].Kind())
	assert.Equal(t, SlotKindNone, slots[1].Kind())
	assert.Equal(t, SlotKindNone, slots[2].Kind())
	assert.Equal(t, SlotKindTable, slots[3].Kind())
	assert.Len(t, slots[3].Ranges, 2)
	assert.Equal(t, ShaderStageMesh, slots[3].Stage)
	assert.Equal(t, SlotKindConstant, slots[4].Kind())
	assert.Equal(t, uint32(2), slots[4].ConstantCount())
	assert.Zero(t, slots[3].ConstantCount())
	for _, s := range slots {
		assert.Equal(t, LayoutSlotVersion, s.Version)
	}
}

func TestSlotsAreCopies(t *testing.T) {
	b := NewPipelineLayoutBuilder()
	b.SetRange(0, DescriptorTypeSRV, 4, 0, 0, DescriptorFlagNone)
	slots := b.Slots()
	slots[0].Ranges[0].NumDescriptors = 99

	assert.Equal(t, uint32(4), b.Slots()[0].Ranges[0].NumDescriptors)

	moved := slots[0].WithStage(ShaderStageCompute)
	moved.Ranges[0].NumDescriptors = 1
	assert.Equal(t, uint32(99), slots[0].Ranges[0].NumDescriptors)
	assert.Equal(t, ShaderStageCompute, moved.Stage)
}

func TestAppendReturnsIndex(t *testing.T) {
	b := NewPipelineLayoutBuilder()
	b.SetRootSRV(0, 0, 0, DescriptorFlagNone, ShaderStageVertex)
	idx := b.Append(LayoutSlot{Version: LayoutSlotVersion, Stage: ShaderStageAll, Ranges: []DescriptorRange{{Type: DescriptorTypeRootUAV, NumDescriptors: 1}}})
	assert.Equal(t, uint32(1), idx)
	assert.Equal(t, uint32(2), b.Len())
	assert.Equal(t, SlotKindRootUAV, b.Slots()[1].Kind())
}

func TestKeyIgnoresLabel(t *testing.T) {
	build := func(label string, stage ShaderStage) *PipelineLayoutDesc {
		b := NewPipelineLayoutBuilder()
		b.SetRootCBV(0, 0, 0, stage)
		b.SetConstants(1, 4, 1, 0, ShaderStagePixel)
		return b.Desc(label, PipelineLayoutFlagNone)
	}
	assert.Equal(t, build("a", ShaderStageAll).Key(), build("b", ShaderStageAll).Key())
	assert.NotEqual(t, build("a", ShaderStageAll).Key(), build("a", ShaderStageMesh).Key())

	flagged := build("a", ShaderStageAll)
	flagged.Flags = PipelineLayoutFlagAllowInputAssemblerInput
	assert.NotEqual(t, build("a", ShaderStageAll).Key(), flagged.Key())
}

func TestBatchRecordLayout(t *testing.T) {
	assert.Equal(t, uint32(5), BatchRecordDispatchOffset)
	assert.Equal(t, uint32(8), BatchRecordMeshletOffset)
	assert.Equal(t, uint32(40), BatchRecordWords(32))
	assert.Equal(t, uint32(160), BatchRecordStride(32))
}

func TestBytesToWords(t *testing.T) {
	words := BytesToWords([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00, 0xff})
	assert.Equal(t, []uint32{0x07230203, 1}, words)

	blob := &ShaderBlob{Code: words}
	assert.Equal(t, uint(8), blob.Size())
	assert.Equal(t, "main", blob.Entry())
	blob.EntryPoint = "cs_main"
	assert.Equal(t, "cs_main", blob.Entry())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "uav|indirect", (ResourceStateUnorderedAccess | ResourceStateIndirectArgument).String())
	assert.Equal(t, "common", ResourceStateCommon.String())
	assert.Equal(t, "root-cbv", DescriptorTypeRootCBV.String())
	assert.Equal(t, "amplification", ShaderStageAmplification.String())
}
