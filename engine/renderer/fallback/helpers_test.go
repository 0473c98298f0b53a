package fallback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
)

// Slots of the meshlet layout used across the tests.
const (
	slotGlobals uint32 = iota
	slotMeshInfo
	slotInstance
	slotSRVs
	slotCull
	slotTint
)

func meshletLayoutDesc() *metadata.PipelineLayoutDesc {
	b := metadata.NewPipelineLayoutBuilder()
	b.SetRootCBV(slotGlobals, 0, 0, metadata.ShaderStageAll)
	b.SetRootCBV(slotMeshInfo, 1, 0, metadata.ShaderStageMesh)
	b.SetRootCBV(slotInstance, 2, 0, metadata.ShaderStageMesh)
	b.SetRange(slotSRVs, metadata.DescriptorTypeSRV, 4, 0, 0, metadata.DescriptorFlagDataStatic)
	b.SetShaderStage(slotSRVs, metadata.ShaderStageMesh)
	b.SetRootCBV(slotCull, 3, 0, metadata.ShaderStageAmplification)
	b.SetConstants(slotTint, 4, 4, 0, metadata.ShaderStagePixel)
	return b.Desc("Meshlet", metadata.PipelineLayoutFlagNone)
}

func blob(name string, stage metadata.ShaderStage) *metadata.ShaderBlob {
	return &metadata.ShaderBlob{Name: name, Stage: stage, Code: []uint32{0x07230203}}
}

func meshState() *metadata.MeshShaderStateDesc {
	return &metadata.MeshShaderStateDesc{
		Version: metadata.MeshShaderStateVersion,
		Label:   "Meshlet",
		MS:      blob("MSMeshlet", metadata.ShaderStageMesh),
		PS:      blob("PSMeshlet", metadata.ShaderStagePixel),
	}
}

func fallbackShaders(withAS bool) FallbackShaders {
	s := FallbackShaders{
		MS: blob("CSMeshlet", metadata.ShaderStageCompute),
		VS: blob("VSMeshlet", metadata.ShaderStageVertex),
	}
	if withAS {
		s.AS = blob("CSCull", metadata.ShaderStageCompute)
	}
	return s
}

type fixture struct {
	device   *recorder.Device
	layer    *Layer
	layout   *PipelineLayout
	pipeline *Pipeline
	cl       *recorder.CommandList
}

func newFixture(t *testing.T, meshShader bool, withAS bool) *fixture {
	t.Helper()
	device := recorder.NewDevice(recorder.WithMeshShaderSupport(meshShader))
	layer := New(device, meshShader)
	require.NoError(t, layer.Init(100, 64, 126, 32, 32))

	layout, err := layer.GetPipelineLayout(meshletLayoutDesc())
	require.NoError(t, err)
	pipeline, err := layer.GetPipeline(layout, fallbackShaders(withAS), meshState())
	require.NoError(t, err)

	return &fixture{
		device:   device,
		layer:    layer,
		layout:   layout,
		pipeline: pipeline,
		cl:       recorder.NewCommandList(),
	}
}

func (f *fixture) buffer(t *testing.T, label string) metadata.Buffer {
	t.Helper()
	b, err := f.device.CreateBuffer(&metadata.BufferDesc{Label: label, Size: 256})
	require.NoError(t, err)
	return b
}

func (f *fixture) table(t *testing.T, label string) metadata.DescriptorTable {
	t.Helper()
	tbl, err := f.device.CreateDescriptorTable(&metadata.DescriptorTableDesc{Label: label, Type: metadata.DescriptorTypeSRV})
	require.NoError(t, err)
	return tbl
}
