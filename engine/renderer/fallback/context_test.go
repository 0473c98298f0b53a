package fallback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
)

func TestLayoutAndPipelineValidity(t *testing.T) {
	f := newFixture(t, false, true)
	assert.True(t, f.layout.IsValid(false))
	assert.False(t, f.layout.IsValid(true))
	assert.True(t, f.pipeline.IsValid(false))
	assert.Nil(t, f.layout.Native())
	assert.Nil(t, f.pipeline.Native())
	assert.Equal(t, uint32(6), f.layout.Len())

	native := newFixture(t, true, true)
	assert.True(t, native.layout.IsValid(true))
	assert.NotNil(t, native.pipeline.Native())

	var nilLayout *PipelineLayout
	assert.False(t, nilLayout.IsValid(false))
}

func TestGetPipelineWithoutAmplification(t *testing.T) {
	f := newFixture(t, false, false)
	assert.True(t, f.pipeline.IsValid(false))
	assert.Nil(t, f.pipeline.Fallback(AmplificationFallback))
}

func TestGetPipelineRejectsMissingShaders(t *testing.T) {
	f := newFixture(t, false, true)
	_, err := f.layer.GetPipeline(f.layout, FallbackShaders{MS: blob("CS", metadata.ShaderStageCompute)}, meshState())
	assert.ErrorIs(t, err, core.ErrMissingFallbackPipeline)

	state := meshState()
	state.Version = 7
	_, err = f.layer.GetPipeline(f.layout, fallbackShaders(true), state)
	assert.ErrorIs(t, err, core.ErrInvalidPipeline)
}

func TestGetPipelineLayoutPropagatesFailure(t *testing.T) {
	boom := errors.New("device lost")
	device := recorder.NewDevice(recorder.WithFailure("FallbackMSLayout", boom))
	layer := New(device, false)
	_, err := layer.GetPipelineLayout(meshletLayoutDesc())
	assert.ErrorIs(t, err, boom)
}

func TestStateMachine(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	assert.Equal(t, StateIdle, ctx.State())

	ctx.SetPipelineLayout(f.layout)
	assert.Equal(t, StateLayoutBound, ctx.State())
	ctx.SetPipelineState(f.pipeline)
	assert.Equal(t, StateReady, ctx.State())

	// rebinding the layout keeps the pipeline
	ctx.SetPipelineLayout(f.layout)
	assert.Equal(t, StateReady, ctx.State())
	assert.NoError(t, ctx.Err())
}

func TestBindingBeforeLayoutFails(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetRootConstantBufferView(slotGlobals, f.buffer(t, "Globals"), 0)
	assert.ErrorIs(t, ctx.Err(), core.ErrInvalidState)

	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)
	assert.ErrorIs(t, ctx.DispatchMesh(1, 1, 1), core.ErrInvalidState)
	assert.Empty(t, f.cl.Commands)
	assert.Equal(t, uint64(1), f.layer.Metrics().RejectedDispatches)
}

func TestDispatchBeforePipelineFails(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	assert.ErrorIs(t, ctx.DispatchMesh(1, 1, 1), core.ErrInvalidState)
	assert.Empty(t, f.cl.Commands)
}

func TestInvalidBundlesFail(t *testing.T) {
	f := newFixture(t, false, true)
	native := newFixture(t, true, true)

	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(native.layout)
	assert.ErrorIs(t, ctx.Err(), core.ErrInvalidPipelineLayout)

	ctx = f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(native.pipeline)
	assert.ErrorIs(t, ctx.Err(), core.ErrInvalidPipeline)
}

func TestSlotKindMismatch(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetDescriptorTable(slotGlobals, f.table(t, "T"))
	assert.ErrorIs(t, ctx.Err(), core.ErrSlotKindMismatch)
	for _, pass := range Passes() {
		assert.Empty(t, ctx.Pending(pass))
	}
}

func TestSlotOutOfRange(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetRootConstantBufferView(42, f.buffer(t, "B"), 0)
	assert.ErrorIs(t, ctx.Err(), core.ErrSlotOutOfRange)

	ctx = f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.Set32BitConstants(slotTint, []uint32{1, 2, 3}, 2)
	assert.ErrorIs(t, ctx.Err(), core.ErrSlotOutOfRange)
}

func TestFirstErrorWins(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetDescriptorTable(slotSRVs, f.table(t, "T"))
	first := ctx.Err()
	ctx.SetPipelineLayout(f.layout)
	ctx.SetDescriptorTable(slotGlobals, f.table(t, "T2"))
	assert.Same(t, first, ctx.Err())
}

func TestSentinelSlotIsNoOpForPass(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)

	srvs := f.table(t, "MeshSRVs")
	ctx.SetDescriptorTable(slotSRVs, srvs)

	assert.Empty(t, ctx.Pending(AmplificationFallback))
	assert.Empty(t, ctx.Pending(RasterFallback))
	require.Len(t, ctx.Pending(MeshFallback), 1)
	assert.Equal(t, PendingBinding{Kind: metadata.SlotKindTable, Index: 3, Table: srvs}, ctx.Pending(MeshFallback)[0])
}

func TestSlotOfUnusedStageIsNoOp(t *testing.T) {
	f := newFixture(t, false, true)

	b := metadata.NewPipelineLayoutBuilder()
	b.SetRootCBV(0, 0, 0, metadata.ShaderStageVertex)
	b.SetConstants(1, 2, 1, 0, metadata.ShaderStageCompute)
	b.SetRootCBV(2, 2, 0, metadata.ShaderStageMesh)
	layout, err := f.layer.GetPipelineLayout(b.Desc("VertexOnly", metadata.PipelineLayoutFlagNone))
	require.NoError(t, err)
	for _, pass := range Passes() {
		for _, slot := range []uint32{0, 1} {
			pair, ok := layout.IndexMap(pass).Lookup(slot)
			assert.False(t, ok, "%s slot %d", pass, slot)
			assert.Equal(t, InvalidIndex, pair.Cmd)
		}
	}

	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(layout)
	ctx.SetRootConstantBufferView(0, f.buffer(t, "VertexData"), 0)
	ctx.Set32BitConstants(1, []uint32{7, 8}, 0)

	require.NoError(t, ctx.Err())
	for _, pass := range Passes() {
		assert.Empty(t, ctx.Pending(pass), pass.String())
	}
	assert.Empty(t, f.cl.Commands)
}

func TestWildcardSlotReachesEveryPass(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)

	globals := f.buffer(t, "Globals")
	ctx.SetRootConstantBufferView(slotGlobals, globals, 256)
	for _, pass := range Passes() {
		pending := ctx.Pending(pass)
		require.Len(t, pending, 1, pass.String())
		assert.Equal(t, uint32(0), pending[0].Index)
		assert.Equal(t, globals, pending[0].Buffer)
		assert.Equal(t, uint64(256), pending[0].Offset)
	}
}

func TestRebindIsIdempotent(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)

	first, second := f.buffer(t, "A"), f.buffer(t, "B")
	ctx.SetRootConstantBufferView(slotMeshInfo, first, 0)
	ctx.SetRootConstantBufferView(slotMeshInfo, second, 64)

	pending := ctx.Pending(MeshFallback)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].Buffer)
	assert.Equal(t, uint64(64), pending[0].Offset)
}

func TestSetPipelineLayoutClearsPending(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetRootConstantBufferView(slotGlobals, f.buffer(t, "Globals"), 0)
	ctx.SetPipelineLayout(f.layout)
	for _, pass := range Passes() {
		assert.Empty(t, ctx.Pending(pass))
	}
}

func TestConstantsAtOffsets(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)

	ctx.Set32BitConstant(slotTint, 7, 2)
	ctx.Set32BitConstants(slotTint, []uint32{1, 2}, 0)
	ctx.Set32BitConstant(slotTint, 9, 3)
	require.NoError(t, ctx.Err())

	pending := ctx.Pending(RasterFallback)
	require.Len(t, pending, 1)
	assert.Equal(t, metadata.SlotKindConstant, pending[0].Kind)
	assert.Equal(t, uint32(1), pending[0].Index)
	assert.Equal(t, []uint32{1, 2, 7, 9}, pending[0].Values)
}

func TestDispatchRecordsThreePasses(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)

	globals := f.buffer(t, "Globals")
	cull := f.buffer(t, "Cull")
	srvs := f.table(t, "MeshSRVs")
	ctx.SetRootConstantBufferView(slotGlobals, globals, 256)
	ctx.SetRootConstantBufferView(slotMeshInfo, f.buffer(t, "MeshInfo"), 0)
	ctx.SetRootConstantBufferView(slotInstance, f.buffer(t, "Instance"), 0)
	ctx.SetDescriptorTable(slotSRVs, srvs)
	ctx.SetRootConstantBufferView(slotCull, cull, 0)
	ctx.Set32BitConstants(slotTint, []uint32{1, 2, 3, 4}, 0)

	require.NoError(t, ctx.DispatchMesh(2, 1, 1))

	want := []recorder.Op{
		recorder.OpBarrier,
		recorder.OpSetComputePipelineLayout,
		recorder.OpSetComputeRootCBV,
		recorder.OpSetComputeRootCBV,
		recorder.OpSetComputeRootUAV,
		recorder.OpSetPipelineState,
		recorder.OpDispatch,
		recorder.OpBarrier,
		recorder.OpSetComputePipelineLayout,
		recorder.OpSetComputeDescriptorTable,
		recorder.OpSetComputeRootCBV,
		recorder.OpSetComputeRootCBV,
		recorder.OpSetComputeRootCBV,
		recorder.OpSetComputeDescriptorTable,
		recorder.OpSetComputeRootSRV,
		recorder.OpSetPipelineState,
		recorder.OpSetCompute32BitConstants,
		recorder.OpDispatchIndirect,
		recorder.OpSetCompute32BitConstants,
		recorder.OpDispatchIndirect,
		recorder.OpBarrier,
		recorder.OpSetGraphicsPipelineLayout,
		recorder.OpSetGraphics32BitConstants,
		recorder.OpSetGraphicsRootCBV,
		recorder.OpSetGraphicsDescriptorTable,
		recorder.OpSetPipelineState,
		recorder.OpIASetPrimitiveTopology,
		recorder.OpIASetIndexBuffer,
		recorder.OpSetGraphics32BitConstants,
		recorder.OpDrawIndexedIndirect,
		recorder.OpSetGraphics32BitConstants,
		recorder.OpDrawIndexedIndirect,
	}
	require.Equal(t, want, f.cl.Ops(), f.cl.String())

	cmds := f.cl.Commands
	dispatchPayload := f.device.FindBuffer("DispatchPayloads")

	// amplification pass
	assert.Equal(t, metadata.BarrierTypeUAV, cmds[0].Barriers[0].Type)
	assert.Equal(t, f.layout.Fallback(AmplificationFallback), cmds[1].Layout)
	assert.Equal(t, [3]uint32{2, 1, 1}, [3]uint32{cmds[6].X, cmds[6].Y, cmds[6].Z})
	assert.Equal(t, cull, cmds[3].Buffer)
	assert.Equal(t, uint32(1), cmds[3].Index)
	assert.Equal(t, uint32(2), cmds[4].Index)
	assert.Equal(t, metadata.Buffer(dispatchPayload), cmds[4].Buffer)
	assert.Equal(t, f.pipeline.Fallback(AmplificationFallback), cmds[5].Pipeline)

	// first barrier set
	require.Len(t, cmds[7].Barriers, 3)
	assert.Equal(t, metadata.ResourceStateIndirectArgument|metadata.ResourceStateNonPixelShaderResource, cmds[7].Barriers[2].After)

	// mesh pass
	assert.Equal(t, uint32(4), cmds[13].Index)
	assert.Equal(t, uint32(5), cmds[14].Index)
	assert.Equal(t, uint64(32), cmds[14].Offset)
	assert.Equal(t, []uint32{0}, cmds[16].Values)
	assert.Equal(t, uint32(6), cmds[16].Index)
	assert.Equal(t, uint64(20), cmds[17].Offset)
	assert.Equal(t, []uint32{1}, cmds[18].Values)
	assert.Equal(t, uint64(180), cmds[19].Offset)

	// second barrier set
	require.Len(t, cmds[20].Barriers, 2)
	assert.Equal(t, metadata.ResourceStateNonPixelShaderResource, cmds[20].Barriers[0].After)
	assert.Equal(t, metadata.ResourceStateIndexBuffer, cmds[20].Barriers[1].After)

	// raster pass
	assert.Equal(t, []uint32{1, 2, 3, 4}, cmds[22].Values)
	assert.Equal(t, uint64(256), cmds[23].Offset)
	assert.Equal(t, uint32(2), cmds[24].Index)
	assert.Equal(t, f.device.FindBuffer("IndexPayloads").Label(), cmds[27].IBV.Buffer.Label())
	assert.Equal(t, uint32(3), cmds[28].Index)
	assert.Equal(t, uint64(0), cmds[29].Offset)
	assert.Equal(t, uint64(160), cmds[31].Offset)

	m := f.layer.Metrics()
	assert.Equal(t, uint64(1), m.EmulatedDispatches)
	assert.Equal(t, uint64(2), m.Batches)
}

func TestSecondDispatchTransitionsPayloadsBack(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)
	require.NoError(t, ctx.DispatchMesh(1, 1, 1))
	f.cl.Reset()
	require.NoError(t, ctx.DispatchMesh(1, 1, 1))

	barriers := f.cl.Filter(recorder.OpBarrier)
	require.Len(t, barriers, 3)

	pre := barriers[0].Barriers
	require.Len(t, pre, 1)
	assert.Equal(t, metadata.BarrierTypeTransition, pre[0].Type)
	assert.Equal(t, metadata.ResourceStateUnorderedAccess, pre[0].After)

	set1 := barriers[1].Barriers
	require.Len(t, set1, 3)
	assert.Equal(t, metadata.ResourceStateNonPixelShaderResource, set1[0].Before)
	assert.Equal(t, metadata.BarrierFlagResetSrcState, set1[0].Flags)
	assert.Equal(t, metadata.ResourceStateIndexBuffer, set1[1].Before)
}

func TestDispatchWithoutAmplificationSkipsFirstPass(t *testing.T) {
	f := newFixture(t, false, false)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)
	require.NoError(t, ctx.DispatchMesh(1, 1, 1))

	counts := f.cl.Counts()
	assert.Zero(t, counts[recorder.OpDispatch])
	assert.Zero(t, counts[recorder.OpSetComputeRootUAV])
	assert.Equal(t, 1, counts[recorder.OpDispatchIndirect])
	assert.Equal(t, 1, counts[recorder.OpDrawIndexedIndirect])
	assert.Equal(t, recorder.OpBarrier, f.cl.Commands[0].Op)
	assert.Len(t, f.cl.Commands[0].Barriers, 3)
}

func TestDispatchCapacity(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)

	require.NoError(t, ctx.DispatchMesh(4, 1, 1))
	assert.Len(t, f.cl.Filter(recorder.OpDispatchIndirect), 4)
	assert.Len(t, f.cl.Filter(recorder.OpDrawIndexedIndirect), 4)

	f.cl.Reset()
	err := ctx.DispatchMesh(5, 1, 1)
	assert.ErrorIs(t, err, core.ErrPayloadOverflow)
	assert.Empty(t, f.cl.Commands)
	assert.NoError(t, ctx.Err(), "overflow does not poison the context")

	assert.ErrorIs(t, ctx.DispatchMesh(2, 2, 2), core.ErrPayloadOverflow)
	assert.ErrorIs(t, ctx.DispatchMesh(0xffffffff, 0xffffffff, 2), core.ErrPayloadOverflow)

	require.NoError(t, ctx.DispatchMesh(0, 1, 1))
	assert.Empty(t, f.cl.Commands)
}

func TestDispatchWithoutInit(t *testing.T) {
	device := recorder.NewDevice()
	layer := New(device, false)
	layout, err := layer.GetPipelineLayout(meshletLayoutDesc())
	require.NoError(t, err)
	pipeline, err := layer.GetPipeline(layout, fallbackShaders(true), meshState())
	require.NoError(t, err)

	cl := recorder.NewCommandList()
	ctx := layer.Begin(cl)
	ctx.SetPipelineLayout(layout)
	ctx.SetPipelineState(pipeline)
	assert.ErrorIs(t, ctx.DispatchMesh(1, 1, 1), core.ErrNotInitialized)
	assert.ErrorIs(t, ctx.Err(), core.ErrNotInitialized)

	// The context stays failed, later dispatches are rejected without retrying.
	first := ctx.Err()
	assert.Same(t, first, ctx.DispatchMesh(1, 1, 1))
	assert.Empty(t, cl.Commands)
	assert.Equal(t, uint64(2), layer.Metrics().RejectedDispatches)
}

func TestBindingsPersistAcrossDispatches(t *testing.T) {
	f := newFixture(t, false, false)
	ctx := f.layer.Begin(f.cl)
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)
	ctx.SetRootConstantBufferView(slotGlobals, f.buffer(t, "Globals"), 0)

	require.NoError(t, ctx.DispatchMesh(1, 1, 1))
	first := len(f.cl.Filter(recorder.OpSetComputeRootCBV))
	f.cl.Reset()
	require.NoError(t, ctx.DispatchMesh(1, 1, 1))
	assert.Equal(t, first, len(f.cl.Filter(recorder.OpSetComputeRootCBV)))
	assert.Equal(t, 1, first)
}

func TestNativeForwardsCalls(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := f.layer.Begin(f.cl)
	require.True(t, ctx.Native())

	globals := f.buffer(t, "Globals")
	srvs := f.table(t, "MeshSRVs")
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)
	ctx.SetRootConstantBufferView(slotGlobals, globals, 256)
	ctx.SetDescriptorTable(slotSRVs, srvs)
	ctx.Set32BitConstant(slotTint, 5, 1)
	require.NoError(t, ctx.DispatchMesh(7, 1, 1))

	want := []recorder.Op{
		recorder.OpSetGraphicsPipelineLayout,
		recorder.OpSetPipelineState,
		recorder.OpSetGraphicsRootCBV,
		recorder.OpSetGraphicsDescriptorTable,
		recorder.OpSetGraphics32BitConstants,
		recorder.OpDispatchMesh,
	}
	require.Equal(t, want, f.cl.Ops())

	cmds := f.cl.Commands
	assert.Equal(t, f.layout.Native(), cmds[0].Layout)
	assert.Equal(t, f.pipeline.Native(), cmds[1].Pipeline)
	assert.Equal(t, slotGlobals, cmds[2].Index)
	assert.Equal(t, slotSRVs, cmds[3].Index)
	assert.Equal(t, uint32(1), cmds[4].DestOffset)
	assert.Equal(t, uint32(7), cmds[5].X)
	assert.Equal(t, uint64(1), f.layer.Metrics().NativeDispatches)
}

func TestEnableNativeMeshShader(t *testing.T) {
	f := newFixture(t, true, true)
	assert.True(t, f.layer.UsesNative())

	f.layer.EnableNativeMeshShader(false)
	ctx := f.layer.Begin(f.cl)
	assert.False(t, ctx.Native())

	// native layouts still validate on a device with mesh shader support
	ctx.SetPipelineLayout(f.layout)
	ctx.SetPipelineState(f.pipeline)
	require.NoError(t, ctx.DispatchMesh(1, 1, 1))
	assert.Zero(t, f.cl.Counts()[recorder.OpDispatchMesh])

	unsupported := newFixture(t, false, true)
	unsupported.layer.EnableNativeMeshShader(true)
	assert.False(t, unsupported.layer.UsesNative())
}

// Emulated and native recording of the same binding sequence reach the same
// resources at the same slots of the stage that owns them.
func TestNativeAndFallbackBindTheSameResources(t *testing.T) {
	native := newFixture(t, true, true)
	emulated := newFixture(t, false, true)

	record := func(f *fixture, ctx *Context, globals, meshInfo metadata.Buffer, srvs metadata.DescriptorTable) {
		ctx.SetPipelineLayout(f.layout)
		ctx.SetPipelineState(f.pipeline)
		ctx.SetRootConstantBufferView(slotGlobals, globals, 0)
		ctx.SetRootConstantBufferView(slotMeshInfo, meshInfo, 0)
		ctx.SetDescriptorTable(slotSRVs, srvs)
		require.NoError(t, ctx.DispatchMesh(1, 1, 1))
	}

	nGlobals, nMeshInfo, nSRVs := native.buffer(t, "Globals"), native.buffer(t, "MeshInfo"), native.table(t, "SRVs")
	record(native, native.layer.Begin(native.cl), nGlobals, nMeshInfo, nSRVs)
	eGlobals, eMeshInfo, eSRVs := emulated.buffer(t, "Globals"), emulated.buffer(t, "MeshInfo"), emulated.table(t, "SRVs")
	record(emulated, emulated.layer.Begin(emulated.cl), eGlobals, eMeshInfo, eSRVs)

	nativeCBVs := map[string]bool{}
	for _, c := range native.cl.Filter(recorder.OpSetGraphicsRootCBV) {
		nativeCBVs[c.Buffer.Label()] = true
	}
	meshCBVs := map[string]bool{}
	indexMap := emulated.layout.IndexMap(MeshFallback)
	for _, c := range emulated.cl.Filter(recorder.OpSetComputeRootCBV) {
		meshCBVs[c.Buffer.Label()] = true
		if c.Buffer.Label() == "MeshInfo" {
			assert.Equal(t, indexMap[slotMeshInfo].Prm, c.Index)
		}
	}
	assert.Equal(t, nativeCBVs, meshCBVs)
	assert.Len(t, native.cl.Filter(recorder.OpSetGraphicsDescriptorTable), 1)
	assert.Len(t, emulated.cl.Filter(recorder.OpSetComputeDescriptorTable), 2)
}
