package testbed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
)

var spirvHeader = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}

func shaderDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n+".spv"), spirvHeader, 0o644))
	}
	return dir
}

func config(t *testing.T, dir string, meshShader bool) *engine.ApplicationConfig {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Application.Frames = 2
	cfg.Application.LogLevel = "error"
	cfg.Shaders.Dir = dir
	cfg.Layer.MeshShaderSupported = meshShader
	cfg.Layer.NativeMeshShader = meshShader
	app, err := engine.ApplicationConfigFromConfig(cfg)
	require.NoError(t, err)
	return app
}

func run(t *testing.T, g *TestGame) *engine.Engine {
	t.Helper()
	e, err := engine.New(g.Game)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())
	return e
}

func TestMeshletCount(t *testing.T) {
	assert.Equal(t, uint32(18), Model{VertexCount: 33 * 33, TriangleCount: 2048}.MeshletCount(64, 126))
	assert.Equal(t, uint32(49), Model{VertexCount: 3072, TriangleCount: 6144}.MeshletCount(64, 126))
	assert.Equal(t, uint32(0), Model{}.MeshletCount(64, 126))
}

func TestFallbackFrames(t *testing.T) {
	dir := shaderDir(t, "cull.comp", "meshlet.comp", "meshlet.vert", "meshlet.frag")
	g := NewTestGame(config(t, dir, false), DefaultModels())
	e := run(t, g)
	assert.Equal(t, engine.EngineStageRunning, e.Stage())

	r := g.Systems.Renderer
	assert.Equal(t, uint64(2), r.FrameNumber)

	// grid and sphere fit one batch, the torus needs two.
	counts := r.Recording().Counts()
	assert.Equal(t, 3, counts[recorder.OpDispatch])
	assert.Equal(t, 4, counts[recorder.OpDispatchIndirect])
	assert.Equal(t, 4, counts[recorder.OpDrawIndexedIndirect])
	assert.Zero(t, counts[recorder.OpDispatchMesh])
	assert.NotZero(t, counts[recorder.OpBarrier])

	m := g.Systems.Layer.Metrics()
	assert.Equal(t, uint64(6), m.EmulatedDispatches)
	assert.Equal(t, uint64(8), m.Batches)
	assert.Zero(t, m.NativeDispatches)
}

func TestFallbackWithoutCulling(t *testing.T) {
	dir := shaderDir(t, "meshlet.comp", "meshlet.vert", "meshlet.frag")
	g := NewTestGame(config(t, dir, false), DefaultModels())
	run(t, g)

	counts := g.Systems.Renderer.Recording().Counts()
	assert.Zero(t, counts[recorder.OpDispatch])
	assert.Equal(t, 4, counts[recorder.OpDispatchIndirect])
}

func TestNativeFrames(t *testing.T) {
	dir := shaderDir(t, "cull.comp", "meshlet.comp", "meshlet.vert", "meshlet.frag", "meshlet.mesh")
	g := NewTestGame(config(t, dir, true), DefaultModels())
	run(t, g)

	dispatches := g.Systems.Renderer.Recording().Filter(recorder.OpDispatchMesh)
	require.Len(t, dispatches, 3)
	assert.Equal(t, uint32(2), dispatches[2].X)
	assert.Equal(t, uint64(6), g.Systems.Layer.Metrics().NativeDispatches)
}

func TestMissingShader(t *testing.T) {
	dir := shaderDir(t, "meshlet.comp", "meshlet.frag")
	g := NewTestGame(config(t, dir, false), DefaultModels())
	e, err := engine.New(g.Game)
	require.NoError(t, err)
	defer e.Shutdown()
	assert.Error(t, e.Initialize())
}

func TestModelTooLarge(t *testing.T) {
	dir := shaderDir(t, "meshlet.comp", "meshlet.vert", "meshlet.frag")
	models := []Model{{Name: "huge", VertexCount: 64 * 200, TriangleCount: 126 * 200}}
	g := NewTestGame(config(t, dir, false), models)
	e, err := engine.New(g.Game)
	require.NoError(t, err)
	defer e.Shutdown()
	assert.ErrorIs(t, e.Initialize(), core.ErrPayloadOverflow)
}
