package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/fallback"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

func testConfig(t *testing.T) *ApplicationConfig {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Application.LogLevel = "error"
	cfg.Shaders.Dir = t.TempDir()
	app, err := ApplicationConfigFromConfig(cfg)
	require.NoError(t, err)
	return app
}

func TestLifecycle(t *testing.T) {
	var updates, renders int
	g := &Game{
		ApplicationConfig: testConfig(t),
		FnUpdate: func(float64) error {
			updates++
			return nil
		},
		FnRender: func(ctx *fallback.Context, _ float64) error {
			renders++
			assert.Equal(t, fallback.StateIdle, ctx.State())
			return nil
		},
	}

	e, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, EngineStageUninitialized, e.Stage())
	assert.ErrorIs(t, e.Run(), core.ErrInvalidState)

	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.ErrorIs(t, e.Initialize(), core.ErrInvalidState)
	require.NotNil(t, g.Systems)
	assert.False(t, g.Systems.Layer.UsesNative())

	require.NoError(t, e.Run())
	assert.Equal(t, 3, updates)
	assert.Equal(t, 3, renders)
	assert.Equal(t, uint64(3), g.Systems.Renderer.FrameNumber)

	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageShuttingDown, e.Stage())
}

func TestStop(t *testing.T) {
	g := &Game{ApplicationConfig: testConfig(t)}
	g.ApplicationConfig.Frames = 0

	e, err := New(g)
	require.NoError(t, err)
	defer e.Shutdown()

	g.FnUpdate = func(float64) error {
		if g.Systems.Renderer.FrameNumber == 5 {
			e.Stop()
		}
		return nil
	}
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Run())
	assert.Equal(t, uint64(6), g.Systems.Renderer.FrameNumber)
}

func TestRenderErrorStopsRun(t *testing.T) {
	g := &Game{
		ApplicationConfig: testConfig(t),
		FnRender: func(ctx *fallback.Context, _ float64) error {
			// Dispatching without a pipeline leaves a sticky error on the context.
			_ = ctx.DispatchMesh(1, 1, 1)
			return nil
		},
	}
	e, err := New(g)
	require.NoError(t, err)
	defer e.Shutdown()

	require.NoError(t, e.Initialize())
	assert.ErrorIs(t, e.Run(), core.ErrInvalidState)
	assert.Zero(t, g.Systems.Renderer.FrameNumber)
	assert.Equal(t, uint64(1), g.Systems.Layer.Metrics().RejectedDispatches)
}

func TestShaderReloadAppliedOnFrameLoop(t *testing.T) {
	var reloaded []string
	g := &Game{
		ApplicationConfig: testConfig(t),
		FnOnShaderReload: func(blob *metadata.ShaderBlob) error {
			reloaded = append(reloaded, blob.Name)
			return nil
		},
	}
	e, err := New(g)
	require.NoError(t, err)
	defer e.Shutdown()
	require.NoError(t, e.Initialize())

	e.queueReload(&metadata.ShaderBlob{Name: "meshlet.comp", Stage: metadata.ShaderStageCompute})
	e.queueReload(&metadata.ShaderBlob{Name: "meshlet.vert", Stage: metadata.ShaderStageVertex})
	assert.Empty(t, reloaded)

	require.NoError(t, e.Run())
	assert.Equal(t, []string{"meshlet.comp", "meshlet.vert"}, reloaded)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "running", EngineStageRunning.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())
}
