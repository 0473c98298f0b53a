package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
)

func TestParseRendererType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want RendererType
	}{
		{"recorder", Recorder},
		{"vulkan", Vulkan},
	} {
		got, err := ParseRendererType(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.in, got.String())
	}

	_, err := ParseRendererType("metal")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestRecorderFrames(t *testing.T) {
	r, err := New("test", Recorder, DefaultOptions())
	require.NoError(t, err)
	defer r.Shutdown()
	require.NotNil(t, r.Recording())

	for frame := 0; frame < 2; frame++ {
		cl, err := r.BeginFrame()
		require.NoError(t, err)
		cl.Dispatch(1, 2, 3)
		require.Len(t, r.Recording().Commands, 1, "each frame starts from an empty list")
		assert.Equal(t, recorder.OpDispatch, r.Recording().Commands[0].Op)
		require.NoError(t, r.EndFrame())
	}
	assert.Equal(t, uint64(2), r.FrameNumber)
}

func TestRecorderOptionsReachDevice(t *testing.T) {
	opts := DefaultOptions()
	opts.Recorder = []recorder.Option{recorder.WithMeshShaderSupport(true)}
	r, err := New("test", Recorder, opts)
	require.NoError(t, err)
	assert.True(t, r.Device().SupportsMeshShader())
}

func TestUnknownRendererType(t *testing.T) {
	_, err := New("test", RendererType(9), DefaultOptions())
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
