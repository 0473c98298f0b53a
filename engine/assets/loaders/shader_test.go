package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

const computeWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(32)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = id.x;
}
`

func write(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestShaderStageFromPath(t *testing.T) {
	for _, tc := range []struct {
		path  string
		stage metadata.ShaderStage
	}{
		{"shaders/meshlet.comp.wgsl", metadata.ShaderStageCompute},
		{"meshlet.cs.spv", metadata.ShaderStageCompute},
		{"meshlet.vert.wgsl", metadata.ShaderStageVertex},
		{"meshlet.vs.spv", metadata.ShaderStageVertex},
		{"meshlet.frag.wgsl", metadata.ShaderStagePixel},
		{"meshlet.ps.spv", metadata.ShaderStagePixel},
		{"cull.task.spv", metadata.ShaderStageAmplification},
		{"meshlet.mesh.spv", metadata.ShaderStageMesh},
	} {
		stage, err := ShaderStageFromPath(tc.path)
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.stage, stage, tc.path)
	}

	_, err := ShaderStageFromPath("meshlet.wgsl")
	assert.ErrorIs(t, err, core.ErrUnknownShaderFormat)
	_, err = ShaderStageFromPath("meshlet.geom.spv")
	assert.ErrorIs(t, err, core.ErrUnknownShaderFormat)
}

func TestLoadSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "cull.comp.spv", []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})

	blob, err := (&ShaderLoader{}).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cull.comp", blob.Name)
	assert.Equal(t, metadata.ShaderStageCompute, blob.Stage)
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, blob.Code)
	assert.Equal(t, "main", blob.Entry())
}

func TestLoadRejectsTruncatedSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "cull.comp.spv", []byte{0x03, 0x02, 0x23})

	_, err := (&ShaderLoader{}).Load(path)
	assert.ErrorIs(t, err, core.ErrUnknownShaderFormat)
}

func TestLoadUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "cull.comp.hlsl", []byte("[numthreads(1,1,1)] void main() {}"))

	_, err := (&ShaderLoader{}).Load(path)
	assert.ErrorIs(t, err, core.ErrUnknownShaderFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := (&ShaderLoader{}).Load(filepath.Join(t.TempDir(), "none.comp.spv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompileWGSL(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "fill.comp.wgsl", []byte(computeWGSL))

	blob, err := (&ShaderLoader{}).Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, blob.Code)
	assert.Equal(t, uint32(0x07230203), blob.Code[0], "SPIR-V magic")
	assert.Equal(t, "fill.comp", blob.Name)
}

func TestCompileInvalidWGSL(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "broken.comp.wgsl", []byte("fn main( {"))

	_, err := (&ShaderLoader{}).Load(path)
	assert.Error(t, err)
}
