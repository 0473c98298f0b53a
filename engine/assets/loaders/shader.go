package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Stage suffixes of shader file names, e.g. meshlet.comp.wgsl.
var stageSuffixes = map[string]metadata.ShaderStage{
	"vert": metadata.ShaderStageVertex,
	"vs":   metadata.ShaderStageVertex,
	"frag": metadata.ShaderStagePixel,
	"ps":   metadata.ShaderStagePixel,
	"comp": metadata.ShaderStageCompute,
	"cs":   metadata.ShaderStageCompute,
	"task": metadata.ShaderStageAmplification,
	"as":   metadata.ShaderStageAmplification,
	"mesh": metadata.ShaderStageMesh,
	"ms":   metadata.ShaderStageMesh,
}

// ShaderStageFromPath returns the stage encoded in a name.<stage>.<ext> file name.
func ShaderStageFromPath(path string) (metadata.ShaderStage, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	suffix := strings.TrimPrefix(filepath.Ext(base), ".")
	if stage, ok := stageSuffixes[suffix]; ok {
		return stage, nil
	}
	return metadata.ShaderStageAll, fmt.Errorf("no shader stage in file name %s: %w", filepath.Base(path), core.ErrUnknownShaderFormat)
}

// ShaderName is the file name without its extension, e.g. meshlet.comp.
func ShaderName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// ShaderLoader reads SPIR-V binaries and compiles WGSL sources to SPIR-V.
type ShaderLoader struct{}

func (sl *ShaderLoader) Extensions() []string {
	return []string{".wgsl", ".spv"}
}

func (sl *ShaderLoader) Load(path string) (*metadata.ShaderBlob, error) {
	stage, err := ShaderStageFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var code []byte
	switch filepath.Ext(path) {
	case ".spv":
		code = data
	case ".wgsl":
		code, err = naga.Compile(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to compile shader %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", path, core.ErrUnknownShaderFormat)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%s is not a whole number of SPIR-V words: %w", path, core.ErrUnknownShaderFormat)
	}

	core.LogDebug("Shader %s loaded (%d bytes of SPIR-V)", path, len(code))
	return &metadata.ShaderBlob{
		Name:  ShaderName(path),
		Stage: stage,
		Code:  metadata.BytesToWords(code),
	}, nil
}
