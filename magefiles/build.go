//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/spaghettifunk/meshfallback/engine/assets/loaders"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

const (
	shaderSrcDir = "testbed/shaders"
	shaderOutDir = "build/shaders"
)

type Build mg.Namespace

// Compiles the testbed WGSL shaders to SPIR-V under build/shaders.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into build/.
func (Build) Testbed() error {
	mg.Deps(Build.Shaders)
	return goCmd("build", "-o", filepath.Join("build", "meshfallback"), ".")
}

func buildShaders() error {
	sources, err := filepath.Glob(filepath.Join(shaderSrcDir, "*.wgsl"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(shaderOutDir, 0o755); err != nil {
		return err
	}

	loader := &loaders.ShaderLoader{}
	for _, src := range sources {
		blob, err := loader.Load(src)
		if err != nil {
			return err
		}
		out := filepath.Join(shaderOutDir, blob.Name+".spv")
		if err := os.WriteFile(out, wordsToBytes(blob), 0o644); err != nil {
			return err
		}
		fmt.Printf("Compiled %s -> %s (%d bytes)\n", src, out, blob.Size())
	}
	return nil
}

func wordsToBytes(blob *metadata.ShaderBlob) []byte {
	out := make([]byte, 0, len(blob.Code)*4)
	for _, w := range blob.Code {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}
