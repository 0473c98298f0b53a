//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Records a few frames with the recorder backend.
func (Run) Testbed() error {
	fmt.Println("Run testbed...")
	return goCmd("run", ".", "-backend", "recorder")
}

// Renders through the vulkan backend with the precompiled shaders.
func (Run) Vulkan() error {
	mg.Deps(Build.Shaders)
	return goCmd("run", ".", "-backend", "vulkan", "-config", "testbed/vulkan.toml")
}

// Keeps the testbed running and rebuilds pipelines as shaders change.
func (Run) Watch() error {
	return goCmd("run", ".", "-watch")
}

// Runs every test of the module.
func Test() error {
	return goCmd("test", "./...")
}
