package engine

import (
	"github.com/spaghettifunk/meshfallback/engine/assets"
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/fallback"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Systems are the engine services handed to the game before FnInitialize.
type Systems struct {
	Renderer *renderer.Renderer
	Layer    *fallback.Layer
	Assets   *assets.AssetManager
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	Systems           *Systems
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnShaderReload  OnShaderReload
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error

// Render records the frame's mesh work into ctx.
type Render func(ctx *fallback.Context, deltaTime float64) error

// OnShaderReload runs on the frame loop after blob changed on disk. Cached
// pipelines are purged before it is called.
type OnShaderReload func(blob *metadata.ShaderBlob) error
type Shutdown func() error
