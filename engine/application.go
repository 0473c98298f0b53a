package engine

import (
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/recorder"
)

type ApplicationConfig struct {
	// The application name, used for the Vulkan instance.
	Name string
	// Frames to run before Run returns. 0 runs until Stop.
	Frames   uint32
	LogLevel core.LogLevel
	// Backend the frames are recorded with.
	Renderer        renderer.RendererType
	RendererOptions renderer.Options
	// Directory of the shader files, indexed on Initialize.
	ShaderDir    string
	WatchShaders bool
	// Use the native mesh pipeline when the device has one.
	NativeMeshShader bool
	Payload          core.PayloadSection
}

// ApplicationConfigFromConfig maps a decoded config file onto the engine settings.
func ApplicationConfigFromConfig(cfg *core.Config) (*ApplicationConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := core.ParseLogLevel(cfg.Application.LogLevel)
	if err != nil {
		return nil, err
	}
	rt, err := renderer.ParseRendererType(cfg.Application.Backend)
	if err != nil {
		return nil, err
	}

	opts := renderer.DefaultOptions()
	opts.Recorder = append(opts.Recorder, recorder.WithMeshShaderSupport(cfg.Layer.MeshShaderSupported))

	return &ApplicationConfig{
		Name:             cfg.Application.Name,
		Frames:           cfg.Application.Frames,
		LogLevel:         level,
		Renderer:         rt,
		RendererOptions:  opts,
		ShaderDir:        cfg.Shaders.Dir,
		WatchShaders:     cfg.Shaders.Watch,
		NativeMeshShader: cfg.Layer.NativeMeshShader,
		Payload:          cfg.Payload,
	}, nil
}
