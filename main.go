/*
Runs the meshlet testbed on top of the mesh shader fallback layer and
reports what was recorded.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/meshfallback/engine"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/testbed"
)

func main() {
	configPath := flag.String("config", "", "TOML config file, defaults are used when empty")
	backend := flag.String("backend", "", "override the configured backend (recorder or vulkan)")
	frames := flag.Uint("frames", 0, "override the configured frame count")
	watch := flag.Bool("watch", false, "reload shaders when they change on disk")
	flag.Parse()

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			core.LogFatal("failed to load config: %s", err)
		}
	}
	if *backend != "" {
		cfg.Application.Backend = *backend
	}
	if *frames != 0 {
		cfg.Application.Frames = uint32(*frames)
	}
	if *watch {
		cfg.Shaders.Watch = true
		// Keep running until interrupted unless a frame count was asked for.
		if *frames == 0 {
			cfg.Application.Frames = 0
		}
	}

	app, err := engine.ApplicationConfigFromConfig(cfg)
	if err != nil {
		core.LogFatal("invalid config: %s", err)
	}

	tb := testbed.NewTestGame(app, testbed.DefaultModels())

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initialization failed: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if rec := tb.Systems.Renderer.Recording(); rec != nil {
		for op, n := range rec.Counts() {
			core.LogDebug("last frame: %s x%d", op, n)
		}
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
