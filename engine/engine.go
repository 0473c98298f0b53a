package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/meshfallback/engine/assets"
	"github.com/spaghettifunk/meshfallback/engine/containers"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer"
	"github.com/spaghettifunk/meshfallback/engine/renderer/fallback"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
)

// Reloads held between two frames. Older ones are dropped past this.
const maxPendingReloads = 64

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	layer        *fallback.Layer
	clock        *core.Clock
	lastTime     float64

	// Shaders reloaded by the watcher, applied at the start of the next frame.
	reloadMu sync.Mutex
	reloads  *containers.RingQueue[*metadata.ShaderBlob]
}

func New(g *Game) (*Engine, error) {
	cfg := g.ApplicationConfig
	core.SetLogLevel(cfg.LogLevel)

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	r, err := renderer.New(cfg.Name, cfg.Renderer, cfg.RendererOptions)
	if err != nil {
		core.LogError("%s", err)
		_ = am.Shutdown()
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		assetManager: am,
		renderer:     r,
		layer:        fallback.New(r.Device(), r.Device().SupportsMeshShader()),
		reloads:      containers.NewRingQueue[*metadata.ShaderBlob](maxPendingReloads),
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("initialize in stage %s: %w", e.currentStage, core.ErrInvalidState)
	}
	e.currentStage = EngineStageInitializing
	cfg := e.gameInstance.ApplicationConfig

	if err := e.assetManager.Initialize(cfg.ShaderDir, cfg.WatchShaders); err != nil {
		return err
	}
	e.assetManager.OnReload(e.queueReload)

	if err := e.layer.InitWithConfig(&cfg.Payload); err != nil {
		return err
	}
	e.layer.EnableNativeMeshShader(cfg.NativeMeshShader)
	core.LogInfo("Mesh shaders supported: %t, native path: %t", e.layer.MeshShaderSupported(), e.layer.UsesNative())

	e.gameInstance.Systems = &Systems{
		Renderer: e.renderer,
		Layer:    e.layer,
		Assets:   e.assetManager,
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run records frames until the configured frame count is reached or Stop is called.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("run in stage %s: %w", e.currentStage, core.ErrInvalidState)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed().Seconds()

	frames := uint64(e.gameInstance.ApplicationConfig.Frames)
	for e.isRunning.Load() {
		if frames > 0 && e.renderer.FrameNumber >= frames {
			break
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed().Seconds()
		delta := currentTime - e.lastTime

		if err := e.applyReloads(); err != nil {
			core.LogError("Shader reload failed, shutting down.")
			return err
		}

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return err
			}
		}

		if err := e.drawFrame(delta); err != nil {
			core.LogError("Frame %d failed, shutting down.", e.renderer.FrameNumber)
			return err
		}

		// Update last time
		e.lastTime = currentTime
	}

	m := e.layer.Metrics()
	core.LogInfo("Ran %d frames: %d native and %d emulated dispatches, %d batches, %d barriers, %d rejected",
		e.renderer.FrameNumber, m.NativeDispatches, m.EmulatedDispatches, m.Batches, m.Barriers, m.RejectedDispatches)
	return nil
}

func (e *Engine) drawFrame(delta float64) error {
	cl, err := e.renderer.BeginFrame()
	if err != nil {
		return err
	}
	ctx := e.layer.Begin(cl)
	if e.gameInstance.FnRender != nil {
		if err := e.gameInstance.FnRender(ctx, delta); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.renderer.EndFrame()
}

// Stop makes Run return after the current frame. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) queueReload(blob *metadata.ShaderBlob) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	if e.reloads.IsFull() {
		dropped, _ := e.reloads.Dequeue()
		core.LogWarn("Too many pending reloads, dropping %s", dropped.Name)
	}
	_ = e.reloads.Enqueue(blob)
}

func (e *Engine) applyReloads() error {
	e.reloadMu.Lock()
	reloads := e.reloads.Drain()
	e.reloadMu.Unlock()
	if len(reloads) == 0 {
		return nil
	}

	e.renderer.Device().Purge()
	for _, blob := range reloads {
		if e.gameInstance.FnOnShaderReload == nil {
			continue
		}
		if err := e.gameInstance.FnOnShaderReload(blob); err != nil {
			return fmt.Errorf("reload %s: %w", blob.Name, err)
		}
	}
	return nil
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.Stop()

	var err error
	if e.gameInstance.FnShutdown != nil {
		err = e.gameInstance.FnShutdown()
	}
	if aerr := e.assetManager.Shutdown(); aerr != nil && err == nil {
		err = aerr
	}
	e.renderer.Shutdown()
	return err
}
