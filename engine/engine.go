package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/xrender/engine/assets"
	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/platform"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/systems"

	_ "github.com/spaghettifunk/xrender/engine/renderer/immediate"
	_ "github.com/spaghettifunk/xrender/engine/renderer/software"
)

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

// Window is the platform surface the engine presents to and polls for events.
type Window interface {
	renderer.Surface
	Startup(applicationName string, width, height int) error
	Shutdown() error
	// PumpMessages processes pending OS events. It returns false once the application should quit.
	PumpMessages() bool
}

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *config.Config
	isRunning     atomic.Bool
	window        Window
	events        *core.EventBus
	assetManager  *assets.AssetManager
	renderer      *renderer.Renderer
	systemManager *systems.SystemManager
	clock         *core.Clock
	metrics       *core.Metrics
	lastTime      float64
}

// New creates an engine drawing into an SDL window.
func New(g *Game) (*Engine, error) {
	events := core.NewEventBus()
	p, err := platform.New(events)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return NewWithWindow(g, p, events)
}

// NewWithWindow creates an engine on any window, headless ones included. The window
// should fire its events on the given bus.
func NewWithWindow(g *Game, w Window, events *core.EventBus) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game without application config: %w", core.ErrInvalidConfiguration)
	}
	cfg, err := g.ApplicationConfig.Load()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogWarn("invalid log level %q: %s", cfg.Log.Level, err.Error())
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		window:       w,
		events:       events,
		assetManager: assets.NewAssetManager(events),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	name := e.gameInstance.ApplicationConfig.Name
	if name == "" {
		name = e.config.Window.Title
	}
	if err := e.window.Startup(name, e.config.Window.Width, e.config.Window.Height); err != nil {
		return err
	}

	if err := e.assetManager.Initialize(e.config.Assets.Dir, e.config.Assets.Watch); err != nil {
		return err
	}

	r, err := renderer.NewFromConfig(&e.config.Render, e.window)
	if err != nil {
		return err
	}
	e.renderer = r

	sm, err := systems.NewSystemManager(e.config, r, e.assetManager, e.events)
	if err != nil {
		return err
	}
	if err := sm.Initialize(); err != nil {
		return err
	}
	e.systemManager = sm

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	e.gameInstance.Config = e.config
	e.gameInstance.SystemManager = sm
	e.gameInstance.Renderer = r
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	w, h := e.window.Size()
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(w, h); err != nil {
			return err
		}
	}

	core.LogInfo("engine initialized with the %s renderer", r.Capabilities().Name)
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is not initialized: %w", core.ErrBackendNotInitialized)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.window.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		e.systemManager.Update()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err.Error())
				e.isRunning.Store(false)
				return err
			}
		}

		// Call the game's render routine.
		e.renderer.ClearBuffer()
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(e.renderer, delta); err != nil {
				core.LogError("game render failed, shutting down: %s", err.Error())
				e.isRunning.Store(false)
				return err
			}
		}
		if err := e.renderer.Repaint(); err != nil {
			core.LogError("repaint failed: %s", err.Error())
		}

		stats := e.renderer.Stats()
		e.metrics.RecordDraws(stats.OpaqueCalls, stats.OrderedCalls, stats.Vertices, stats.Snapshots)
		e.metrics.Update(time.Since(frameStart).Seconds())

		e.lastTime = currentTime
	}
	return nil
}

// Stop ends the frame loop after the current frame. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases everything Initialize created. Call it after Run returns.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown failed: %s", err.Error())
		}
	}
	e.events.Unregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	e.events.Unregister(core.EVENT_CODE_RESIZED, e)

	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			return err
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
	}
	e.assetManager.Shutdown()
	if err := e.window.Shutdown(); err != nil {
		return err
	}
	e.events.Shutdown()
	e.currentStage = EngineStageUninitialized
	return nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
	}
	// other listeners may want to know too
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	winW, winH := int(data.I32[0]), int(data.I32[1])
	hwW, hwH := int(data.I32[2]), int(data.I32[3])
	if winW == 0 || winH == 0 {
		core.LogInfo("window minimized, skipping resize")
		return false
	}
	core.LogDebug("window resized: %dx%d (%dx%d pixels)", winW, winH, hwW, hwH)
	e.renderer.Resized(hwW, hwH, winW, winH)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(winW, winH); err != nil {
			core.LogError("game resize failed: %s", err.Error())
		}
	}
	return false
}
