package engine

import (
	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/systems"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Set by the engine before FnInitialize.
	Config        *config.Config
	SystemManager *systems.SystemManager
	Renderer      *renderer.Renderer
	State         interface{}
	FnInitialize  Initialize
	FnUpdate      Update
	FnRender      Render
	FnOnResize    OnResize
	FnShutdown    Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error

// Render queues the frame's draws; the engine repaints afterwards.
type Render func(r *renderer.Renderer, deltaTime float64) error
type OnResize func(width int, height int) error
type Shutdown func() error
