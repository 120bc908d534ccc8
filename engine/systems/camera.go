package systems

import (
	"errors"
	"fmt"
	"math"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

const DefaultCameraName string = "default"

var ErrCameraLimit = errors.New("camera limit reached")

/**
 * @brief A 2D camera: a screen region plus the world position shown at its
 * top-left corner. An empty viewport covers the whole logical screen.
 */
type Camera struct {
	X        float64
	Y        float64
	Viewport metadata.Rect
}

func (c *Camera) Reset() {
	c.X, c.Y = 0, 0
	c.Viewport = metadata.Rect{}
}

func (c *Camera) SetPosition(x, y float64) {
	c.X, c.Y = x, y
}

func (c *Camera) Move(dx, dy float64) {
	c.X += dx
	c.Y += dy
}

// Apply sets the renderer viewport and offset for this camera. Pair it with
// renderer.ResetViewport once the camera's draws are queued.
func (c *Camera) Apply(r *renderer.Renderer) {
	if !c.Viewport.Empty() {
		r.SetViewport(c.Viewport.X, c.Viewport.Y, c.Viewport.W, c.Viewport.H)
	} else {
		r.ResetViewport()
	}
	r.OffsetViewport(-int(math.Round(c.X)), -int(math.Round(c.Y)))
}

type cameraLookup struct {
	camera         *Camera
	referenceCount int
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief The maximum number of named cameras, the default one excluded. */
	MaxCameraCount int
}

type CameraSystem struct {
	config  *CameraSystemConfig
	cameras map[string]*cameraLookup
	// always exists, never registered
	defaultCamera *Camera
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount <= 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0: %w", core.ErrInvalidConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	return &CameraSystem{
		config:        config,
		cameras:       make(map[string]*cameraLookup, config.MaxCameraCount),
		defaultCamera: &Camera{},
	}, nil
}

func (cs *CameraSystem) Shutdown() error {
	clear(cs.cameras)
	cs.defaultCamera.Reset()
	return nil
}

/**
 * @brief Acquires a camera by name, creating it when needed.
 * Internal reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*Camera, error) {
	if name == DefaultCameraName {
		return cs.defaultCamera, nil
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		if len(cs.cameras) >= cs.config.MaxCameraCount {
			err := fmt.Errorf("cannot create camera %q: %w", name, ErrCameraLimit)
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		lookup = &cameraLookup{camera: &Camera{}}
		cs.cameras[name] = lookup
	}
	lookup.referenceCount++
	return lookup.camera, nil
}

/**
 * @brief Releases a camera by name. When the reference counter reaches 0
 * the camera is dropped and its slot is free again.
 */
func (cs *CameraSystem) Release(name string) {
	if name == DefaultCameraName {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	lookup, ok := cs.cameras[name]
	if !ok {
		core.LogWarn("CameraSystem.Release failed lookup for '%s'. Nothing was done.", name)
		return
	}
	lookup.referenceCount--
	if lookup.referenceCount < 1 {
		lookup.camera.Reset()
		delete(cs.cameras, name)
	}
}

func (cs *CameraSystem) GetDefault() *Camera {
	return cs.defaultCamera
}

func (cs *CameraSystem) Count() int {
	return len(cs.cameras)
}
