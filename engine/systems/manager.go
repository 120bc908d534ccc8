package systems

import (
	"github.com/spaghettifunk/xrender/engine/assets"
	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer"
)

const maxCameras = 8

type SystemManager struct {
	JobSystem     *JobSystem
	TextureSystem *TextureSystem
	FontSystem    *FontSystem
	CameraSystem  *CameraSystem
}

func NewSystemManager(cfg *config.Config, r *renderer.Renderer, am *assets.AssetManager, events *core.EventBus) (*SystemManager, error) {
	js, err := NewJobSystem(cfg.Assets.Workers, cfg.Assets.QueueSize)
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(TextureSystemConfigFrom(cfg), r, am, js, events)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	fs, err := NewFontSystem(am, ts, r)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: maxCameras})
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	return &SystemManager{
		JobSystem:     js,
		TextureSystem: ts,
		FontSystem:    fs,
		CameraSystem:  cs,
	}, nil
}

func (sm *SystemManager) Initialize() error {
	return sm.TextureSystem.Initialize()
}

// Update runs once per frame, before the game draws.
func (sm *SystemManager) Update() {
	sm.TextureSystem.Update()
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.CameraSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.FontSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
