package engine

import (
	"errors"
	"io/fs"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
)

type ApplicationConfig struct {
	// The application name used in windowing.
	Name string
	// Path of the TOML configuration. Empty or missing means defaults.
	ConfigPath string
	// Overrides the configuration when set.
	Config *config.Config
}

// Load returns the configuration of the application: Config when set, else the file at
// ConfigPath on top of the defaults.
func (ac *ApplicationConfig) Load() (*config.Config, error) {
	if ac.Config != nil {
		return ac.Config, ac.Config.Validate()
	}
	if ac.ConfigPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(ac.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("configuration %s not found, using defaults", ac.ConfigPath)
		return config.Default(), nil
	}
	return cfg, err
}
