package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

type WindowConfig struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting width.
	Width int `toml:"width"`
	// Window starting height.
	Height int `toml:"height"`
}

type RenderConfig struct {
	// Backend name; empty picks the highest priority available backend.
	Backend string `toml:"backend"`
	// Logical (virtual) resolution the game draws in.
	ScreenWidth  int `toml:"screen_width"`
	ScreenHeight int `toml:"screen_height"`
	// Integer supersampling of the offscreen game buffer.
	RenderScale int `toml:"render_scale"`
	// "nearest" or "linear" scaling of the game buffer onto the screen.
	ScaleMode string `toml:"scale_mode"`
	// CSS colours.
	ClearColor     string `toml:"clear_color"`
	LetterboxColor string `toml:"letterbox_color"`
	// Passes used when a multi-pass program is queued.
	MultipassCount int `toml:"multipass_count"`
	// Frames between prunes of idle draw queue buckets.
	PruneInterval int `toml:"prune_interval"`
	// Textures are padded to a power of two no smaller than this.
	MinTextureSize int `toml:"min_texture_size"`
	// Pictures taller than this are split into slabs.
	MaxTextureSize int `toml:"max_texture_size"`
	// Bytes of texture memory the backend may hold; 0 means unlimited.
	TextureMemoryBudget int64 `toml:"texture_memory_budget"`
	// Emulate a hardware AND/OR logic-op for masked pictures.
	LogicOp bool `toml:"logic_op"`
	// Enable backend programs (circle, rect, bitmask and custom effects).
	Shaders bool `toml:"shaders"`
	// Store 2x redundant images at half size.
	ScaleDownTextures bool `toml:"scale_down_textures"`
	// Lazily loaded pictures kept resident at once; 0 picks the built-in limit.
	MaxLazyResident int `toml:"max_lazy_resident"`
	// Keep framebuffers bottom row first, the way GL lays them out.
	BottomUpRows bool `toml:"bottom_up_rows"`
}

type AssetsConfig struct {
	Dir       string `toml:"dir"`
	Watch     bool   `toml:"watch"`
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Window WindowConfig `toml:"window"`
	Render RenderConfig `toml:"render"`
	Assets AssetsConfig `toml:"assets"`
	Log    LogConfig    `toml:"log"`
}

// Default returns a configuration usable without any file.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "XRender",
			Width:  800,
			Height: 600,
		},
		Render: RenderConfig{
			Backend:             "",
			ScreenWidth:         800,
			ScreenHeight:        600,
			RenderScale:         1,
			ScaleMode:           "nearest",
			ClearColor:          "black",
			LetterboxColor:      "black",
			MultipassCount:      2,
			PruneInterval:       512,
			MinTextureSize:      1,
			MaxTextureSize:      4096,
			TextureMemoryBudget: 0,
			LogicOp:             true,
			Shaders:             true,
			ScaleDownTextures:   false,
			MaxLazyResident:     512,
			BottomUpRows:        false,
		},
		Assets: AssetsConfig{
			Dir:       "assets",
			Watch:     false,
			Workers:   2,
			QueueSize: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes TOML data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		err = fmt.Errorf("failed to parse configuration: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	r := &c.Render
	switch {
	case r.ScreenWidth <= 0 || r.ScreenHeight <= 0:
		return fmt.Errorf("%w: logical resolution %dx%d", core.ErrInvalidConfiguration, r.ScreenWidth, r.ScreenHeight)
	case r.RenderScale <= 0:
		return fmt.Errorf("%w: render_scale must be > 0", core.ErrInvalidConfiguration)
	case r.MultipassCount <= 0:
		return fmt.Errorf("%w: multipass_count must be > 0", core.ErrInvalidConfiguration)
	case r.PruneInterval <= 0:
		return fmt.Errorf("%w: prune_interval must be > 0", core.ErrInvalidConfiguration)
	case r.MaxTextureSize <= 0:
		return fmt.Errorf("%w: max_texture_size must be > 0", core.ErrInvalidConfiguration)
	case r.MaxLazyResident < 0:
		return fmt.Errorf("%w: max_lazy_resident must be >= 0", core.ErrInvalidConfiguration)
	case r.ScaleMode != "nearest" && r.ScaleMode != "linear":
		return fmt.Errorf("%w: unknown scale_mode %q", core.ErrInvalidConfiguration, r.ScaleMode)
	}
	if _, err := metadata.ParseColor(r.ClearColor); err != nil {
		return fmt.Errorf("%w: clear_color: %v", core.ErrInvalidConfiguration, err)
	}
	if _, err := metadata.ParseColor(r.LetterboxColor); err != nil {
		return fmt.Errorf("%w: letterbox_color: %v", core.ErrInvalidConfiguration, err)
	}
	return nil
}

// ClearRGBA returns the parsed clear colour, black when unparsable.
func (r *RenderConfig) ClearRGBA() metadata.Color {
	return parseOr(r.ClearColor, metadata.ColorBlack)
}

// LetterboxRGBA returns the parsed colour of the bars around the canvas.
func (r *RenderConfig) LetterboxRGBA() metadata.Color {
	return parseOr(r.LetterboxColor, metadata.ColorBlack)
}

func parseOr(s string, fallback metadata.Color) metadata.Color {
	c, err := metadata.ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}
