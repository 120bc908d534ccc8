package renderer

import (
	"image"
	"sync"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

// Surface is what a backend presents finished frames to.
type Surface interface {
	// Size is the window size in window units.
	Size() (int, int)
	// DrawableSize is the output size in physical pixels.
	DrawableSize() (int, int)
	Present(img *image.RGBA) error
}

/** @brief What a backend can do, used by the texture system to prepare uploads. */
type Capabilities struct {
	Name string
	/** @brief Masks are uploaded as separate textures. When false they are merged into the image at load. */
	MaskTextures bool
	/** @brief AND/OR compositing is available. */
	LogicOp bool
	/** @brief Custom programs are supported. */
	Shaders bool
	/** @brief Draws are deferred and batched until the frame is flushed. */
	Batching bool
	/** @brief The largest texture side. Taller pictures are split in slabs. */
	MaxTextureSize int
	/** @brief Textures are padded to at least this size. */
	MinTextureSize int
}

/**
 * @brief RendererBackend is one way of putting pictures and primitives on screen.
 * Draw operations never fail: problems are logged and the draw is skipped.
 */
type RendererBackend interface {
	Initialize(cfg *config.RenderConfig, surface Surface) error
	Shutdown() error
	Capabilities() Capabilities
	// Resized records new drawable and window sizes and resets the viewport.
	Resized(hwW, hwH, winW, winH int)

	// TextureCreate uploads img (and mask when not nil) as the picture's texture.
	TextureCreate(p *metadata.Picture, img, mask *image.NRGBA) error
	// TextureDestroy frees the picture's texture. Safe on pictures without one.
	TextureDestroy(p *metadata.Picture)
	// Program returns a named custom program, or nil.
	Program(name string) *metadata.Program

	SetViewport(x, y, w, h int)
	ResetViewport()
	OffsetViewport(x, y int)
	OffsetViewportIgnore(ignore bool)
	ViewportState() metadata.ViewportState
	SetTargetTexture()
	SetTargetScreen()
	MapToScreen(x, y int) (int, int)
	MapFromScreen(x, y int) (int, int)

	ClearBuffer()
	Repaint() error

	RenderTexture(p *metadata.Picture, d metadata.TextureDraw)
	RenderRect(x, y, w, h int, c metadata.Color, filled bool)
	RenderCircle(cx, cy, radius int, c metadata.Color, filled bool)
	RenderCircleHole(cx, cy, radius int, c metadata.Color)

	// GetScreenPixels reads a logical rectangle of the canvas as packed RGB rows, top row first.
	GetScreenPixels(x, y, w, h int) []byte
	// GetScreenPixelsRGBA reads a logical rectangle of the canvas as packed RGBA rows, top row first.
	GetScreenPixelsRGBA(x, y, w, h int) []byte

	// Stats returns the counters of the last presented frame.
	Stats() metadata.FrameStats
}

// BackendFactory creates a new backend instance.
type BackendFactory func() RendererBackend

type registration struct {
	name     string
	priority int
	factory  BackendFactory
}

var (
	registryMutex sync.RWMutex
	backends      = make(map[string]registration)
)

// RegisterBackend makes a backend available by name. Backends register from init; the
// one with the highest priority is the default. Registering a name again replaces it.
func RegisterBackend(name string, priority int, factory BackendFactory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	backends[name] = registration{name: name, priority: priority, factory: factory}
}

// UnregisterBackend removes a backend from the registry.
func UnregisterBackend(name string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	delete(backends, name)
}

// AvailableBackends returns the registered backend names, highest priority first.
func AvailableBackends() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	regs := make([]registration, 0, len(backends))
	for _, r := range backends {
		regs = append(regs, r)
	}
	slices.SortFunc(regs, func(a, b registration) int {
		if a.priority != b.priority {
			return b.priority - a.priority
		}
		if a.name < b.name {
			return -1
		}
		return 1
	})

	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.name
	}
	return names
}

// GetBackend returns a new instance of the named backend, or nil.
func GetBackend(name string) RendererBackend {
	registryMutex.RLock()
	r, ok := backends[name]
	registryMutex.RUnlock()
	if !ok {
		return nil
	}
	return r.factory()
}

// DefaultBackend returns a new instance of the highest priority backend, or nil.
func DefaultBackend() RendererBackend {
	for _, name := range AvailableBackends() {
		if b := GetBackend(name); b != nil {
			return b
		}
	}
	return nil
}
