package renderer

import (
	"fmt"
	"image"
	"math"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// Materializer loads the pixels of a lazily loaded picture on first use.
type Materializer interface {
	Materialize(p *metadata.Picture) bool
}

/**
 * @brief Renderer is the drawing surface game code talks to. It wraps one backend,
 * validates pictures and materialises lazy ones before forwarding each draw.
 */
type Renderer struct {
	backend      RendererBackend
	materializer Materializer
}

// New wraps an already created backend.
func New(backend RendererBackend) *Renderer {
	return &Renderer{backend: backend}
}

// NewFromConfig picks the backend named in cfg, or the default one when the name is
// empty, and initializes it on surface.
func NewFromConfig(cfg *config.RenderConfig, surface Surface) (*Renderer, error) {
	var backend RendererBackend
	if cfg.Backend == "" {
		backend = DefaultBackend()
	} else {
		backend = GetBackend(cfg.Backend)
	}
	if backend == nil {
		err := fmt.Errorf("renderer %q (available: %v): %w", cfg.Backend, AvailableBackends(), core.ErrBackendNotAvailable)
		core.LogError(err.Error())
		return nil, err
	}

	r := New(backend)
	if err := r.Initialize(cfg, surface); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Initialize(cfg *config.RenderConfig, surface Surface) error {
	if err := r.backend.Initialize(cfg, surface); err != nil {
		core.LogError("failed to initialize the %s renderer", r.backend.Capabilities().Name)
		return err
	}
	return nil
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

// SetMaterializer installs the loader used for lazy pictures. Nil disables lazy loading.
func (r *Renderer) SetMaterializer(m Materializer) {
	r.materializer = m
}

func (r *Renderer) Backend() RendererBackend {
	return r.backend
}

func (r *Renderer) Capabilities() Capabilities {
	return r.backend.Capabilities()
}

func (r *Renderer) Resized(hwW, hwH, winW, winH int) {
	r.backend.Resized(hwW, hwH, winW, winH)
}

func (r *Renderer) TextureCreate(p *metadata.Picture, img, mask *image.NRGBA) error {
	return r.backend.TextureCreate(p, img, mask)
}

func (r *Renderer) TextureDestroy(p *metadata.Picture) {
	r.backend.TextureDestroy(p)
}

func (r *Renderer) Program(name string) *metadata.Program {
	return r.backend.Program(name)
}

// ready reports whether p can be drawn, materialising it first when it is lazy. Lazy
// pictures always go through the materializer so it sees every use.
func (r *Renderer) ready(p *metadata.Picture) bool {
	if p == nil || !p.Inited {
		core.LogWarn("attempt to render an uninitialized picture")
		return false
	}
	if p.LazyLoaded && r.materializer != nil {
		r.materializer.Materialize(p)
	}
	if !p.HasTexture() {
		core.LogWarn("attempt to render an empty texture: %s", p)
		return false
	}
	return true
}

// unscaled clamps the destination size of a 1:1 draw to the picture bounds.
func unscaled(p *metadata.Picture, srcX, srcY int, w, h float64) (int, int) {
	wDst, hDst := int(math.Round(w)), int(math.Round(h))
	if srcX+wDst > p.W {
		wDst = max(p.W-srcX, 0)
	}
	if srcY+hDst > p.H {
		hDst = max(p.H-srcY, 0)
	}
	return wDst, hDst
}

// RenderTexture draws the w x h part of p at (srcX, srcY) unscaled at (x, y).
func (r *Renderer) RenderTexture(p *metadata.Picture, x, y, w, h float64, srcX, srcY int, tint metadata.Color) {
	if !r.ready(p) {
		return
	}
	wDst, hDst := unscaled(p, srcX, srcY, w, h)
	r.backend.RenderTexture(p, metadata.TextureDraw{
		X: x, Y: y, W: float64(wDst), H: float64(hDst),
		SrcX: srcX, SrcY: srcY, SrcW: wDst, SrcH: hDst,
		Tint: tint,
	})
}

// RenderTextureAt draws the whole picture at its size.
func (r *Renderer) RenderTextureAt(p *metadata.Picture, x, y float64, tint metadata.Color) {
	if !r.ready(p) {
		return
	}
	r.backend.RenderTexture(p, metadata.TextureDraw{
		X: x, Y: y, W: float64(p.W), H: float64(p.H),
		SrcW: p.W, SrcH: p.H,
		Tint: tint,
	})
}

// RenderTextureFL is RenderTexture with a clockwise rotation in degrees around center
// (nil for the middle of the destination) and mirroring.
func (r *Renderer) RenderTextureFL(p *metadata.Picture, x, y, w, h float64, srcX, srcY int,
	angle float64, center *metadata.PointF, flip metadata.Flip, tint metadata.Color) {
	if !r.ready(p) {
		return
	}
	wDst, hDst := unscaled(p, srcX, srcY, w, h)
	r.backend.RenderTexture(p, metadata.TextureDraw{
		X: x, Y: y, W: float64(wDst), H: float64(hDst),
		SrcX: srcX, SrcY: srcY, SrcW: wDst, SrcH: hDst,
		Angle: angle, Center: center, Flip: flip,
		Tint: tint,
	})
}

// RenderTextureScale stretches the whole picture over the destination rectangle.
func (r *Renderer) RenderTextureScale(p *metadata.Picture, x, y, w, h float64, tint metadata.Color) {
	if !r.ready(p) {
		return
	}
	r.backend.RenderTexture(p, metadata.TextureDraw{
		X: x, Y: y, W: w, H: h,
		SrcW: p.W, SrcH: p.H,
		Tint: tint,
	})
}

// RenderTextureScaleEx stretches a source rectangle over the destination, with
// rotation and mirroring.
func (r *Renderer) RenderTextureScaleEx(p *metadata.Picture, x, y, w, h float64, srcX, srcY, srcW, srcH int,
	angle float64, center *metadata.PointF, flip metadata.Flip, tint metadata.Color) {
	if !r.ready(p) {
		return
	}
	r.backend.RenderTexture(p, metadata.TextureDraw{
		X: x, Y: y, W: w, H: h,
		SrcX: srcX, SrcY: srcY, SrcW: srcW, SrcH: srcH,
		Angle: angle, Center: center, Flip: flip,
		Tint: tint,
	})
}

func (r *Renderer) RenderRect(x, y, w, h int, c metadata.Color, filled bool) {
	r.backend.RenderRect(x, y, w, h, c, filled)
}

// RenderRectBR fills the rectangle given by its edges.
func (r *Renderer) RenderRectBR(left, top, right, bottom int, c metadata.Color) {
	r.backend.RenderRect(left, top, right-left, bottom-top, c, true)
}

func (r *Renderer) RenderCircle(cx, cy, radius int, c metadata.Color, filled bool) {
	r.backend.RenderCircle(cx, cy, radius, c, filled)
}

func (r *Renderer) RenderCircleHole(cx, cy, radius int, c metadata.Color) {
	r.backend.RenderCircleHole(cx, cy, radius, c)
}

func (r *Renderer) ClearBuffer() {
	r.backend.ClearBuffer()
}

// Repaint presents the frame. Errors are logged by the backend.
func (r *Renderer) Repaint() error {
	return r.backend.Repaint()
}

func (r *Renderer) SetViewport(x, y, w, h int) {
	r.backend.SetViewport(x, y, w, h)
}

func (r *Renderer) ResetViewport() {
	r.backend.ResetViewport()
}

func (r *Renderer) OffsetViewport(x, y int) {
	r.backend.OffsetViewport(x, y)
}

func (r *Renderer) OffsetViewportIgnore(ignore bool) {
	r.backend.OffsetViewportIgnore(ignore)
}

func (r *Renderer) ViewportState() metadata.ViewportState {
	return r.backend.ViewportState()
}

func (r *Renderer) SetTargetTexture() {
	r.backend.SetTargetTexture()
}

func (r *Renderer) SetTargetScreen() {
	r.backend.SetTargetScreen()
}

func (r *Renderer) MapToScreen(x, y int) (int, int) {
	return r.backend.MapToScreen(x, y)
}

func (r *Renderer) MapFromScreen(x, y int) (int, int) {
	return r.backend.MapFromScreen(x, y)
}

func (r *Renderer) GetScreenPixels(x, y, w, h int) []byte {
	return r.backend.GetScreenPixels(x, y, w, h)
}

func (r *Renderer) GetScreenPixelsRGBA(x, y, w, h int) []byte {
	return r.backend.GetScreenPixelsRGBA(x, y, w, h)
}

func (r *Renderer) Stats() metadata.FrameStats {
	return r.backend.Stats()
}
