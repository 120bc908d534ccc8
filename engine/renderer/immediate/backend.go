package immediate

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/graphics"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	"github.com/spaghettifunk/xrender/engine/renderer/viewport"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const Name = "immediate"

func init() {
	renderer.RegisterBackend(Name, 5, func() renderer.RendererBackend {
		return New()
	})
}

// layer is a gg canvas the logical screen is mapped onto.
type layer struct {
	ctx   *gg.Context
	scale float64
	offX  float64
	offY  float64
	// clip currently installed on ctx
	clip image.Rectangle
}

func newLayer(w, h int, scale float64) *layer {
	ctx := gg.NewContext(w, h)
	return &layer{ctx: ctx, scale: scale, clip: ctx.Image().Bounds()}
}

func (l *layer) rgba() *image.RGBA {
	return l.ctx.Image().(*image.RGBA)
}

/**
 * @brief The draw-per-call backend. Every primitive is rasterized with gg the moment
 * it is submitted; masks are merged into the picture at load and tints are applied to
 * a cached copy of the image.
 */
type Backend struct {
	cfg     config.RenderConfig
	surface renderer.Surface

	viewport *viewport.Viewport
	game     *layer
	overlay  *layer
	target   *layer

	scaler     draw.Scaler
	clearColor color.NRGBA
	letterbox  color.NRGBA
	screen     *image.RGBA
	bitblit    *graphics.BitBlit

	usedMemory  int64
	overlayUsed bool
	frameStats  metadata.FrameStats
	stats       metadata.FrameStats
	initialized bool
}

func New() *Backend {
	return &Backend{bitblit: graphics.NewBitBlit()}
}

// BitBlit is the background masks are merged against at upload time.
func (b *Backend) BitBlit() *graphics.BitBlit {
	return b.bitblit
}

func (b *Backend) Initialize(cfg *config.RenderConfig, surface renderer.Surface) error {
	if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
		err := fmt.Errorf("immediate renderer: canvas %dx%d: %w", cfg.ScreenWidth, cfg.ScreenHeight, core.ErrInvalidConfiguration)
		core.LogError(err.Error())
		return err
	}

	b.cfg = *cfg
	b.cfg.RenderScale = max(b.cfg.RenderScale, 1)
	if b.cfg.MaxTextureSize <= 0 {
		b.cfg.MaxTextureSize = 4096
	}
	b.surface = surface

	s := b.cfg.RenderScale
	b.game = newLayer(cfg.ScreenWidth*s, cfg.ScreenHeight*s, float64(s))
	b.overlay = newLayer(cfg.ScreenWidth, cfg.ScreenHeight, 1)
	b.target = b.game
	b.viewport = viewport.New(cfg.ScreenWidth, cfg.ScreenHeight, nil)

	b.scaler = draw.NearestNeighbor
	if cfg.ScaleMode == "linear" {
		b.scaler = draw.ApproxBiLinear
	}
	b.clearColor = cfg.ClearRGBA().RGBA()
	b.letterbox = cfg.LetterboxRGBA().RGBA()

	hwW, hwH := cfg.ScreenWidth, cfg.ScreenHeight
	winW, winH := hwW, hwH
	if surface != nil {
		hwW, hwH = surface.DrawableSize()
		winW, winH = surface.Size()
	}

	b.initialized = true
	b.Resized(hwW, hwH, winW, winH)
	b.SetTargetTexture()
	b.ClearBuffer()

	core.LogInfo("immediate renderer: %dx%d canvas, render scale %d", cfg.ScreenWidth, cfg.ScreenHeight, s)
	return nil
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return nil
	}
	if b.usedMemory > 0 {
		core.LogWarn("immediate renderer: %d bytes of textures still allocated at shutdown", b.usedMemory)
	}
	b.initialized = false
	return nil
}

func (b *Backend) Capabilities() renderer.Capabilities {
	return renderer.Capabilities{
		Name:           Name,
		MaskTextures:   false,
		LogicOp:        false,
		Shaders:        false,
		Batching:       false,
		MaxTextureSize: b.cfg.MaxTextureSize,
		MinTextureSize: 1,
	}
}

func (b *Backend) Resized(hwW, hwH, winW, winH int) {
	if hwW <= 0 || hwH <= 0 {
		return
	}
	b.viewport.Update(hwW, hwH, winW, winH)
	if r := b.overlay.rgba().Rect; r.Dx() != hwW || r.Dy() != hwH {
		onOverlay := b.target == b.overlay
		b.overlay = newLayer(hwW, hwH, 1)
		if onOverlay {
			b.target = b.overlay
		}
	}
	phys := b.viewport.PhysRect()
	b.overlay.scale = float64(phys.W) / float64(b.cfg.ScreenWidth)
	b.overlay.offX, b.overlay.offY = float64(phys.X), float64(phys.Y)

	if b.screen == nil || b.screen.Rect.Dx() != hwW || b.screen.Rect.Dy() != hwH {
		b.screen = image.NewRGBA(image.Rect(0, 0, hwW, hwH))
	}
}

func (b *Backend) TextureCreate(p *metadata.Picture, img, mask *image.NRGBA) error {
	if img == nil || img.Rect.Empty() {
		err := fmt.Errorf("immediate renderer: %s: %w", p, core.ErrEmptyImage)
		core.LogError(err.Error())
		return err
	}
	if p.HasTexture() {
		b.TextureDestroy(p)
	}

	physW, physH := img.Rect.Dx(), img.Rect.Dy()
	if physW > b.cfg.MaxTextureSize || physH > b.cfg.MaxTextureSize*metadata.MaxTextureSlabs {
		err := fmt.Errorf("immediate renderer: %s is %dx%d, limit %d: %w", p, physW, physH, b.cfg.MaxTextureSize, core.ErrTextureTooLarge)
		core.LogError(err.Error())
		return err
	}

	t := &texture{img: graphics.Clone(img)}
	if mask != nil {
		b.bitblit.MergeWithMask(t.img, mask)
	}
	t.bytes = int64(len(t.img.Pix))

	if b.cfg.TextureMemoryBudget > 0 && b.usedMemory+t.bytes > b.cfg.TextureMemoryBudget {
		err := fmt.Errorf("immediate renderer: %s needs %d bytes, %d of %d in use: %w",
			p, t.bytes, b.usedMemory, b.cfg.TextureMemoryBudget, core.ErrOutOfTextureMemory)
		core.LogWarn(err.Error())
		return err
	}

	if p.W == 0 || p.H == 0 {
		p.W, p.H = physW, physH
	}
	p.Handles[0] = t
	p.SlabCount = 1
	p.SlabHeight = 0
	p.WOrig, p.HOrig = physW, physH
	p.WScale = 1 / float32(p.W)
	p.HScale = 1 / float32(p.H)
	p.ModColorSet = false
	b.usedMemory += t.bytes
	return nil
}

func (b *Backend) TextureDestroy(p *metadata.Picture) {
	if t, ok := p.Handles[0].(*texture); ok {
		b.usedMemory -= t.bytes
	}
	p.ResetHandles()
}

// Program always returns nil: this backend has no programs.
func (b *Backend) Program(name string) *metadata.Program {
	return nil
}

// UsedMemory returns the bytes held by uploaded textures.
func (b *Backend) UsedMemory() int64 {
	return b.usedMemory
}

// Screen returns the last composed output image.
func (b *Backend) Screen() *image.RGBA {
	return b.screen
}

func (b *Backend) SetViewport(x, y, w, h int) {
	b.viewport.Set(x, y, w, h)
}

func (b *Backend) ResetViewport() {
	b.viewport.Reset()
}

func (b *Backend) OffsetViewport(x, y int) {
	b.viewport.Offset(x, y)
}

func (b *Backend) OffsetViewportIgnore(ignore bool) {
	b.viewport.OffsetIgnore(ignore)
}

func (b *Backend) ViewportState() metadata.ViewportState {
	return b.viewport.State()
}

func (b *Backend) SetTargetTexture() {
	b.viewport.SetTarget(metadata.TargetTexture)
	b.target = b.game
}

func (b *Backend) SetTargetScreen() {
	b.viewport.SetTarget(metadata.TargetScreen)
	b.target = b.overlay
	b.overlayUsed = true
}

func (b *Backend) MapToScreen(x, y int) (int, int) {
	return b.viewport.MapToScreen(x, y)
}

func (b *Backend) MapFromScreen(x, y int) (int, int) {
	return b.viewport.MapFromScreen(x, y)
}

func (b *Backend) ClearBuffer() {
	l := b.target
	l.ctx.ResetClip()
	l.clip = l.rgba().Bounds()
	if l == b.overlay {
		l.ctx.SetColor(color.Transparent)
	} else {
		l.ctx.SetColor(b.clearColor)
	}
	l.ctx.Clear()
}

func (b *Backend) Repaint() error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}

	draw.Draw(b.screen, b.screen.Bounds(), image.NewUniform(b.letterbox), image.Point{}, draw.Src)
	game := b.game.rgba()
	b.scaler.Scale(b.screen, b.viewport.PhysRect().Image(), game, game.Bounds(), draw.Src, nil)
	if b.overlayUsed {
		draw.Draw(b.screen, b.screen.Bounds(), b.overlay.rgba(), image.Point{}, draw.Over)
		b.overlay.ctx.ResetClip()
		b.overlay.clip = b.overlay.rgba().Bounds()
		b.overlay.ctx.SetColor(color.Transparent)
		b.overlay.ctx.Clear()
		b.overlayUsed = b.target == b.overlay
	}

	var err error
	if b.surface != nil {
		if err = b.surface.Present(b.screen); err != nil {
			err = fmt.Errorf("immediate renderer: present: %w", err)
			core.LogError(err.Error())
		}
	}

	b.stats = b.frameStats
	b.frameStats = metadata.FrameStats{}
	return err
}

func (b *Backend) Stats() metadata.FrameStats {
	return b.stats
}

// pixelClip is the active viewport clip in target pixels.
func (b *Backend) pixelClip() image.Rectangle {
	l := b.target
	c := b.viewport.Transform().Clip
	x0, y0 := l.offX+float64(c.X)*l.scale, l.offY+float64(c.Y)*l.scale
	x1, y1 := l.offX+float64(c.X+c.W)*l.scale, l.offY+float64(c.Y+c.H)*l.scale
	r := image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
	return r.Intersect(l.rgba().Bounds())
}

// installClip makes the gg clip mask match the viewport. It reports false when
// nothing can be drawn.
func (b *Backend) installClip() (image.Rectangle, bool) {
	l := b.target
	clip := b.pixelClip()
	if clip.Empty() {
		return clip, false
	}
	if clip != l.clip {
		l.ctx.ResetClip()
		if clip != l.rgba().Bounds() {
			l.ctx.DrawRectangle(float64(clip.Min.X), float64(clip.Min.Y), float64(clip.Dx()), float64(clip.Dy()))
			l.ctx.Clip()
		}
		l.clip = clip
	}
	return clip, true
}

// physical converts a logical point relative to the viewport, offset included, to
// target pixels.
func (b *Backend) physical(x, y float64) (float64, float64) {
	l := b.target
	t := b.viewport.Transform()
	ox, oy := b.viewport.Offsets()
	return l.offX + (x+float64(ox+t.OriginX))*l.scale, l.offY + (y+float64(oy+t.OriginY))*l.scale
}

func (b *Backend) RenderTexture(p *metadata.Picture, d metadata.TextureDraw) {
	if p == nil || !p.HasTexture() {
		core.LogWarn("immediate renderer: attempt to render an empty texture")
		return
	}
	t, ok := p.Handles[0].(*texture)
	if !ok {
		return
	}

	wDst, hDst := math.Round(d.W), math.Round(d.H)
	srcW, srcH := d.SrcW, d.SrcH
	if d.SrcX+srcW > p.W {
		srcW = max(p.W-d.SrcX, 0)
	}
	if d.SrcY+srcH > p.H {
		srcH = max(p.H-d.SrcY, 0)
	}
	if srcW == 0 || srcH == 0 || wDst == 0 || hDst == 0 {
		return
	}
	clip, ok := b.installClip()
	if !ok {
		return
	}

	// source rectangle in image pixels
	sx := float64(p.WOrig) / float64(p.W)
	sy := float64(p.HOrig) / float64(p.H)
	sr := image.Rect(
		int(float64(d.SrcX)*sx), int(float64(d.SrcY)*sy),
		int(float64(d.SrcX+srcW)*sx), int(float64(d.SrcY+srcH)*sy),
	)
	if sr.Empty() {
		return
	}

	x0, y0 := b.physical(math.Round(d.X), math.Round(d.Y))
	s := b.target.scale
	w, h := wDst*s, hDst*s

	cx, cy := x0+w/2, y0+h/2
	if d.Center != nil {
		cx, cy = x0+float64(d.Center.X)*s, y0+float64(d.Center.Y)*s
	}

	ax, ay := w/float64(sr.Dx()), h/float64(sr.Dy())
	if d.Flip&metadata.FlipX != 0 {
		x0 += w
		ax = -ax
	}
	if d.Flip&metadata.FlipY != 0 {
		y0 += h
		ay = -ay
	}
	// translation of the unrotated mapping src -> dst
	tx := x0 - ax*float64(sr.Min.X) - cx
	ty := y0 - ay*float64(sr.Min.Y) - cy

	sin, cos := math.Sincos(d.Angle * math.Pi / 180)
	m := f64.Aff3{
		ax * cos, -ay * sin, cx + tx*cos - ty*sin,
		ax * sin, ay * cos, cy + tx*sin + ty*cos,
	}

	dst := b.target.rgba().SubImage(clip).(*image.RGBA)
	draw.NearestNeighbor.Transform(dst, m, t.source(p, d.Tint), sr, draw.Over, nil)
	b.count(6)
}

func (b *Backend) fillRect(x, y, w, h float64) {
	x0, y0 := b.physical(x, y)
	s := b.target.scale
	b.target.ctx.DrawRectangle(x0, y0, w*s, h*s)
}

func (b *Backend) RenderRect(x, y, w, h int, c metadata.Color, filled bool) {
	if w <= 0 || h <= 0 {
		return
	}
	if _, ok := b.installClip(); !ok {
		return
	}
	ctx := b.target.ctx
	ctx.SetColor(c.RGBA())
	fx, fy, fw, fh := float64(x), float64(y), float64(w), float64(h)
	if filled {
		b.fillRect(fx, fy, fw, fh)
	} else {
		b.fillRect(fx, fy, fw, 1)
		b.fillRect(fx, fy+fh-1, fw, 1)
		b.fillRect(fx, fy+1, 1, fh-2)
		b.fillRect(fx+fw-1, fy+1, 1, fh-2)
	}
	ctx.Fill()
	b.count(6)
}

func (b *Backend) RenderCircle(cx, cy, radius int, c metadata.Color, filled bool) {
	if radius <= 0 {
		return
	}
	if _, ok := b.installClip(); !ok {
		return
	}
	ctx := b.target.ctx
	s := b.target.scale
	x, y := b.physical(float64(cx), float64(cy))
	ctx.SetColor(c.RGBA())
	if filled {
		ctx.DrawCircle(x, y, float64(radius)*s)
		ctx.Fill()
	} else {
		ctx.SetLineWidth(s)
		ctx.DrawCircle(x, y, float64(radius)*s-s/2)
		ctx.Stroke()
	}
	b.count(0)
}

// RenderCircleHole fills the square around the circle, leaving the disc empty.
func (b *Backend) RenderCircleHole(cx, cy, radius int, c metadata.Color) {
	if radius <= 0 {
		return
	}
	if _, ok := b.installClip(); !ok {
		return
	}
	ctx := b.target.ctx
	s := b.target.scale
	x, y := b.physical(float64(cx), float64(cy))
	r := float64(radius) * s
	ctx.SetColor(c.RGBA())
	ctx.DrawRectangle(x-r, y-r, 2*r, 2*r)
	ctx.DrawCircle(x, y, r)
	ctx.SetFillRule(gg.FillRuleEvenOdd)
	ctx.Fill()
	ctx.SetFillRule(gg.FillRuleWinding)
	b.count(0)
}

func (b *Backend) count(vertices int) {
	b.frameStats.OrderedCalls++
	b.frameStats.Vertices += vertices
}

func (b *Backend) GetScreenPixels(x, y, w, h int) []byte {
	return b.readPixels(x, y, w, h, 3)
}

func (b *Backend) GetScreenPixelsRGBA(x, y, w, h int) []byte {
	return b.readPixels(x, y, w, h, 4)
}

func (b *Backend) readPixels(x, y, w, h, channels int) []byte {
	if w <= 0 || h <= 0 {
		return nil
	}
	img := b.game.rgba()
	s := b.cfg.RenderScale
	bx, by, bw, bh := x*s, y*s, w*s, h*s

	out := make([]byte, w*h*channels)
	for r := 0; r < h; r++ {
		sy := by + r*bh/h
		for c := 0; c < w; c++ {
			px := color.NRGBAModel.Convert(img.RGBAAt(bx+c*bw/w, sy)).(color.NRGBA)
			o := (r*w + c) * channels
			out[o], out[o+1], out[o+2] = px.R, px.G, px.B
			if channels == 4 {
				out[o+3] = px.A
			}
		}
	}
	return out
}
