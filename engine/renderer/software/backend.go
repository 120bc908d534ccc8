package software

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/graphics"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/batch"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	"github.com/spaghettifunk/xrender/engine/renderer/viewport"
	"golang.org/x/image/draw"
)

const Name = "software"

func init() {
	renderer.RegisterBackend(Name, 10, func() renderer.RendererBackend {
		return New()
	})
}

/**
 * @brief The batched CPU backend. Draws are queued in a batch.Engine and rasterized by
 * a Device into the game framebuffer, which Repaint scales into the letterboxed screen.
 */
type Backend struct {
	cfg     config.RenderConfig
	surface renderer.Surface

	device   *Device
	batch    *batch.Engine
	viewport *viewport.Viewport

	scaler     draw.Scaler
	clearColor color.NRGBA
	letterbox  color.NRGBA
	screen     *image.RGBA

	usedMemory  int64
	overlayUsed bool
	stats       metadata.FrameStats
	initialized bool
}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Initialize(cfg *config.RenderConfig, surface renderer.Surface) error {
	if cfg.ScreenWidth <= 0 || cfg.ScreenHeight <= 0 {
		err := fmt.Errorf("software renderer: canvas %dx%d: %w", cfg.ScreenWidth, cfg.ScreenHeight, core.ErrInvalidConfiguration)
		core.LogError(err.Error())
		return err
	}

	b.cfg = *cfg
	b.cfg.RenderScale = max(b.cfg.RenderScale, 1)
	b.cfg.MinTextureSize = max(b.cfg.MinTextureSize, 1)
	if b.cfg.MaxTextureSize <= 0 {
		b.cfg.MaxTextureSize = 4096
	}
	b.surface = surface

	b.device = NewDevice(cfg.ScreenWidth, cfg.ScreenHeight, b.cfg.RenderScale, DeviceOptions{
		LogicOp:  cfg.LogicOp,
		Shaders:  cfg.Shaders,
		BottomUp: cfg.BottomUpRows,
	})
	b.batch = batch.New(b.device,
		batch.WithMultipassCount(cfg.MultipassCount),
		batch.WithPruneInterval(uint64(max(cfg.PruneInterval, 0))),
	)
	b.viewport = viewport.New(cfg.ScreenWidth, cfg.ScreenHeight, b.batch.Flush)

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
	b.device.Clear(b.clearColor)

	core.LogInfo("software renderer: %dx%d canvas, render scale %d, logic-op %t, shaders %t",
		cfg.ScreenWidth, cfg.ScreenHeight, b.cfg.RenderScale, cfg.LogicOp, cfg.Shaders)
	return nil
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return nil
	}
	b.batch.Clear()
	if b.usedMemory > 0 {
		core.LogWarn("software renderer: %d bytes of textures still allocated at shutdown", b.usedMemory)
	}
	b.initialized = false
	return nil
}

func (b *Backend) Capabilities() renderer.Capabilities {
	return renderer.Capabilities{
		Name:           Name,
		MaskTextures:   true,
		LogicOp:        b.cfg.LogicOp,
		Shaders:        b.cfg.Shaders,
		Batching:       true,
		MaxTextureSize: b.cfg.MaxTextureSize,
		MinTextureSize: b.cfg.MinTextureSize,
	}
}

func (b *Backend) Resized(hwW, hwH, winW, winH int) {
	if hwW <= 0 || hwH <= 0 {
		return
	}
	b.viewport.Update(hwW, hwH, winW, winH)
	b.device.ResizeOverlay(hwW, hwH)
	if b.screen == nil || b.screen.Rect.Dx() != hwW || b.screen.Rect.Dy() != hwH {
		b.screen = image.NewRGBA(image.Rect(0, 0, hwW, hwH))
	}
	if b.viewport.State().Target == metadata.TargetScreen {
		b.device.UseOverlay(b.viewport.PhysRect())
	}
	b.applyViewport()
}

// Screen returns the last composed output image.
func (b *Backend) Screen() *image.RGBA {
	return b.screen
}

// UsedMemory returns the bytes held by uploaded textures.
func (b *Backend) UsedMemory() int64 {
	return b.usedMemory
}

func (b *Backend) TextureCreate(p *metadata.Picture, img, mask *image.NRGBA) error {
	if img == nil || img.Rect.Empty() {
		err := fmt.Errorf("software renderer: %s: %w", p, core.ErrEmptyImage)
		core.LogError(err.Error())
		return err
	}
	if p.HasTexture() {
		b.TextureDestroy(p)
	}

	physW, physH := img.Rect.Dx(), img.Rect.Dy()
	if physW > b.cfg.MaxTextureSize {
		err := fmt.Errorf("software renderer: %s is %d pixels wide, limit %d: %w", p, physW, b.cfg.MaxTextureSize, core.ErrTextureTooLarge)
		core.LogError(err.Error())
		return err
	}
	if p.W == 0 || p.H == 0 {
		p.W, p.H = physW, physH
	}
	if mask != nil {
		mask = graphics.FitMask(mask, physW, physH)
	}

	images, err := graphics.SplitSlabs(img, b.cfg.MaxTextureSize)
	if err != nil {
		core.LogError("software renderer: %s: %s", p, err.Error())
		return err
	}
	var masks []*image.NRGBA
	if mask != nil {
		if masks, err = graphics.SplitSlabs(mask, b.cfg.MaxTextureSize); err != nil {
			core.LogError("software renderer: %s mask: %s", p, err.Error())
			return err
		}
	}

	textures := make([]*texture, len(images))
	var total int64
	for i, slab := range images {
		var m *image.NRGBA
		if masks != nil {
			m = graphics.PadToPowerOfTwo(masks[i], b.cfg.MinTextureSize, 0xFF)
		}
		textures[i] = newTexture(graphics.PadToPowerOfTwo(slab, b.cfg.MinTextureSize, 0), m)
		total += textures[i].bytes
	}

	if b.cfg.TextureMemoryBudget > 0 && b.usedMemory+total > b.cfg.TextureMemoryBudget {
		err := fmt.Errorf("software renderer: %s needs %d bytes, %d of %d in use: %w",
			p, total, b.usedMemory, b.cfg.TextureMemoryBudget, core.ErrOutOfTextureMemory)
		core.LogWarn(err.Error())
		return err
	}

	for i, t := range textures {
		p.Handles[i] = t
	}
	p.SlabCount = len(textures)
	p.SlabHeight = 0
	if len(textures) > 1 {
		p.SlabHeight = b.cfg.MaxTextureSize * p.H / physH
	}
	if mask != nil {
		p.MaskHandle = textures[0].mask
	}
	p.WOrig, p.HOrig = physW, physH
	p.WScale = float32(physW) / float32(p.W) / float32(textures[0].w)
	p.HScale = float32(physH) / float32(p.H) / float32(textures[0].h)
	b.usedMemory += total
	return nil
}

func (b *Backend) TextureDestroy(p *metadata.Picture) {
	if !p.HasTexture() && !p.HasMask() {
		return
	}
	// draws queued this frame still sample the texture
	if b.batch.Pending(p) {
		b.batch.Flush()
	}
	b.batch.Forget(p)
	for _, h := range p.Handles {
		if t, ok := h.(*texture); ok {
			b.usedMemory -= t.bytes
		}
	}
	p.ResetHandles()
}

func (b *Backend) Program(name string) *metadata.Program {
	return b.device.Program(name)
}

func (b *Backend) applyViewport() {
	b.device.SetViewport(b.viewport.Transform())
}

func (b *Backend) SetViewport(x, y, w, h int) {
	b.viewport.Set(x, y, w, h)
	b.applyViewport()
}

func (b *Backend) ResetViewport() {
	b.viewport.Reset()
	b.applyViewport()
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
	b.device.UseGame()
	b.applyViewport()
}

func (b *Backend) SetTargetScreen() {
	b.viewport.SetTarget(metadata.TargetScreen)
	b.device.UseOverlay(b.viewport.PhysRect())
	b.applyViewport()
	b.overlayUsed = true
}

func (b *Backend) MapToScreen(x, y int) (int, int) {
	return b.viewport.MapToScreen(x, y)
}

func (b *Backend) MapFromScreen(x, y int) (int, int) {
	return b.viewport.MapFromScreen(x, y)
}

// ClearBuffer drops queued draws and clears the current target.
func (b *Backend) ClearBuffer() {
	b.batch.Clear()
	if b.viewport.State().Target == metadata.TargetScreen {
		b.device.ClearOverlay()
		return
	}
	b.device.Clear(b.clearColor)
}

/**
 * @brief Flushes the frame, composes the letterboxed output (bars, scaled canvas, then
 * anything drawn to the screen target) and presents it.
 */
func (b *Backend) Repaint() error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}
	b.batch.Flush()

	draw.Draw(b.screen, b.screen.Bounds(), image.NewUniform(b.letterbox), image.Point{}, draw.Src)
	game := b.device.game.image()
	b.scaler.Scale(b.screen, b.viewport.PhysRect().Image(), game, game.Bounds(), draw.Src, nil)
	if b.overlayUsed {
		draw.Draw(b.screen, b.screen.Bounds(), b.device.overlay.image(), image.Point{}, draw.Over)
		b.device.ClearOverlay()
		b.overlayUsed = b.viewport.State().Target == metadata.TargetScreen
	}

	var err error
	if b.surface != nil {
		if err = b.surface.Present(b.screen); err != nil {
			err = fmt.Errorf("software renderer: present: %w", err)
			core.LogError(err.Error())
		}
	}

	b.device.ClearDepth()
	b.stats = metadata.FrameStats(b.batch.EndFrame())
	return err
}

func (b *Backend) Stats() metadata.FrameStats {
	return b.stats
}

func (b *Backend) RenderTexture(p *metadata.Picture, d metadata.TextureDraw) {
	if p == nil || !p.HasTexture() {
		core.LogWarn("software renderer: attempt to render an empty texture")
		return
	}

	xDst, yDst := int(math.Round(d.X)), int(math.Round(d.Y))
	wDst, hDst := int(math.Round(d.W)), int(math.Round(d.H))

	// don't sample past the picture
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

	ox, oy := b.viewport.Offsets()
	xDst += ox
	yDst += oy

	sx := float64(max(p.WOrig, 1)) / float64(p.W)
	sy := float64(max(p.HOrig, 1)) / float64(p.H)

	cx, cy := float64(xDst)+float64(wDst)/2, float64(yDst)+float64(hDst)/2
	if d.Center != nil {
		cx, cy = float64(xDst)+float64(d.Center.X), float64(yDst)+float64(d.Center.Y)
	}
	sin, cos := math.Sincos(d.Angle * math.Pi / 180)

	slabHeight := p.SlabHeight
	if p.SlabCount <= 1 {
		slabHeight = 0
	}
	for _, span := range graphics.SlabSpans(d.SrcY, srcH, yDst, hDst, slabHeight) {
		tex, _ := p.Handle(span.Slab).(*texture)
		if tex == nil {
			continue
		}

		u1 := float32(float64(d.SrcX) * sx / float64(tex.w))
		u2 := float32(float64(d.SrcX+srcW) * sx / float64(tex.w))
		v1 := float32(float64(span.SrcY) * sy / float64(tex.h))
		v2 := float32(float64(span.SrcY+span.SrcH) * sy / float64(tex.h))

		x1, x2 := xDst, xDst+wDst
		y1, y2 := span.DstY, span.DstY+span.DstH
		if d.Flip&metadata.FlipX != 0 {
			u1, u2 = u2, u1
		}
		if d.Flip&metadata.FlipY != 0 {
			v1, v2 = v2, v1
			y1, y2 = 2*yDst+hDst-y2, 2*yDst+hDst-y1
		}

		if d.Angle == 0 {
			b.batch.DrawTexture(p, uint8(span.Slab), p.Program,
				int16(x1), int16(y1), int16(x2), int16(y2), u1, v1, u2, v2, d.Tint)
			continue
		}

		rotate := func(x, y int) [2]int16 {
			dx, dy := float64(x)-cx, float64(y)-cy
			return [2]int16{
				int16(math.Round(cx + dx*cos - dy*sin)),
				int16(math.Round(cy + dx*sin + dy*cos)),
			}
		}
		corners := [4][2]int16{rotate(x1, y1), rotate(x1, y2), rotate(x2, y1), rotate(x2, y2)}
		uv := [4][2]float32{{u1, v1}, {u1, v2}, {u2, v1}, {u2, v2}}
		b.batch.DrawTextureQuad(p, uint8(span.Slab), p.Program, corners, uv, d.Tint)
	}
}

func (b *Backend) RenderRect(x, y, w, h int, c metadata.Color, filled bool) {
	ox, oy := b.viewport.Offsets()
	b.batch.DrawRect(x+ox, y+oy, w, h, c, filled)
}

func (b *Backend) RenderCircle(cx, cy, radius int, c metadata.Color, filled bool) {
	ox, oy := b.viewport.Offsets()
	if !filled {
		b.batch.DrawCircleOutline(cx+ox, cy+oy, radius, c)
		return
	}
	b.batch.DrawCircle(cx+ox, cy+oy, radius, c)
}

func (b *Backend) RenderCircleHole(cx, cy, radius int, c metadata.Color) {
	ox, oy := b.viewport.Offsets()
	b.batch.DrawCircleHole(cx+ox, cy+oy, radius, c)
}

func (b *Backend) GetScreenPixels(x, y, w, h int) []byte {
	return b.readPixels(x, y, w, h, 3)
}

func (b *Backend) GetScreenPixelsRGBA(x, y, w, h int) []byte {
	return b.readPixels(x, y, w, h, 4)
}

// readPixels resamples the logical rectangle of the game framebuffer to w x h, top row
// first whatever the storage order.
func (b *Backend) readPixels(x, y, w, h, channels int) []byte {
	if w <= 0 || h <= 0 {
		return nil
	}
	b.batch.Flush()

	fb := b.device.game
	s := b.cfg.RenderScale
	bx, by, bw, bh := x*s, y*s, w*s, h*s

	out := make([]byte, w*h*channels)
	for r := 0; r < h; r++ {
		sy := by + r*bh/h
		for c := 0; c < w; c++ {
			px := fb.at(bx+c*bw/w, sy)
			o := (r*w + c) * channels
			out[o], out[o+1], out[o+2] = px.R, px.G, px.B
			if channels == 4 {
				out[o+3] = px.A
			}
		}
	}
	return out
}
