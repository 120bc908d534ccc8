package software

import (
	"image"
	"image/color"
	"math"

	"github.com/spaghettifunk/xrender/engine/renderer/batch"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	"github.com/spaghettifunk/xrender/engine/renderer/viewport"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

/** @brief Feature switches of a software device. */
type DeviceOptions struct {
	/** @brief AND/OR compositing of masked pictures. When off, the bitmask program is used. */
	LogicOp bool
	/** @brief Programs for rects, circles and effects. When off, primitives are tessellated. */
	Shaders bool
	/** @brief Store framebuffers bottom row first. */
	BottomUp bool
}

/**
 * @brief Device rasterizes batched triangle lists into CPU framebuffers.
 *
 * The game framebuffer holds the logical canvas at render scale and has an int16
 * depth buffer tested with greater-or-equal. The overlay framebuffer has the size of
 * the physical output and receives draws made while the screen is the target.
 */
type Device struct {
	opts     DeviceOptions
	programs map[string]*metadata.Program

	screenW     int
	screenH     int
	renderScale int

	game    *framebuffer
	overlay *framebuffer
	target  *framebuffer
	aux     map[batch.BufferID]*framebuffer
	depth   []int16

	scale     float64
	offX      float64
	offY      float64
	transform viewport.Transform
	clip      image.Rectangle

	depthTest  bool
	depthWrite bool
}

// NewDevice returns a device for a screenW x screenH logical canvas rendered renderScale
// times larger, drawing to the game framebuffer.
func NewDevice(screenW, screenH, renderScale int, opts DeviceOptions) *Device {
	renderScale = max(renderScale, 1)
	d := &Device{
		opts:        opts,
		programs:    builtinPrograms(),
		screenW:     screenW,
		screenH:     screenH,
		renderScale: renderScale,
		game:        newFramebuffer(screenW*renderScale, screenH*renderScale, opts.BottomUp),
		overlay:     newFramebuffer(screenW, screenH, opts.BottomUp),
		aux:         make(map[batch.BufferID]*framebuffer),
		depth:       make([]int16, screenW*renderScale*screenH*renderScale),
		depthWrite:  true,
		transform: viewport.Transform{
			Clip: metadata.Rect{W: screenW, H: screenH},
		},
	}
	d.UseGame()
	return d
}

func (d *Device) Programs() batch.Programs {
	p := batch.Programs{
		Standard: d.programs[ProgramStandard],
		Bitmask:  d.programs[ProgramBitmask],
	}
	if d.opts.Shaders {
		p.RectFilled = d.programs[ProgramRectFilled]
		p.RectUnfilled = d.programs[ProgramRectUnfilled]
		p.Circle = d.programs[ProgramCircle]
		p.CircleHole = d.programs[ProgramCircleHole]
	}
	return p
}

// Program returns a named program, or nil when shaders are disabled or the name is unknown.
func (d *Device) Program(name string) *metadata.Program {
	if !d.opts.Shaders {
		return nil
	}
	return d.programs[name]
}

func (d *Device) HasLogicOp() bool {
	return d.opts.LogicOp
}

func (d *Device) SetDepthWrite(enabled bool) {
	d.depthWrite = enabled
}

// UseGame makes the game framebuffer the render target.
func (d *Device) UseGame() {
	d.target = d.game
	d.scale = float64(d.renderScale)
	d.offX, d.offY = 0, 0
	d.depthTest = true
	d.SetViewport(d.transform)
}

// UseOverlay makes the physical overlay the render target, with the canvas placed at phys.
func (d *Device) UseOverlay(phys metadata.Rect) {
	d.target = d.overlay
	d.scale = float64(phys.W) / float64(d.screenW)
	d.offX, d.offY = float64(phys.X), float64(phys.Y)
	d.depthTest = false
	d.SetViewport(d.transform)
}

// ResizeOverlay reallocates the overlay for a new physical output size.
func (d *Device) ResizeOverlay(w, h int) {
	if d.overlay.w == w && d.overlay.h == h {
		return
	}
	onOverlay := d.target == d.overlay
	d.overlay = newFramebuffer(w, h, d.opts.BottomUp)
	if onOverlay {
		d.target = d.overlay
	}
}

// SetViewport places subsequent geometry at the transform's origin and clips it.
func (d *Device) SetViewport(t viewport.Transform) {
	d.transform = t
	c := t.Clip
	x0 := int(math.Round(d.offX + float64(c.X)*d.scale))
	y0 := int(math.Round(d.offY + float64(c.Y)*d.scale))
	x1 := int(math.Round(d.offX + float64(c.X+c.W)*d.scale))
	y1 := int(math.Round(d.offY + float64(c.Y+c.H)*d.scale))
	d.clip = image.Rect(x0, y0, x1, y1).Intersect(d.target.bounds())
}

// Clear fills the current target and, on the game framebuffer, resets depth.
func (d *Device) Clear(c color.NRGBA) {
	d.target.fill(c)
	if d.target == d.game {
		d.ClearDepth()
	}
}

func (d *Device) ClearDepth() {
	clear(d.depth)
}

// ClearOverlay makes the overlay fully transparent.
func (d *Device) ClearOverlay() {
	clear(d.overlay.pix)
}

// physical converts a viewport-relative logical point to target pixels.
func (d *Device) physical(x, y int) (float64, float64) {
	return d.offX + float64(x+d.transform.OriginX)*d.scale, d.offY + float64(y+d.transform.OriginY)*d.scale
}

func (d *Device) pixelRect(r metadata.Rect) image.Rectangle {
	x0, y0 := d.physical(r.X, r.Y)
	x1, y1 := d.physical(r.X+r.W, r.Y+r.H)
	return image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
}

func (d *Device) buffer(id batch.BufferID) *framebuffer {
	if id == batch.BufferGame {
		return d.target
	}
	fb := d.aux[id]
	if !d.target.sameShape(fb) {
		fb = newFramebuffer(d.target.w, d.target.h, d.opts.BottomUp)
		d.aux[id] = fb
	}
	return fb
}

func (d *Device) CopyBuffer(dst, src batch.BufferID, rect *metadata.Rect) {
	r := d.clip
	if rect != nil {
		r = d.pixelRect(*rect).Intersect(d.clip)
	}
	d.buffer(dst).copyRect(d.buffer(src), r)
}

// sample reads a snapshot buffer, falling back to the live target when it was never taken.
func (d *Device) sample(id batch.BufferID, x, y int) color.NRGBA {
	fb := d.aux[id]
	if !d.target.sameShape(fb) {
		return d.target.at(x, y)
	}
	return fb.at(x, y)
}

func (d *Device) DrawVertices(ctx metadata.DrawContext, mode batch.DrawMode, vertices []metadata.Vertex, pass int) {
	if d.clip.Empty() {
		return
	}

	var tex *texture
	if ctx.Picture != nil {
		tex, _ = ctx.Texture().(*texture)
		if tex == nil {
			return
		}
	}
	if mode == batch.DrawMaskAND && (tex == nil || tex.mask == nil) {
		return
	}

	shader := shaderOf(ctx.Program)
	for i := 0; i+2 < len(vertices); i += 3 {
		tri := vertices[i : i+3]
		z := tri[0].Position[2]
		tint := color.NRGBA{R: tri[0].Tint[0], G: tri[0].Tint[1], B: tri[0].Tint[2], A: tri[0].Tint[3]}
		d.rasterize(tri, func(x, y int, u, v float32) {
			d.shade(x, y, u, v, z, tint, tex, shader, mode, pass)
		})
	}
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// covers applies the fill rule for pixel centres lying exactly on edge a->b, so a
// shared edge belongs to exactly one of the two triangles.
func covers(w, ax, ay, bx, by float64) bool {
	if w != 0 {
		return w > 0
	}
	dy := by - ay
	return dy > 0 || (dy == 0 && bx-ax < 0)
}

// rasterize calls fn for every pixel centre covered by the triangle inside the clip.
func (d *Device) rasterize(tri []metadata.Vertex, fn func(x, y int, u, v float32)) {
	var px, py [3]float64
	var tu, tv [3]float64
	for k := 0; k < 3; k++ {
		px[k], py[k] = d.physical(int(tri[k].Position[0]), int(tri[k].Position[1]))
		tu[k], tv[k] = float64(tri[k].TexCoord[0]), float64(tri[k].TexCoord[1])
	}

	area := edge(px[0], py[0], px[1], py[1], px[2], py[2])
	if area == 0 {
		return
	}
	if area < 0 {
		px[1], px[2] = px[2], px[1]
		py[1], py[2] = py[2], py[1]
		tu[1], tu[2] = tu[2], tu[1]
		tv[1], tv[2] = tv[2], tv[1]
		area = -area
	}

	minX := max(int(math.Floor(min(px[0], px[1], px[2]))), d.clip.Min.X)
	maxX := min(int(math.Ceil(max(px[0], px[1], px[2]))), d.clip.Max.X)
	minY := max(int(math.Floor(min(py[0], py[1], py[2]))), d.clip.Min.Y)
	maxY := min(int(math.Ceil(max(py[0], py[1], py[2]))), d.clip.Max.Y)

	for y := minY; y < maxY; y++ {
		cy := float64(y) + 0.5
		for x := minX; x < maxX; x++ {
			cx := float64(x) + 0.5
			w0 := edge(px[1], py[1], px[2], py[2], cx, cy)
			w1 := edge(px[2], py[2], px[0], py[0], cx, cy)
			w2 := edge(px[0], py[0], px[1], py[1], cx, cy)
			if !covers(w0, px[1], py[1], px[2], py[2]) ||
				!covers(w1, px[2], py[2], px[0], py[0]) ||
				!covers(w2, px[0], py[0], px[1], py[1]) {
				continue
			}
			u := (w0*tu[0] + w1*tu[1] + w2*tu[2]) / area
			v := (w0*tv[0] + w1*tv[1] + w2*tv[2]) / area
			fn(x, y, float32(u), float32(v))
		}
	}
}

func (d *Device) shade(x, y int, u, v float32, z int16, tint color.NRGBA, tex *texture, shader *Shader, mode batch.DrawMode, pass int) {
	di := y*d.target.w + x
	if d.depthTest && z < d.depth[di] {
		return
	}

	frag := Fragment{X: x, Y: y, U: u, V: v, Tint: tint, Texel: white, Mask: white, Pass: pass, device: d}
	if tex != nil {
		frag.Texel = tex.sample(tex.img, u, v)
		if tex.mask != nil {
			frag.Mask = tex.sample(tex.mask, u, v)
		}
	}

	px := d.target.pix[d.target.offset(x, y):]
	switch mode {
	case batch.DrawMaskAND:
		px[0] &= frag.Mask.R
		px[1] &= frag.Mask.G
		px[2] &= frag.Mask.B
		px[3] &= frag.Mask.A
		return
	case batch.DrawImageOR:
		c := modulate(frag.Texel, frag.Tint)
		px[0] |= c.R
		px[1] |= c.G
		px[2] |= c.B
		px[3] |= c.A
		return
	}

	c, ok := modulate(frag.Texel, frag.Tint), true
	if shader != nil {
		c, ok = shader.Fragment(&frag)
	}
	if !ok {
		return
	}

	switch {
	case d.depthWrite:
		if c.A < 128 {
			return
		}
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, 255
		if d.depthTest {
			d.depth[di] = z
		}
	case shader != nil && shader.Replace:
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
	default:
		blendOver(px, c)
	}
}

// blendOver composites straight-alpha c over the straight-alpha pixel px.
func blendOver(px []uint8, c color.NRGBA) {
	sa := uint32(c.A)
	switch sa {
	case 0:
		return
	case 255:
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, 255
		return
	}
	da := uint32(px[3])
	outA := sa*255 + da*(255-sa)
	if outA == 0 {
		return
	}
	mix := func(s, d uint8) uint8 {
		return uint8((uint32(s)*sa*255 + uint32(d)*da*(255-sa) + outA/2) / outA)
	}
	px[0] = mix(c.R, px[0])
	px[1] = mix(c.G, px[1])
	px[2] = mix(c.B, px[2])
	px[3] = uint8((outA + 127) / 255)
}
