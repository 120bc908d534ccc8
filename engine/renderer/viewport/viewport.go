package viewport

import (
	"math"

	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// Transform is what a backend needs to place viewport-relative geometry: the
// origin added to every vertex and the clip rectangle, both in logical pixels.
type Transform struct {
	OriginX int
	OriginY int
	Clip    metadata.Rect
}

// Viewport maps the fixed logical canvas onto the physical output and tracks the
// active sub-rectangle and offset. Every change of state that affects geometry
// already queued calls the flush hook first.
type Viewport struct {
	screenW int
	screenH int

	hwW  int
	hwH  int
	winW int
	winH int

	phys   metadata.Rect
	hidpiX float32
	hidpiY float32

	state metadata.ViewportState
	flush func()
}

// New returns a viewport for a screenW x screenH logical canvas shown 1:1. flush
// may be nil.
func New(screenW, screenH int, flush func()) *Viewport {
	v := &Viewport{
		screenW: screenW,
		screenH: screenH,
	}
	v.Update(screenW, screenH, screenW, screenH)
	v.flush = flush
	return v
}

// SetFlush installs the hook called before state changes.
func (v *Viewport) SetFlush(flush func()) {
	v.flush = flush
}

func (v *Viewport) doFlush() {
	if v.flush != nil {
		v.flush()
	}
}

// Update records the drawable (hardware pixel) size and the window size, recomputes
// the letterboxed canvas rectangle and the HiDPI factors, then resets the viewport.
func (v *Viewport) Update(hwW, hwH, winW, winH int) {
	v.hwW, v.hwH = hwW, hwH
	v.winW, v.winH = winW, winH

	v.hidpiX, v.hidpiY = 1, 1
	if winW > 0 && winH > 0 {
		v.hidpiX = float32(hwW) / float32(winW)
		v.hidpiY = float32(hwH) / float32(winH)
	}

	v.phys = letterbox(v.screenW, v.screenH, hwW, hwH)
	v.Reset()
}

// letterbox fits the logical canvas into the hardware size with a uniform scale and
// centres it. One dimension always fills the output.
func letterbox(screenW, screenH, hwW, hwH int) metadata.Rect {
	if screenW <= 0 || screenH <= 0 || hwW <= 0 || hwH <= 0 {
		return metadata.Rect{}
	}
	resH := hwH
	resW := screenW * hwH / screenH
	if resW > hwW {
		resW = hwW
		resH = screenH * resW / screenW
	}
	return metadata.Rect{
		X: hwW/2 - resW/2,
		Y: hwH/2 - resH/2,
		W: resW,
		H: resH,
	}
}

// Reset restores the full-screen viewport with no offset.
func (v *Viewport) Reset() {
	next := metadata.ViewportState{
		X:      0,
		Y:      0,
		W:      v.screenW,
		H:      v.screenH,
		Target: v.state.Target,
	}
	if next == v.state {
		return
	}
	v.doFlush()
	v.state = next
}

// Set replaces the active sub-rectangle.
func (v *Viewport) Set(x, y, w, h int) {
	if v.state.X == x && v.state.Y == y && v.state.W == w && v.state.H == h {
		return
	}
	v.doFlush()
	v.state.X, v.state.Y, v.state.W, v.state.H = x, y, w, h
}

// Offset sets the translation added to subsequently submitted primitives.
func (v *Viewport) Offset(x, y int) {
	if v.state.OffsetX == x && v.state.OffsetY == y {
		return
	}
	v.doFlush()
	v.state.OffsetX, v.state.OffsetY = x, y
}

// OffsetIgnore suspends or restores the offset.
func (v *Viewport) OffsetIgnore(ignore bool) {
	if v.state.IgnoreOffset == ignore {
		return
	}
	if v.state.OffsetX != 0 || v.state.OffsetY != 0 {
		v.doFlush()
	}
	v.state.IgnoreOffset = ignore
}

// SetTarget records the render target. Switching targets flushes.
func (v *Viewport) SetTarget(t metadata.RenderTarget) {
	if v.state.Target == t {
		return
	}
	v.doFlush()
	v.state.Target = t
}

// State returns a copy of the current viewport state.
func (v *Viewport) State() metadata.ViewportState {
	return v.state
}

// Offsets returns the translation currently in effect.
func (v *Viewport) Offsets() (int, int) {
	if v.state.IgnoreOffset {
		return 0, 0
	}
	return v.state.OffsetX, v.state.OffsetY
}

// Transform returns the origin and clip rectangle of the active viewport. The
// origin may be negative; the clip is limited to the logical screen.
func (v *Viewport) Transform() Transform {
	s := v.state
	clip := metadata.Rect{X: s.X, Y: s.Y, W: s.W, H: s.H}
	if clip.X < 0 {
		clip.W += clip.X
		clip.X = 0
	}
	if clip.Y < 0 {
		clip.H += clip.Y
		clip.Y = 0
	}
	if clip.X+clip.W > v.screenW {
		clip.W = v.screenW - clip.X
	}
	if clip.Y+clip.H > v.screenH {
		clip.H = v.screenH - clip.Y
	}
	clip.W = max(clip.W, 0)
	clip.H = max(clip.H, 0)
	return Transform{OriginX: s.X, OriginY: s.Y, Clip: clip}
}

// MapToScreen converts window coordinates (mouse position) to logical canvas
// coordinates. Positions on the letterbox bars map outside the canvas.
func (v *Viewport) MapToScreen(x, y int) (int, int) {
	if v.phys.W == 0 || v.phys.H == 0 {
		return x, y
	}
	dx := (float32(x)*v.hidpiX - float32(v.phys.X)) * float32(v.screenW) / float32(v.phys.W)
	dy := (float32(y)*v.hidpiY - float32(v.phys.Y)) * float32(v.screenH) / float32(v.phys.H)
	return int(math.Floor(float64(dx))), int(math.Floor(float64(dy)))
}

// MapFromScreen converts logical canvas coordinates to window coordinates.
func (v *Viewport) MapFromScreen(x, y int) (int, int) {
	wx := (float32(x)*float32(v.phys.W)/float32(v.screenW) + float32(v.phys.X)) / v.hidpiX
	wy := (float32(y)*float32(v.phys.H)/float32(v.screenH) + float32(v.phys.Y)) / v.hidpiY
	return int(math.Floor(float64(wx))), int(math.Floor(float64(wy)))
}

// PhysRect is the canvas rectangle in drawable pixels.
func (v *Viewport) PhysRect() metadata.Rect {
	return v.phys
}

// HardwareSize is the drawable size given to the last Update.
func (v *Viewport) HardwareSize() (int, int) {
	return v.hwW, v.hwH
}

// ScreenSize is the logical canvas size.
func (v *Viewport) ScreenSize() (int, int) {
	return v.screenW, v.screenH
}

// HiDPI returns drawable pixels per window unit on each axis.
func (v *Viewport) HiDPI() (float32, float32) {
	return v.hidpiX, v.hidpiY
}
