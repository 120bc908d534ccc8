package software

import (
	"image"
	"image/color"
)

// framebuffer is a straight-alpha RGBA pixel store. When bottomUp is set row 0 of the
// storage is the bottom row of the image, the way GL framebuffers are laid out.
type framebuffer struct {
	w        int
	h        int
	pix      []uint8
	bottomUp bool
}

func newFramebuffer(w, h int, bottomUp bool) *framebuffer {
	return &framebuffer{
		w:        w,
		h:        h,
		pix:      make([]uint8, w*h*4),
		bottomUp: bottomUp,
	}
}

func (fb *framebuffer) bounds() image.Rectangle {
	return image.Rect(0, 0, fb.w, fb.h)
}

// offset returns the index of the pixel at image coordinates (x, y).
func (fb *framebuffer) offset(x, y int) int {
	if fb.bottomUp {
		y = fb.h - 1 - y
	}
	return (y*fb.w + x) * 4
}

func (fb *framebuffer) at(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= fb.w || y >= fb.h {
		return color.NRGBA{}
	}
	i := fb.offset(x, y)
	return color.NRGBA{R: fb.pix[i], G: fb.pix[i+1], B: fb.pix[i+2], A: fb.pix[i+3]}
}

func (fb *framebuffer) fill(c color.NRGBA) {
	for i := 0; i < len(fb.pix); i += 4 {
		fb.pix[i], fb.pix[i+1], fb.pix[i+2], fb.pix[i+3] = c.R, c.G, c.B, c.A
	}
}

func (fb *framebuffer) fillRect(r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(fb.bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := fb.offset(x, y)
			fb.pix[i], fb.pix[i+1], fb.pix[i+2], fb.pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
}

// copyRect copies r from src. Both buffers must have the same size and row order.
func (fb *framebuffer) copyRect(src *framebuffer, r image.Rectangle) {
	r = r.Intersect(fb.bounds()).Intersect(src.bounds())
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := fb.offset(r.Min.X, y)
		j := src.offset(r.Min.X, y)
		copy(fb.pix[i:i+r.Dx()*4], src.pix[j:j+r.Dx()*4])
	}
}

// sameShape reports whether other can be used as a snapshot of fb.
func (fb *framebuffer) sameShape(other *framebuffer) bool {
	return other != nil && other.w == fb.w && other.h == fb.h && other.bottomUp == fb.bottomUp
}

// image returns the content as a top-down image.
func (fb *framebuffer) image() *image.NRGBA {
	img := image.NewNRGBA(fb.bounds())
	if !fb.bottomUp {
		copy(img.Pix, fb.pix)
		return img
	}
	for y := 0; y < fb.h; y++ {
		i := fb.offset(0, y)
		copy(img.Pix[y*img.Stride:y*img.Stride+fb.w*4], fb.pix[i:i+fb.w*4])
	}
	return img
}
