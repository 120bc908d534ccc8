package graphics

import (
	"image"
	"image/color"
)

var white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// BitBlit holds the background colour the legacy bit-block transfer ANDs the mask with.
type BitBlit struct {
	bg color.NRGBA
}

// NewBitBlit returns a BitBlit with the default black background.
func NewBitBlit() *BitBlit {
	return &BitBlit{bg: color.NRGBA{A: 0xFF}}
}

func (b *BitBlit) SetBitBlitBG(red, green, blue uint8) {
	b.bg.R, b.bg.G, b.bg.B = red, green, blue
}

func (b *BitBlit) ResetBitBlitBG() {
	b.bg.R, b.bg.G, b.bg.B = 0, 0, 0
}

func (b *BitBlit) Background() color.NRGBA {
	return b.bg
}

// MergeWithMask merges img with the current background.
func (b *BitBlit) MergeWithMask(img, mask *image.NRGBA) {
	MergeWithMask(img, mask, b.bg)
}

// MergeWithMask bakes a legacy AND/OR mask into img in place. For each pixel:
//
//	dst.c = (mask.c & bg.c) | img.c
//	alpha = 255 - avg(mask), or 0 when every mask channel is > 240
//	alpha = min(255, alpha + avg(img))
//
// Mask pixels beyond the mask bounds count as white.
func MergeWithMask(img, mask *image.NRGBA, bg color.NRGBA) {
	if img == nil || mask == nil {
		return
	}
	iw, ih := img.Rect.Dx(), img.Rect.Dy()
	mw, mh := mask.Rect.Dx(), mask.Rect.Dy()

	for y := 0; y < ih; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+iw*4]
		for x := 0; x < iw; x++ {
			m := white
			if x < mw && y < mh {
				o := y*mask.Stride + x*4
				m = color.NRGBA{R: mask.Pix[o], G: mask.Pix[o+1], B: mask.Pix[o+2], A: mask.Pix[o+3]}
			}
			p := row[x*4 : x*4+4]
			ir, ig, ib := uint16(p[0]), uint16(p[1]), uint16(p[2])

			alpha := 255 - (uint16(m.R)+uint16(m.G)+uint16(m.B))/3
			if m.R > 240 && m.G > 240 && m.B > 240 {
				alpha = 0
			}
			alpha += (ir + ig + ib) / 3
			if alpha > 255 {
				alpha = 255
			}

			p[0] = (m.R & bg.R) | p[0]
			p[1] = (m.G & bg.G) | p[1]
			p[2] = (m.B & bg.B) | p[2]
			p[3] = uint8(alpha)
		}
	}
}

// GetMaskFromRGBA derives a black and white stencil from the alpha channel of img:
// grey = 255 - alpha, fully opaque.
func GetMaskFromRGBA(img *image.NRGBA) *image.NRGBA {
	if img == nil {
		return nil
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	mask := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			grey := 255 - img.Pix[y*img.Stride+x*4+3]
			o := y*mask.Stride + x*4
			mask.Pix[o] = grey
			mask.Pix[o+1] = grey
			mask.Pix[o+2] = grey
			mask.Pix[o+3] = 0xFF
		}
	}
	return mask
}

// ReplaceColor replaces every pixel exactly equal to src (all four channels) with dst.
func ReplaceColor(img *image.NRGBA, src, dst color.NRGBA) {
	if img == nil {
		return
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.Pix[y*img.Stride+x*4 : y*img.Stride+x*4+4]
			if p[0] == src.R && p[1] == src.G && p[2] == src.B && p[3] == src.A {
				p[0], p[1], p[2], p[3] = dst.R, dst.G, dst.B, dst.A
			}
		}
	}
}

// FitMask returns mask cropped or extended to w x h. Added pixels are white, so
// they leave the target untouched under the AND/OR composite.
func FitMask(mask *image.NRGBA, w, h int) *image.NRGBA {
	if mask.Rect.Dx() == w && mask.Rect.Dy() == h && mask.Rect.Min == (image.Point{}) {
		return mask
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range dst.Pix {
		dst.Pix[i] = 0xFF
	}
	cw, ch := min(w, mask.Rect.Dx()), min(h, mask.Rect.Dy())
	for y := 0; y < ch; y++ {
		src := mask.PixOffset(mask.Rect.Min.X, mask.Rect.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+cw*4], mask.Pix[src:src+cw*4])
	}
	return dst
}
