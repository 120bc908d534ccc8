package graphics

import (
	"image"

	xmath "github.com/spaghettifunk/xrender/engine/math"
	"golang.org/x/image/draw"
)

// ToNRGBA returns img as a straight-alpha buffer anchored at the origin, copying only
// when needed.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// PaddedSize returns the power-of-two texture size holding a w x h image, never
// smaller than least.
func PaddedSize(w, h, least int) (int, int) {
	return xmath.NextPowerOfTwo(max(least, w)), xmath.NextPowerOfTwo(max(least, h))
}

// PadToPowerOfTwo grows img to power-of-two dimensions, keeping it in the top-left
// corner and filling the new area with fill on every channel (0 for images, so the
// padding is transparent, 255 for masks, so the padding is white).
func PadToPowerOfTwo(img *image.NRGBA, least int, fill uint8) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pw, ph := PaddedSize(w, h, least)
	if pw == w && ph == h {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, pw, ph))
	if fill != 0 {
		for i := range dst.Pix {
			dst.Pix[i] = fill
		}
	}
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
	}
	return dst
}

// ScaleDown2x keeps the top-left pixel of every 2x2 block. Only lossless for images
// accepted by ValidateFor2xScaleDown.
func ScaleDown2x(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx()/2, img.Rect.Dy()/2
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(dst.Pix[y*dst.Stride+x*4:y*dst.Stride+x*4+4], img.Pix[2*y*img.Stride+2*x*4:])
		}
	}
	return dst
}

// Clone returns a deep copy of img.
func Clone(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
	}
	return dst
}
