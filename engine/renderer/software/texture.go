package software

import (
	"image"
	"image/color"
	"math"
)

// texture is the handle stored in a picture's slab slots.
type texture struct {
	img  *image.NRGBA
	mask *image.NRGBA
	// padded size, the space normalized coordinates refer to
	w     int
	h     int
	bytes int64
}

func newTexture(img, mask *image.NRGBA) *texture {
	t := &texture{
		img: img,
		w:   img.Rect.Dx(),
		h:   img.Rect.Dy(),
	}
	t.bytes = int64(len(img.Pix))
	if mask != nil {
		t.mask = mask
		t.bytes += int64(len(mask.Pix))
	}
	return t
}

// sample returns the texel of img nearest to the normalized coordinates (u, v).
func (t *texture) sample(img *image.NRGBA, u, v float32) color.NRGBA {
	x := int(math.Floor(float64(u) * float64(t.w)))
	y := int(math.Floor(float64(v) * float64(t.h)))
	x = min(max(x, 0), t.w-1)
	y = min(max(y, 0), t.h-1)
	i := y*img.Stride + x*4
	return color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
}
