package immediate

import (
	"image"

	"github.com/spaghettifunk/xrender/engine/graphics"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

type texture struct {
	img *image.NRGBA
	// img modulated by the picture's current tint; nil while the tint is white
	tinted *image.NRGBA
	bytes  int64
}

// source returns the image to draw for tint, re-modulating only when the picture's
// tint changed since the previous draw.
func (t *texture) source(p *metadata.Picture, tint metadata.Color) *image.NRGBA {
	if p.TintChanged(tint) {
		if tint == metadata.ColorWhite {
			t.tinted = nil
		} else {
			t.tinted = modulate(t.img, tint)
		}
	}
	if t.tinted != nil {
		return t.tinted
	}
	return t.img
}

func modulate(img *image.NRGBA, tint metadata.Color) *image.NRGBA {
	out := graphics.Clone(img)
	c := tint.RGBA()
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = uint8(uint16(out.Pix[i]) * uint16(c.R) / 255)
		out.Pix[i+1] = uint8(uint16(out.Pix[i+1]) * uint16(c.G) / 255)
		out.Pix[i+2] = uint8(uint16(out.Pix[i+2]) * uint16(c.B) / 255)
		out.Pix[i+3] = uint8(uint16(out.Pix[i+3]) * uint16(c.A) / 255)
	}
	return out
}
