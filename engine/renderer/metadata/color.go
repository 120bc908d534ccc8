package metadata

import (
	"image/color"

	"github.com/mazznoer/csscolorparser"
)

/**
 * @brief A normalized RGBA colour used for tints and solid primitives.
 * Channels are expected in the [0, 1] range.
 */
type Color struct {
	R float32
	G float32
	B float32
	A float32
}

var (
	ColorWhite       = Color{R: 1, G: 1, B: 1, A: 1}
	ColorBlack       = Color{R: 0, G: 0, B: 0, A: 1}
	ColorTransparent = Color{}
)

// ColorAlpha returns white with the given alpha.
func ColorAlpha(a float32) Color {
	return Color{R: 1, G: 1, B: 1, A: a}
}

// Opaque reports whether the colour has full alpha.
func (c Color) Opaque() bool {
	return c.A >= 1.0
}

// Bytes converts the colour to 8-bit channels, truncating like a float-to-byte cast.
func (c Color) Bytes() [4]uint8 {
	return [4]uint8{toByte(c.R), toByte(c.G), toByte(c.B), toByte(c.A)}
}

// RGBA converts the colour to a non-premultiplied image/color value.
func (c Color) RGBA() color.NRGBA {
	b := c.Bytes()
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// Mul returns the channel-wise product of two colours.
func (c Color) Mul(o Color) Color {
	return Color{R: c.R * o.R, G: c.G * o.G, B: c.B * o.B, A: c.A * o.A}
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}

// ParseColor parses a CSS colour string ("#ff8800", "rgba(0,0,0,.5)", "black").
func ParseColor(s string) (Color, error) {
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return Color{}, err
	}
	return Color{R: float32(c.R), G: float32(c.G), B: float32(c.B), A: float32(c.A)}, nil
}
