package metadata

import "image"

// Rect is an axis-aligned rectangle in whole pixels.
type Rect struct {
	X int
	Y int
	W int
	H int
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Image converts the rectangle to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// RectFromImage converts an image.Rectangle to a Rect.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// PointF is a point in logical screen space.
type PointF struct {
	X float32
	Y float32
}

// Flip selects mirroring of a textured quad.
type Flip uint8

const (
	FlipNone Flip = 0
	FlipX    Flip = 1 << 0
	FlipY    Flip = 1 << 1
	FlipXY        = FlipX | FlipY
)
