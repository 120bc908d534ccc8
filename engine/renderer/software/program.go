package software

import (
	"image/color"

	"github.com/spaghettifunk/xrender/engine/renderer/batch"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// Fragment is the input of a fragment function for one covered pixel.
type Fragment struct {
	// X and Y address the pixel in the render target.
	X int
	Y int
	// U and V are the interpolated texture coordinates.
	U float32
	V float32
	// Tint is the vertex colour.
	Tint color.NRGBA
	// Texel is the sampled picture colour, white when drawing without a picture.
	Texel color.NRGBA
	// Mask is the sampled mask colour, white when the picture has no mask.
	Mask color.NRGBA
	// Pass is the index of the current pass of a multipass program.
	Pass int

	device *Device
}

// Read samples the snapshot taken right before this draw.
func (f *Fragment) Read() color.NRGBA {
	return f.device.sample(batch.BufferRead, f.X, f.Y)
}

// Previous samples the result of the previous pass, or the scene before the first pass.
func (f *Fragment) Previous() color.NRGBA {
	if f.Pass == 0 {
		return f.device.sample(batch.BufferInitPass, f.X, f.Y)
	}
	return f.device.sample(batch.BufferPrevPass, f.X, f.Y)
}

// FragmentFunc computes the colour of one fragment. Returning false discards it.
type FragmentFunc func(f *Fragment) (color.NRGBA, bool)

/**
 * @brief The backend private part of a metadata.Program for this backend.
 */
type Shader struct {
	Fragment FragmentFunc
	// Replace writes the result as is instead of blending it over the target.
	Replace bool
}

// NewProgram wraps a fragment function into a program usable with this backend.
func NewProgram(name string, flags metadata.ProgramFlags, replace bool, fn FragmentFunc) *metadata.Program {
	return &metadata.Program{
		Name:   name,
		Flags:  flags,
		Source: &Shader{Fragment: fn, Replace: replace},
	}
}

func shaderOf(p *metadata.Program) *Shader {
	if p == nil {
		return nil
	}
	s, _ := p.Source.(*Shader)
	return s
}

func modulate(c, tint color.NRGBA) color.NRGBA {
	return color.NRGBA{
		R: uint8(uint16(c.R) * uint16(tint.R) / 255),
		G: uint8(uint16(c.G) * uint16(tint.G) / 255),
		B: uint8(uint16(c.B) * uint16(tint.B) / 255),
		A: uint8(uint16(c.A) * uint16(tint.A) / 255),
	}
}

func standardFragment(f *Fragment) (color.NRGBA, bool) {
	return modulate(f.Texel, f.Tint), true
}

// bitmaskFragment composites (target AND mask) OR image, emulating the logic-op.
func bitmaskFragment(f *Fragment) (color.NRGBA, bool) {
	img := modulate(f.Texel, f.Tint)
	fb := f.Read()
	return color.NRGBA{
		R: (fb.R & f.Mask.R) | img.R,
		G: (fb.G & f.Mask.G) | img.G,
		B: (fb.B & f.Mask.B) | img.B,
		A: (fb.A & f.Mask.A) | img.A,
	}, true
}

func rectFilledFragment(f *Fragment) (color.NRGBA, bool) {
	return f.Tint, true
}

func rectUnfilledFragment(f *Fragment) (color.NRGBA, bool) {
	if f.U <= 0 || f.U >= 1 || f.V <= 0 || f.V >= 1 {
		return f.Tint, true
	}
	return color.NRGBA{}, false
}

func insideCircle(f *Fragment) bool {
	du, dv := f.U-0.5, f.V-0.5
	return du*du+dv*dv <= 0.25
}

func circleFragment(f *Fragment) (color.NRGBA, bool) {
	return f.Tint, insideCircle(f)
}

func circleHoleFragment(f *Fragment) (color.NRGBA, bool) {
	return f.Tint, !insideCircle(f)
}

// invertFragment shows the inverted scene through the picture's opaque texels.
func invertFragment(f *Fragment) (color.NRGBA, bool) {
	img := modulate(f.Texel, f.Tint)
	if img.A == 0 {
		return img, false
	}
	fb := f.Read()
	return color.NRGBA{R: 255 - fb.R, G: 255 - fb.G, B: 255 - fb.B, A: img.A}, true
}

// echoFragment mixes the picture with the previous pass, leaving a fading trail
// over multiple passes.
func echoFragment(f *Fragment) (color.NRGBA, bool) {
	img := modulate(f.Texel, f.Tint)
	if img.A == 0 {
		return img, false
	}
	prev := f.Previous()
	return color.NRGBA{
		R: uint8((uint16(img.R) + uint16(prev.R)) / 2),
		G: uint8((uint16(img.G) + uint16(prev.G)) / 2),
		B: uint8((uint16(img.B) + uint16(prev.B)) / 2),
		A: img.A,
	}, true
}

const (
	ProgramStandard     = "standard"
	ProgramBitmask      = "bitmask"
	ProgramRectFilled   = "rect-filled"
	ProgramRectUnfilled = "rect-unfilled"
	ProgramCircle       = "circle"
	ProgramCircleHole   = "circle-hole"
	ProgramInvert       = "invert"
	ProgramEcho         = "echo"
)

func builtinPrograms() map[string]*metadata.Program {
	return map[string]*metadata.Program{
		ProgramStandard:     NewProgram(ProgramStandard, 0, false, standardFragment),
		ProgramBitmask:      NewProgram(ProgramBitmask, metadata.ProgramBitmask, true, bitmaskFragment),
		ProgramRectFilled:   NewProgram(ProgramRectFilled, 0, false, rectFilledFragment),
		ProgramRectUnfilled: NewProgram(ProgramRectUnfilled, 0, false, rectUnfilledFragment),
		ProgramCircle:       NewProgram(ProgramCircle, 0, false, circleFragment),
		ProgramCircleHole:   NewProgram(ProgramCircleHole, 0, false, circleHoleFragment),
		ProgramInvert:       NewProgram(ProgramInvert, metadata.ProgramReadBuffer, false, invertFragment),
		ProgramEcho:         NewProgram(ProgramEcho, metadata.ProgramMultipass, false, echoFragment),
	}
}
