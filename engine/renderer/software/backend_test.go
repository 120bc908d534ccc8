package software

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

type testSurface struct {
	w, h      int
	presented int
	last      *image.RGBA
}

func (s *testSurface) Size() (int, int)         { return s.w, s.h }
func (s *testSurface) DrawableSize() (int, int) { return s.w, s.h }

func (s *testSurface) Present(img *image.RGBA) error {
	s.presented++
	s.last = img
	return nil
}

func newBackend(t *testing.T, mutate func(cfg *config.RenderConfig)) (*Backend, *testSurface) {
	t.Helper()
	cfg := config.Default().Render
	cfg.ScreenWidth, cfg.ScreenHeight = 100, 100
	if mutate != nil {
		mutate(&cfg)
	}
	surface := &testSurface{w: cfg.ScreenWidth, h: cfg.ScreenHeight}
	b := New()
	if err := b.Initialize(&cfg, surface); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return b, surface
}

// patterned returns an opaque image whose every pixel is distinct.
func patterned(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8(x ^ y), A: 255})
		}
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func upload(t *testing.T, b *Backend, img, mask *image.NRGBA, depthTest bool) *metadata.Picture {
	t.Helper()
	p := metadata.NewPicture()
	p.W, p.H = img.Rect.Dx(), img.Rect.Dy()
	p.Inited = true
	p.DepthTest = depthTest
	if err := b.TextureCreate(p, img, mask); err != nil {
		t.Fatalf("texture create: %v", err)
	}
	return p
}

func whole(p *metadata.Picture, x, y float64, tint metadata.Color) metadata.TextureDraw {
	return metadata.TextureDraw{
		X: x, Y: y, W: float64(p.W), H: float64(p.H),
		SrcW: p.W, SrcH: p.H,
		Tint: tint,
	}
}

func parsed(t *testing.T, s string) color.NRGBA {
	t.Helper()
	c, err := metadata.ParseColor(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return c.RGBA()
}

func rgbaAt(pix []byte, w, x, y int) color.NRGBA {
	o := (y*w + x) * 4
	return color.NRGBA{R: pix[o], G: pix[o+1], B: pix[o+2], A: pix[o+3]}
}

func TestRegistered(t *testing.T) {
	if renderer.GetBackend(Name) == nil {
		t.Fatalf("%q backend is not registered", Name)
	}
}

func TestOpaquePictureScenario(t *testing.T) {
	b, surface := newBackend(t, nil)
	src := patterned(64, 64)
	p := upload(t, b, src, nil, true)

	if p.WScale != 1.0/64 || p.HScale != 1.0/64 {
		t.Errorf("scale = %v x %v, want 1/64", p.WScale, p.HScale)
	}

	b.ClearBuffer()
	b.RenderTexture(p, whole(p, 10, 10, metadata.ColorWhite))
	got := b.GetScreenPixelsRGBA(10, 10, 64, 64)
	if err := b.Repaint(); err != nil {
		t.Fatalf("repaint: %v", err)
	}

	stats := b.Stats()
	if stats.OpaqueCalls != 1 || stats.OrderedCalls != 0 || stats.Vertices != 6 {
		t.Errorf("stats = %+v, want one opaque call with 6 vertices", stats)
	}
	if rgbaAt(got, 64, 0, 0) != src.NRGBAAt(0, 0) {
		t.Errorf("pixel (10,10) = %v, want %v", rgbaAt(got, 64, 0, 0), src.NRGBAAt(0, 0))
	}
	if !bytes.Equal(got, src.Pix) {
		t.Errorf("drawn picture differs from its source")
	}
	if surface.presented != 1 {
		t.Errorf("presented %d frames", surface.presented)
	}
}

func TestOpaqueBatchMatchesSequentialDraws(t *testing.T) {
	draws := [][2]float64{{0, 0}, {8, 4}, {4, 8}, {12, 12}}

	batched, _ := newBackend(t, nil)
	p := upload(t, batched, patterned(16, 16), nil, true)
	for _, d := range draws {
		batched.RenderTexture(p, whole(p, d[0], d[1], metadata.ColorWhite))
	}
	want := batched.GetScreenPixelsRGBA(0, 0, 40, 40)

	sequential, _ := newBackend(t, nil)
	q := upload(t, sequential, patterned(16, 16), nil, true)
	for _, d := range draws {
		sequential.RenderTexture(q, whole(q, d[0], d[1], metadata.ColorWhite))
		sequential.GetScreenPixelsRGBA(0, 0, 1, 1)
	}
	got := sequential.GetScreenPixelsRGBA(0, 0, 40, 40)

	if !bytes.Equal(want, got) {
		t.Errorf("a single opaque batch differs from drawing each picture on its own")
	}
	if s := batched.batch.Stats(); s.OpaqueCalls != 1 {
		t.Errorf("expected one opaque call, got %+v", s)
	}
}

func TestTranslucentDrawsCompositeInOrder(t *testing.T) {
	red := metadata.Color{R: 1, A: 0.5}
	blue := metadata.Color{B: 1, A: 0.5}

	draw := func(first, second metadata.Color) color.NRGBA {
		b, _ := newBackend(t, nil)
		b.ClearBuffer()
		b.RenderRect(10, 10, 20, 20, first, true)
		b.RenderRect(15, 15, 20, 20, second, true)
		b.RenderRect(12, 12, 20, 20, first, true)
		return rgbaAt(b.GetScreenPixelsRGBA(20, 20, 1, 1), 1, 0, 0)
	}

	expected := func(colors ...metadata.Color) color.NRGBA {
		px := []uint8{0, 0, 0, 255}
		for _, c := range colors {
			blendOver(px, c.RGBA())
		}
		return color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
	}

	if got, want := draw(red, blue), expected(red, blue, red); got != want {
		t.Errorf("red/blue/red = %v, want %v", got, want)
	}
	if got, want := draw(blue, red), expected(blue, red, blue); got != want {
		t.Errorf("blue/red/blue = %v, want %v", got, want)
	}
	if draw(red, blue) == draw(blue, red) {
		t.Errorf("translucent order must matter")
	}
}

func TestMaskCompositingWithAndWithoutLogicOp(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	mask := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
				mask.SetNRGBA(x, y, color.NRGBA{A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
				mask.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}

	for _, logicOp := range []bool{true, false} {
		b, _ := newBackend(t, func(cfg *config.RenderConfig) {
			cfg.LogicOp = logicOp
			cfg.ClearColor = "rgb(40,50,60)"
		})
		p := upload(t, b, img, mask, false)
		if !p.HasMask() {
			t.Fatalf("logic-op %t: mask not uploaded", logicOp)
		}

		b.ClearBuffer()
		b.RenderTexture(p, whole(p, 0, 0, metadata.ColorWhite))
		px := b.GetScreenPixelsRGBA(0, 0, 4, 4)

		if got := rgbaAt(px, 4, 0, 0); got != (color.NRGBA{R: 100, G: 100, B: 100, A: 255}) {
			t.Errorf("logic-op %t: black mask pixel = %v", logicOp, got)
		}
		if got, want := rgbaAt(px, 4, 3, 3), parsed(t, "rgb(40,50,60)"); got != want {
			t.Errorf("logic-op %t: white mask pixel = %v", logicOp, got)
		}
	}
}

func TestReadBufferProgram(t *testing.T) {
	b, _ := newBackend(t, func(cfg *config.RenderConfig) {
		cfg.ClearColor = "rgb(10,20,30)"
	})
	p := upload(t, b, solid(8, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 255}), nil, true)
	p.Program = b.Program(ProgramInvert)
	if p.Program == nil {
		t.Fatalf("invert program missing")
	}

	b.ClearBuffer()
	b.RenderTexture(p, whole(p, 4, 4, metadata.ColorWhite))
	px := b.GetScreenPixelsRGBA(0, 0, 16, 16)

	bg := parsed(t, "rgb(10,20,30)")
	if got := rgbaAt(px, 16, 6, 6); got != (color.NRGBA{R: 255 - bg.R, G: 255 - bg.G, B: 255 - bg.B, A: 255}) {
		t.Errorf("inverted pixel = %v", got)
	}
	if got := rgbaAt(px, 16, 1, 1); got != bg {
		t.Errorf("untouched pixel = %v", got)
	}
}

func TestMultipassProgramRuns(t *testing.T) {
	b, _ := newBackend(t, nil)
	p := upload(t, b, solid(8, 8, color.NRGBA{R: 200, G: 200, B: 200, A: 255}), nil, true)
	p.Program = b.Program(ProgramEcho)

	b.ClearBuffer()
	b.RenderTexture(p, whole(p, 0, 0, metadata.ColorWhite))
	if err := b.Repaint(); err != nil {
		t.Fatalf("repaint: %v", err)
	}

	if s := b.Stats(); s.OrderedCalls != 2 {
		t.Errorf("expected one call per pass, got %+v", s)
	}
	// pass 0 mixes with the black scene, pass 1 with the result of pass 0
	if got := rgbaAt(b.GetScreenPixelsRGBA(0, 0, 1, 1), 1, 0, 0); got != (color.NRGBA{R: 150, G: 150, B: 150, A: 255}) {
		t.Errorf("echo pixel = %v", got)
	}
}

func TestReadbackIndependentOfRowOrder(t *testing.T) {
	var results [][]byte
	for _, bottomUp := range []bool{false, true} {
		b, _ := newBackend(t, func(cfg *config.RenderConfig) {
			cfg.BottomUpRows = bottomUp
		})
		p := upload(t, b, patterned(32, 32), nil, true)
		b.ClearBuffer()
		b.RenderTexture(p, whole(p, 5, 7, metadata.ColorWhite))
		b.RenderRect(0, 0, 10, 3, metadata.Color{G: 1, A: 0.5}, true)
		results = append(results, b.GetScreenPixels(0, 0, 50, 50))
	}
	if len(results[0]) != 50*50*3 {
		t.Fatalf("rgb readback has %d bytes", len(results[0]))
	}
	if !bytes.Equal(results[0], results[1]) {
		t.Errorf("bottom-up storage must read back in image row order")
	}
}

func TestRenderScaleReadback(t *testing.T) {
	b, _ := newBackend(t, func(cfg *config.RenderConfig) {
		cfg.RenderScale = 2
	})
	src := patterned(16, 16)
	p := upload(t, b, src, nil, true)
	b.ClearBuffer()
	b.RenderTexture(p, whole(p, 0, 0, metadata.ColorWhite))

	if got := b.GetScreenPixelsRGBA(0, 0, 16, 16); !bytes.Equal(got, src.Pix) {
		t.Errorf("logical readback of a 2x buffer differs from the source")
	}
	if got := b.GetScreenPixelsRGBA(4, 6, 4, 4); rgbaAt(got, 4, 1, 2) != src.NRGBAAt(5, 8) {
		t.Errorf("offset readback = %v, want %v", rgbaAt(got, 4, 1, 2), src.NRGBAAt(5, 8))
	}
}

func TestSlabbedPicture(t *testing.T) {
	b, _ := newBackend(t, func(cfg *config.RenderConfig) {
		cfg.MaxTextureSize = 16
	})
	src := patterned(8, 40)
	p := upload(t, b, src, nil, true)

	if p.SlabCount != 3 || p.SlabHeight != 16 {
		t.Fatalf("slabs = %d of %d rows", p.SlabCount, p.SlabHeight)
	}

	b.ClearBuffer()
	b.RenderTexture(p, whole(p, 0, 0, metadata.ColorWhite))
	if got := b.GetScreenPixelsRGBA(0, 0, 8, 40); !bytes.Equal(got, src.Pix) {
		t.Errorf("slabbed picture differs from its source")
	}

	b.ClearBuffer()
	b.RenderTexture(p, metadata.TextureDraw{X: 0, Y: 0, W: 8, H: 10, SrcY: 12, SrcW: 8, SrcH: 10, Tint: metadata.ColorWhite})
	got := b.GetScreenPixelsRGBA(0, 0, 8, 10)
	for y := 0; y < 10; y++ {
		if rgbaAt(got, 8, 3, y) != src.NRGBAAt(3, 12+y) {
			t.Errorf("row %d crossing a slab boundary = %v, want %v", y, rgbaAt(got, 8, 3, y), src.NRGBAAt(3, 12+y))
		}
	}

	tooTall := metadata.NewPicture()
	if err := b.TextureCreate(tooTall, patterned(8, 70), nil); !errors.Is(err, core.ErrTextureTooLarge) {
		t.Errorf("expected ErrTextureTooLarge, got %v", err)
	}
}

func TestFlipAndSourceClamp(t *testing.T) {
	b, _ := newBackend(t, nil)
	src := patterned(8, 8)
	p := upload(t, b, src, nil, true)

	b.ClearBuffer()
	d := whole(p, 0, 0, metadata.ColorWhite)
	d.Flip = metadata.FlipXY
	b.RenderTexture(p, d)
	got := b.GetScreenPixelsRGBA(0, 0, 8, 8)
	if rgbaAt(got, 8, 0, 0) != src.NRGBAAt(7, 7) || rgbaAt(got, 8, 7, 0) != src.NRGBAAt(0, 7) {
		t.Errorf("flipped corners = %v %v", rgbaAt(got, 8, 0, 0), rgbaAt(got, 8, 7, 0))
	}

	b.ClearBuffer()
	b.RenderTexture(p, metadata.TextureDraw{X: 20, Y: 20, W: 4, H: 4, SrcX: 6, SrcY: 6, SrcW: 4, SrcH: 4, Tint: metadata.ColorWhite})
	got = b.GetScreenPixelsRGBA(20, 20, 4, 4)
	if rgbaAt(got, 4, 0, 0) != src.NRGBAAt(6, 6) {
		t.Errorf("clamped source starts at %v, want %v", rgbaAt(got, 4, 0, 0), src.NRGBAAt(6, 6))
	}
}

func TestViewportAndOffset(t *testing.T) {
	b, _ := newBackend(t, func(cfg *config.RenderConfig) {
		cfg.ClearColor = "black"
	})
	white := metadata.ColorWhite

	b.ClearBuffer()
	b.SetViewport(50, 50, 50, 50)
	b.RenderRect(0, 0, 10, 10, white, true)
	b.OffsetViewport(20, 0)
	b.RenderRect(0, 0, 10, 10, white, true)
	b.OffsetViewportIgnore(true)
	b.RenderRect(0, 20, 10, 10, white, true)
	b.OffsetViewportIgnore(false)
	b.RenderRect(-60, 40, 200, 5, white, true)
	b.ResetViewport()

	px := b.GetScreenPixelsRGBA(0, 0, 100, 100)
	cases := []struct {
		x, y  int
		white bool
	}{
		{55, 55, true},
		{75, 55, true},
		{55, 75, true},
		{65, 55, false},
		{75, 75, false},
		{10, 10, false},
		{45, 92, false},
		{99, 92, true},
	}
	for _, c := range cases {
		got := rgbaAt(px, 100, c.x, c.y)
		if (got.R == 255) != c.white {
			t.Errorf("pixel (%d,%d) = %v, want white %t", c.x, c.y, got, c.white)
		}
	}
}

func TestRepaintLetterboxes(t *testing.T) {
	cfg := config.Default().Render
	cfg.ScreenWidth, cfg.ScreenHeight = 100, 100
	cfg.ClearColor = "blue"
	cfg.LetterboxColor = "red"
	surface := &testSurface{w: 200, h: 100}
	b := New()
	if err := b.Initialize(&cfg, surface); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	b.ClearBuffer()
	b.SetTargetScreen()
	b.RenderRect(0, 0, 10, 10, metadata.ColorWhite, true)
	b.SetTargetTexture()
	if err := b.Repaint(); err != nil {
		t.Fatalf("repaint: %v", err)
	}

	img := surface.last
	if got := img.RGBAAt(10, 50); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("bar pixel = %v", got)
	}
	if got := img.RGBAAt(100, 50); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("canvas pixel = %v", got)
	}
	if got := img.RGBAAt(52, 2); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("screen target pixel = %v", got)
	}
	if x, y := b.MapToScreen(150, 50); x != 100 || y != 50 {
		t.Errorf("map to screen = %d,%d", x, y)
	}
}

func TestTextureMemoryBudget(t *testing.T) {
	b, _ := newBackend(t, func(cfg *config.RenderConfig) {
		cfg.TextureMemoryBudget = 16 * 16 * 4
	})
	p := upload(t, b, patterned(16, 16), nil, true)

	q := metadata.NewPicture()
	if err := b.TextureCreate(q, patterned(4, 4), nil); !errors.Is(err, core.ErrOutOfTextureMemory) {
		t.Fatalf("expected ErrOutOfTextureMemory, got %v", err)
	}
	if q.HasTexture() {
		t.Errorf("failed upload left a handle")
	}

	b.TextureDestroy(p)
	b.TextureDestroy(p)
	if b.UsedMemory() != 0 || p.HasTexture() {
		t.Errorf("destroy left %d bytes, handle %v", b.UsedMemory(), p.Handles[0])
	}
	if err := b.TextureCreate(q, patterned(4, 4), nil); err != nil {
		t.Errorf("upload after release: %v", err)
	}
}

func TestPrimitivesWithoutShaders(t *testing.T) {
	b, _ := newBackend(t, func(cfg *config.RenderConfig) {
		cfg.Shaders = false
	})
	if b.Program(ProgramInvert) != nil {
		t.Errorf("effects must be unavailable without shaders")
	}

	b.ClearBuffer()
	b.RenderCircle(50, 50, 20, metadata.ColorWhite, true)
	b.RenderCircleHole(20, 20, 10, metadata.Color{G: 1, A: 1})
	b.RenderRect(80, 80, 10, 10, metadata.ColorWhite, false)
	px := b.GetScreenPixelsRGBA(0, 0, 100, 100)

	checks := []struct {
		name string
		x, y int
		want color.NRGBA
	}{
		{"circle centre", 50, 50, color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"outside circle", 50, 25, color.NRGBA{A: 255}},
		{"hole corner", 11, 11, color.NRGBA{G: 255, A: 255}},
		{"hole centre", 20, 20, color.NRGBA{A: 255}},
		{"outline edge", 80, 85, color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{"outline inside", 85, 85, color.NRGBA{A: 255}},
	}
	for _, c := range checks {
		if got := rgbaAt(px, 100, c.x, c.y); got != c.want {
			t.Errorf("%s (%d,%d) = %v, want %v", c.name, c.x, c.y, got, c.want)
		}
	}
}

func TestOutlinedCircle(t *testing.T) {
	for _, shaders := range []bool{true, false} {
		b, _ := newBackend(t, func(cfg *config.RenderConfig) {
			cfg.Shaders = shaders
		})
		b.ClearBuffer()
		b.RenderCircle(50, 50, 10, metadata.ColorWhite, false)
		px := b.GetScreenPixelsRGBA(0, 0, 100, 100)

		if got := rgbaAt(px, 100, 50, 50); got != (color.NRGBA{A: 255}) {
			t.Errorf("shaders=%v: centre = %v, want background", shaders, got)
		}
		if got := rgbaAt(px, 100, 59, 50); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
			t.Errorf("shaders=%v: ring = %v, want white", shaders, got)
		}
	}
}

func TestTextureDestroyFlushesQueuedDraws(t *testing.T) {
	green := color.NRGBA{G: 255, A: 255}
	tests := []struct {
		name      string
		depthTest bool
		tint      metadata.Color
	}{
		{name: "opaque", depthTest: true, tint: metadata.ColorWhite},
		{name: "translucent", tint: metadata.Color{R: 1, G: 1, B: 1, A: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			render := func(destroy bool) color.NRGBA {
				b, _ := newBackend(t, nil)
				b.ClearBuffer()
				p := upload(t, b, solid(8, 8, green), nil, tt.depthTest)
				b.RenderTexture(p, whole(p, 4, 4, tt.tint))
				if destroy {
					b.TextureDestroy(p)
					if p.HasTexture() || b.UsedMemory() != 0 {
						t.Fatal("texture not destroyed")
					}
				}
				return rgbaAt(b.GetScreenPixelsRGBA(6, 6, 1, 1), 1, 0, 0)
			}

			want := render(false)
			if want.G == 0 {
				t.Fatalf("reference draw missing: %v", want)
			}
			if got := render(true); got != want {
				t.Errorf("pixel = %v, want %v", got, want)
			}
		})
	}
}
