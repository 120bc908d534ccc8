package renderer

import (
	"errors"
	"image"
	"testing"

	"github.com/spaghettifunk/xrender/engine/config"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

type rectCall struct {
	x, y, w, h int
	filled     bool
}

// fakeBackend records what reaches the backend.
type fakeBackend struct {
	name        string
	initialized bool
	textures    []metadata.TextureDraw
	rects       []rectCall
	viewport    metadata.ViewportState
}

func (f *fakeBackend) Initialize(cfg *config.RenderConfig, surface Surface) error {
	f.initialized = true
	return nil
}

func (f *fakeBackend) Shutdown() error {
	return nil
}

func (f *fakeBackend) Capabilities() Capabilities {
	return Capabilities{Name: f.name}
}

func (f *fakeBackend) Resized(hwW, hwH, winW, winH int) {}

func (f *fakeBackend) TextureCreate(p *metadata.Picture, img, mask *image.NRGBA) error {
	p.Handles[0] = img
	p.SlabCount = 1
	return nil
}

func (f *fakeBackend) TextureDestroy(p *metadata.Picture) {
	p.ResetHandles()
}

func (f *fakeBackend) Program(name string) *metadata.Program {
	return nil
}

func (f *fakeBackend) SetViewport(x, y, w, h int) {
	f.viewport.X, f.viewport.Y, f.viewport.W, f.viewport.H = x, y, w, h
}

func (f *fakeBackend) ResetViewport() {
	f.viewport = metadata.ViewportState{}
}

func (f *fakeBackend) OffsetViewport(x, y int) {
	f.viewport.OffsetX, f.viewport.OffsetY = x, y
}

func (f *fakeBackend) OffsetViewportIgnore(ignore bool) {
	f.viewport.IgnoreOffset = ignore
}

func (f *fakeBackend) ViewportState() metadata.ViewportState {
	return f.viewport
}

func (f *fakeBackend) SetTargetTexture() {
	f.viewport.Target = metadata.TargetTexture
}

func (f *fakeBackend) SetTargetScreen() {
	f.viewport.Target = metadata.TargetScreen
}

func (f *fakeBackend) MapToScreen(x, y int) (int, int) {
	return x, y
}

func (f *fakeBackend) MapFromScreen(x, y int) (int, int) {
	return x, y
}

func (f *fakeBackend) ClearBuffer() {}

func (f *fakeBackend) Repaint() error {
	return nil
}

func (f *fakeBackend) RenderTexture(p *metadata.Picture, d metadata.TextureDraw) {
	f.textures = append(f.textures, d)
}

func (f *fakeBackend) RenderRect(x, y, w, h int, c metadata.Color, filled bool) {
	f.rects = append(f.rects, rectCall{x, y, w, h, filled})
}

func (f *fakeBackend) RenderCircle(cx, cy, radius int, c metadata.Color, filled bool) {}

func (f *fakeBackend) RenderCircleHole(cx, cy, radius int, c metadata.Color) {}

func (f *fakeBackend) GetScreenPixels(x, y, w, h int) []byte {
	return make([]byte, w*h*3)
}

func (f *fakeBackend) GetScreenPixelsRGBA(x, y, w, h int) []byte {
	return make([]byte, w*h*4)
}

func (f *fakeBackend) Stats() metadata.FrameStats {
	return metadata.FrameStats{}
}

type fakeMaterializer struct {
	backend *fakeBackend
	calls   int
	loads   int
}

func (m *fakeMaterializer) Materialize(p *metadata.Picture) bool {
	m.calls++
	if p.HasTexture() {
		return true
	}
	m.loads++
	return m.backend.TextureCreate(p, image.NewNRGBA(image.Rect(0, 0, p.W, p.H)), nil) == nil
}

func loadedPicture(t *testing.T, r *Renderer, w, h int) *metadata.Picture {
	t.Helper()
	p := metadata.NewPicture()
	p.W, p.H = w, h
	p.Inited = true
	if err := r.TextureCreate(p, image.NewNRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("texture create: %v", err)
	}
	return p
}

func TestRegistry(t *testing.T) {
	RegisterBackend("test-low", -100, func() RendererBackend { return &fakeBackend{name: "test-low"} })
	RegisterBackend("test-high", 1000, func() RendererBackend { return &fakeBackend{name: "test-high"} })
	defer UnregisterBackend("test-low")
	defer UnregisterBackend("test-high")

	names := AvailableBackends()
	if len(names) < 2 || names[0] != "test-high" || names[len(names)-1] != "test-low" {
		t.Errorf("available = %v, want test-high first and test-low last", names)
	}
	if b := DefaultBackend(); b == nil || b.Capabilities().Name != "test-high" {
		t.Errorf("default backend = %v", b)
	}
	if GetBackend("missing") != nil {
		t.Errorf("unknown backend must be nil")
	}

	UnregisterBackend("test-high")
	if b := DefaultBackend(); b == nil || b.Capabilities().Name == "test-high" {
		t.Errorf("unregistered backend still selected")
	}
}

func TestNewFromConfig(t *testing.T) {
	RegisterBackend("test-config", 0, func() RendererBackend { return &fakeBackend{name: "test-config"} })
	defer UnregisterBackend("test-config")

	cfg := config.Default().Render
	cfg.Backend = "test-config"
	r, err := NewFromConfig(&cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !r.Backend().(*fakeBackend).initialized {
		t.Errorf("backend not initialized")
	}

	cfg.Backend = "does-not-exist"
	if _, err := NewFromConfig(&cfg, nil); !errors.Is(err, core.ErrBackendNotAvailable) {
		t.Errorf("expected ErrBackendNotAvailable, got %v", err)
	}
}

func TestUnusablePicturesAreSkipped(t *testing.T) {
	f := &fakeBackend{}
	r := New(f)

	notInited := metadata.NewPicture()
	r.RenderTextureAt(notInited, 0, 0, metadata.ColorWhite)
	r.RenderTextureAt(nil, 0, 0, metadata.ColorWhite)

	empty := metadata.NewPicture()
	empty.Inited = true
	empty.W, empty.H = 8, 8
	r.RenderTextureScale(empty, 0, 0, 16, 16, metadata.ColorWhite)

	if len(f.textures) != 0 {
		t.Errorf("%d draws reached the backend", len(f.textures))
	}
}

func TestLazyPictureMaterializedOnDraw(t *testing.T) {
	f := &fakeBackend{}
	m := &fakeMaterializer{backend: f}
	r := New(f)
	r.SetMaterializer(m)

	p := metadata.NewPicture()
	p.W, p.H = 8, 8
	p.Inited = true
	p.LazyLoaded = true

	r.RenderTextureAt(p, 1, 2, metadata.ColorWhite)
	r.RenderTextureAt(p, 1, 2, metadata.ColorWhite)

	if m.loads != 1 {
		t.Errorf("materialized %d times, want once", m.loads)
	}
	if m.calls != 2 {
		t.Errorf("materializer saw %d uses, want 2", m.calls)
	}
	if len(f.textures) != 2 {
		t.Errorf("%d draws reached the backend, want 2", len(f.textures))
	}
}

func TestTextureVariants(t *testing.T) {
	f := &fakeBackend{}
	r := New(f)
	p := loadedPicture(t, r, 16, 16)
	center := &metadata.PointF{X: 1, Y: 2}

	r.RenderTexture(p, 5, 5, 20, 8, 10, 12, metadata.ColorWhite)
	r.RenderTextureAt(p, 3, 4, metadata.ColorWhite)
	r.RenderTextureFL(p, 0, 0, 8, 8, 0, 0, 45, center, metadata.FlipX, metadata.ColorWhite)
	r.RenderTextureScale(p, 0, 0, 32, 48, metadata.ColorWhite)
	r.RenderTextureScaleEx(p, 0, 0, 32, 32, 4, 4, 8, 8, 90, nil, metadata.FlipY, metadata.ColorWhite)

	want := []metadata.TextureDraw{
		{X: 5, Y: 5, W: 6, H: 4, SrcX: 10, SrcY: 12, SrcW: 6, SrcH: 4, Tint: metadata.ColorWhite},
		{X: 3, Y: 4, W: 16, H: 16, SrcW: 16, SrcH: 16, Tint: metadata.ColorWhite},
		{W: 8, H: 8, SrcW: 8, SrcH: 8, Angle: 45, Center: center, Flip: metadata.FlipX, Tint: metadata.ColorWhite},
		{W: 32, H: 48, SrcW: 16, SrcH: 16, Tint: metadata.ColorWhite},
		{W: 32, H: 32, SrcX: 4, SrcY: 4, SrcW: 8, SrcH: 8, Angle: 90, Flip: metadata.FlipY, Tint: metadata.ColorWhite},
	}
	if len(f.textures) != len(want) {
		t.Fatalf("%d draws, want %d", len(f.textures), len(want))
	}
	for i := range want {
		if f.textures[i] != want[i] {
			t.Errorf("draw %d = %+v, want %+v", i, f.textures[i], want[i])
		}
	}
}

func TestRectVariants(t *testing.T) {
	f := &fakeBackend{}
	r := New(f)

	r.RenderRect(1, 2, 3, 4, metadata.ColorWhite, false)
	r.RenderRectBR(10, 20, 15, 30, metadata.ColorWhite)

	want := []rectCall{{1, 2, 3, 4, false}, {10, 20, 5, 10, true}}
	for i := range want {
		if f.rects[i] != want[i] {
			t.Errorf("rect %d = %+v, want %+v", i, f.rects[i], want[i])
		}
	}
}

func TestViewportPassThrough(t *testing.T) {
	f := &fakeBackend{}
	r := New(f)

	r.SetViewport(1, 2, 3, 4)
	r.OffsetViewport(5, 6)
	r.OffsetViewportIgnore(true)
	r.SetTargetScreen()

	want := metadata.ViewportState{X: 1, Y: 2, W: 3, H: 4, OffsetX: 5, OffsetY: 6, IgnoreOffset: true, Target: metadata.TargetScreen}
	if got := r.ViewportState(); got != want {
		t.Errorf("state = %+v, want %+v", got, want)
	}
	if got := len(r.GetScreenPixelsRGBA(0, 0, 2, 3)); got != 24 {
		t.Errorf("rgba readback of 2x3 has %d bytes", got)
	}
}
