package loaders

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestParseSizeDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    metadata.SizeDescriptor
		wantErr bool
	}{
		{"zero padded", "0032\n0048\n", metadata.SizeDescriptor{W: 32, H: 48}, false},
		{"space padded", "  64\n 128\n", metadata.SizeDescriptor{W: 64, H: 128}, false},
		{"trailing data", "0016\n0016\nxx", metadata.SizeDescriptor{W: 16, H: 16}, false},
		{"short", "0016\n00", metadata.SizeDescriptor{}, true},
		{"garbage", "abcd\nefgh\n", metadata.SizeDescriptor{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSizeDescriptor([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidSizeDescriptor) {
					t.Errorf("expected ErrInvalidSizeDescriptor, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %+v, %v; want %+v", got, err, tt.want)
			}
		})
	}

	if got, _ := ParseSizeDescriptor(FormatSizeDescriptor(320, 7)); got != (metadata.SizeDescriptor{W: 320, H: 7}) {
		t.Errorf("formatted sidecar parsed as %+v", got)
	}
}

func TestImageLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprite.png")
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 64})
	writePNG(t, path, src)

	loader := &ImageLoader{}
	res, err := loader.Load(path, metadata.ResourceTypeImage, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	img := res.Data.(*image.NRGBA)
	if img.Rect.Dx() != 3 || img.Rect.Dy() != 2 {
		t.Fatalf("size = %v", img.Rect)
	}
	if got := img.NRGBAAt(2, 1); got != (color.NRGBA{R: 10, G: 20, B: 30, A: 64}) {
		t.Errorf("pixel = %v", got)
	}

	res, err = loader.Load(path, metadata.ResourceTypeImage, &metadata.ImageLoadParams{MaskIsPNG: true})
	if err != nil {
		t.Fatalf("load mask: %v", err)
	}
	mask := res.Data.(*image.NRGBA)
	if got := mask.NRGBAAt(2, 1); got != (color.NRGBA{R: 191, G: 191, B: 191, A: 255}) {
		t.Errorf("mask pixel = %v", got)
	}
	if got := mask.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("transparent pixel must become white, got %v", got)
	}

	bad := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(bad, metadata.ResourceTypeImage, nil); !errors.Is(err, core.ErrDecodeFailed) {
		t.Errorf("expected ErrDecodeFailed, got %v", err)
	}
}

const testFont = `info face="Test" size=16 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1
common lineHeight=18 base=14 scaleW=64 scaleH=32 pages=1 packed=0
page id=0 file="test_0.png"
chars count=2
char id=65 x=0 y=0 width=8 height=10 xoffset=0 yoffset=2 xadvance=9 page=0 chnl=15
char id=66 x=8 y=0 width=7 height=10 xoffset=1 yoffset=2 xadvance=8 page=0 chnl=15
kernings count=1
kerning first=65 second=66 amount=-1
`

func TestBitmapFontLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.fnt")
	if err := os.WriteFile(path, []byte(testFont), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := &BitmapFontLoader{}
	res, err := loader.Load(path, metadata.ResourceTypeBitmapFont, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	font := res.Data.(*metadata.FontData)

	if font.Face != "Test" || font.LineHeight != 18 || font.Baseline != 14 {
		t.Errorf("header = %+v", font)
	}
	if font.Pages[0] != filepath.Join(dir, "test_0.png") {
		t.Errorf("page path = %q", font.Pages[0])
	}
	if g := font.Glyphs['B']; g.X != 8 || g.W != 7 || g.XAdvance != 8 || g.XOffset != 1 {
		t.Errorf("glyph B = %+v", g)
	}
	if k := font.Kernings[metadata.KerningPair{First: 'A', Second: 'B'}]; k != -1 {
		t.Errorf("kerning A,B = %d", k)
	}

	if err := loader.Unload(res); err != nil || res.Data != nil {
		t.Errorf("unload left %v, %v", res.Data, err)
	}
}
