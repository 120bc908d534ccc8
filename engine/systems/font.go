package systems

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/spaghettifunk/xrender/engine/assets"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// fallbackGlyph is drawn for codepoints missing from a font.
const fallbackGlyph = '?'

// Font is a loaded bitmap font and the pictures of its atlas pages.
type Font struct {
	Path  string
	Data  *metadata.FontData
	Pages map[int]*metadata.Picture
}

type FontSystem struct {
	assets   *assets.AssetManager
	textures *TextureSystem
	renderer *renderer.Renderer

	mutex sync.Mutex
	fonts map[string]*Font
}

func NewFontSystem(am *assets.AssetManager, ts *TextureSystem, r *renderer.Renderer) (*FontSystem, error) {
	if am == nil || ts == nil || r == nil {
		return nil, fmt.Errorf("func NewFontSystem - asset manager, texture system and renderer are required: %w", core.ErrInvalidConfiguration)
	}
	return &FontSystem{
		assets:   am,
		textures: ts,
		renderer: r,
		fonts:    make(map[string]*Font),
	}, nil
}

func (fs *FontSystem) Shutdown() error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	for path, f := range fs.fonts {
		for _, p := range f.Pages {
			fs.textures.DeleteTexture(p, false)
		}
		delete(fs.fonts, path)
	}
	return nil
}

/**
 * @brief Loads an AngelCode bitmap font and its atlas pages. A font already loaded from
 * the same path is returned as is.
 */
func (fs *FontSystem) LoadFont(path string) (*Font, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	if f, ok := fs.fonts[path]; ok {
		return f, nil
	}

	res, err := fs.assets.LoadAsset(path, metadata.ResourceTypeBitmapFont, nil)
	if err != nil {
		return nil, err
	}
	data := res.Data.(*metadata.FontData)

	f := &Font{
		Path:  path,
		Data:  data,
		Pages: make(map[int]*metadata.Picture, len(data.Pages)),
	}
	for id, page := range data.Pages {
		p := fs.textures.LoadPicture(page, "", "")
		if !p.Inited {
			for _, loaded := range f.Pages {
				fs.textures.DeleteTexture(loaded, false)
			}
			err := fmt.Errorf("font %s: page %d (%s): %w", path, id, page, core.ErrPictureNotInited)
			core.LogError(err.Error())
			return nil, err
		}
		f.Pages[id] = p
	}

	fs.fonts[path] = f
	core.LogDebug("loaded font %s (%d glyphs, %d pages)", data.Face, len(data.Glyphs), len(f.Pages))
	return f, nil
}

func (fs *FontSystem) glyph(f *Font, r rune) (metadata.FontGlyph, bool) {
	if g, ok := f.Data.Glyphs[r]; ok {
		return g, true
	}
	g, ok := f.Data.Glyphs[fallbackGlyph]
	return g, ok
}

// Print draws text with its top-left corner at (x, y). Newlines start a new line.
func (fs *FontSystem) Print(f *Font, text string, x, y float64, c metadata.Color) {
	if f == nil {
		core.LogWarn("attempt to print %q without a font", text)
		return
	}
	penX, penY := x, y
	prev := rune(-1)
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]

		if r == '\n' {
			penX = x
			penY += float64(f.Data.LineHeight)
			prev = -1
			continue
		}
		g, ok := fs.glyph(f, r)
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			penX += float64(f.Data.Kernings[metadata.KerningPair{First: prev, Second: r}])
		}
		if page := f.Pages[g.Page]; page != nil && g.W > 0 && g.H > 0 {
			fs.renderer.RenderTexture(page,
				penX+float64(g.XOffset), penY+float64(g.YOffset),
				float64(g.W), float64(g.H), g.X, g.Y, c)
		}
		penX += float64(g.XAdvance)
		prev = r
	}
}

// MeasureText returns the size of the box Print fills for text.
func (fs *FontSystem) MeasureText(f *Font, text string) (int, int) {
	if f == nil || text == "" {
		return 0, 0
	}
	width, lineWidth, lines := 0, 0, 1
	prev := rune(-1)
	for _, r := range text {
		if r == '\n' {
			width = max(width, lineWidth)
			lineWidth = 0
			lines++
			prev = -1
			continue
		}
		g, ok := fs.glyph(f, r)
		if !ok {
			prev = -1
			continue
		}
		if prev >= 0 {
			lineWidth += f.Data.Kernings[metadata.KerningPair{First: prev, Second: r}]
		}
		lineWidth += g.XAdvance
		prev = r
	}
	return max(width, lineWidth), lines * f.Data.LineHeight
}
