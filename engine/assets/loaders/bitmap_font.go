package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// BitmapFontLoader reads AngelCode ".fnt" descriptors. The atlas pages are not decoded
// here: their paths are returned so they can be loaded as pictures.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	desc, err := bmfont.LoadDescriptor(path)
	if err != nil {
		err = fmt.Errorf("failed to read bitmap font %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	data := importDescriptor(desc, filepath.Dir(path))
	return &metadata.Resource{
		Type:     metadata.ResourceTypeBitmapFont,
		FullPath: path,
		DataSize: uint64(len(data.Glyphs)),
		Data:     data,
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *metadata.Resource) error {
	if data, ok := resource.Data.(*metadata.FontData); ok {
		data.Glyphs = nil
		data.Kernings = nil
		data.Pages = nil
	}
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

func importDescriptor(desc *bmfont.Descriptor, dir string) *metadata.FontData {
	out := &metadata.FontData{
		Face:       desc.Info.Face,
		Size:       desc.Info.Size,
		LineHeight: desc.Common.LineHeight,
		Baseline:   desc.Common.Base,
		AtlasW:     desc.Common.ScaleW,
		AtlasH:     desc.Common.ScaleH,
		Pages:      make(map[int]string, len(desc.Pages)),
		Glyphs:     make(map[rune]metadata.FontGlyph, len(desc.Chars)),
		Kernings:   make(map[metadata.KerningPair]int, len(desc.Kerning)),
	}
	for id, p := range desc.Pages {
		out.Pages[id] = filepath.Join(dir, p.File)
	}
	for r, g := range desc.Chars {
		out.Glyphs[r] = metadata.FontGlyph{
			Codepoint: g.ID,
			X:         g.X,
			Y:         g.Y,
			W:         g.Width,
			H:         g.Height,
			XOffset:   g.XOffset,
			YOffset:   g.YOffset,
			XAdvance:  g.XAdvance,
			Page:      g.Page,
		}
	}
	for pair, k := range desc.Kerning {
		out.Kernings[metadata.KerningPair{First: pair.First, Second: pair.Second}] = k.Amount
	}
	return out
}
