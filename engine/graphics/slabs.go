package graphics

import (
	"fmt"
	"image"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// SplitSlabs cuts img into horizontal bands of at most slabHeight rows so each fits
// in a single texture. Images needing more than metadata.MaxTextureSlabs bands are
// rejected.
func SplitSlabs(img *image.NRGBA, slabHeight int) ([]*image.NRGBA, error) {
	h := img.Rect.Dy()
	if slabHeight <= 0 || h <= slabHeight {
		return []*image.NRGBA{img}, nil
	}
	n := (h + slabHeight - 1) / slabHeight
	if n > metadata.MaxTextureSlabs {
		return nil, fmt.Errorf("%w: %d rows need %d slabs of %d", core.ErrTextureTooLarge, h, n, slabHeight)
	}
	w := img.Rect.Dx()
	slabs := make([]*image.NRGBA, 0, n)
	for top := 0; top < h; top += slabHeight {
		rows := min(slabHeight, h-top)
		slab := image.NewNRGBA(image.Rect(0, 0, w, rows))
		for y := 0; y < rows; y++ {
			copy(slab.Pix[y*slab.Stride:y*slab.Stride+w*4], img.Pix[(top+y)*img.Stride:(top+y)*img.Stride+w*4])
		}
		slabs = append(slabs, slab)
	}
	return slabs, nil
}

// SlabSpan is the part of a draw that samples a single slab. SrcY is relative to
// the top of the slab.
type SlabSpan struct {
	Slab int
	SrcY int
	SrcH int
	DstY int
	DstH int
}

// SlabSpans splits a draw of source rows [ySrc, ySrc+hSrc) onto destination rows
// [yDst, yDst+hDst) along slab boundaries of slabHeight logical rows. The destination
// height of each part is proportional to its source rows; the last part takes the
// remainder so the parts cover hDst exactly.
func SlabSpans(ySrc, hSrc, yDst, hDst, slabHeight int) []SlabSpan {
	if hSrc <= 0 {
		return nil
	}
	if slabHeight <= 0 {
		return []SlabSpan{{Slab: 0, SrcY: ySrc, SrcH: hSrc, DstY: yDst, DstH: hDst}}
	}

	var spans []SlabSpan
	src, end := ySrc, ySrc+hSrc
	dst, dstEnd := yDst, yDst+hDst
	for src < end {
		slab := src / slabHeight
		if slab >= metadata.MaxTextureSlabs {
			break
		}
		slabEnd := (slab + 1) * slabHeight
		rows := min(end, slabEnd) - src

		dh := dstEnd - dst
		if src+rows < end {
			dh = rows * hDst / hSrc
		}
		spans = append(spans, SlabSpan{
			Slab: slab,
			SrcY: src - slab*slabHeight,
			SrcH: rows,
			DstY: dst,
			DstH: dh,
		})
		src += rows
		dst += dh
	}
	return spans
}
