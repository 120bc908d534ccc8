package graphics

import (
	"image"

	"github.com/spaghettifunk/xrender/engine/core"
)

// ValidateFor2xScaleDown reports whether every 2x2 block of img holds four identical
// pixels, so shrinking it by half loses nothing.
func ValidateFor2xScaleDown(img *image.NRGBA, origPath string) bool {
	if img == nil {
		return false
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w%2 != 0 || h%2 != 0 {
		core.LogDebug("texture can't be shrank, non-multiple size: %d x %d (%s)", w, h, origPath)
		return false
	}
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			p1 := img.Pix[y*img.Stride+x*4:]
			p2 := img.Pix[(y+1)*img.Stride+x*4:]
			if !equal4(p1, p1[4:]) || !equal4(p1, p2) || !equal4(p1, p2[4:]) {
				core.LogDebug("texture can't be shrank: pixels of the %d x %d 2x2 block differ (%s)", x, y, origPath)
				return false
			}
		}
	}
	return true
}

// ValidateForDepthTest reports whether every alpha value is below 0x08 or at least
// 0xF8 (the legacy content used 5 bits per channel), which makes the picture safe
// for the depth-tested opaque queue.
func ValidateForDepthTest(img *image.NRGBA, origPath string) bool {
	if img == nil {
		return false
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := img.Pix[y*img.Stride+x*4+3]
			if a < 0x08 || a >= 0xF8 {
				continue
			}
			core.LogDebug("texture cannot use depth test (%s)", origPath)
			return false
		}
	}
	return true
}

// ValidateBitmaskRequired reports whether the front image and its mask need true
// AND/OR compositing, or whether an alpha image made by MergeWithMask is equivalent.
//
// The comparisons are kept exactly as the historical importer wrote them, including
// bounds that test x against the image heights. Pixels are addressed the way that
// importer did: rows stored bottom-up, offset y*pitch + x*4, so an x past the row
// end reads into the next stored row and reads past the buffer yield a zero pixel.
func ValidateBitmaskRequired(front, mask *image.NRGBA, origPath string) bool {
	if front == nil || mask == nil {
		return false
	}
	fb := newBottomUp(front)
	bb := newBottomUp(mask)
	fw, fh := fb.w, fb.h
	bw, bh := bb.w, bb.h

	black := [3]uint8{0x00, 0x00, 0x00}
	whiteRGB := [3]uint8{0xFF, 0xFF, 0xFF}

	for y := 0; y < fh || y < bh; y++ {
		for x := 0; x < fw || x < bw; x++ {
			fp := fb.at(x, y)
			bp := bb.at(x, y)

			// mask pixel is black: buffer replaced with front pixel
			if y < bh && x < bw && rgb(bp) == black {
				continue
			}

			// front pixel is white: buffer replaced with front pixel
			if y < fh && x < fh && rgb(fp) == whiteRGB {
				continue
			}

			// back pixel is white and front pixel is black: buffer preserved
			// (0xF8 is the "white" some vanilla masks use)
			if (y >= bh || x >= bh || (bp[0] >= 0xF8 && bp[1] >= 0xF8 && bp[2] >= 0xF8)) &&
				(y >= fh || x >= fh || rgb(fp) == black) {
				continue
			}

			// pixel matches the front: not a lazily made sprite
			if y < bh && x < bh && y < fh && x < fh && rgb(bp) == rgb(fp) {
				continue
			}

			core.LogDebug("texture requires the bitmask render (%s)", origPath)
			return true
		}
	}

	core.LogDebug("texture doesn't require bitmask render (%s)", origPath)
	return false
}

// bottomUp addresses an image as a flat buffer of rows stored bottom to top.
type bottomUp struct {
	img  *image.NRGBA
	w, h int
}

func newBottomUp(img *image.NRGBA) bottomUp {
	return bottomUp{img: img, w: img.Rect.Dx(), h: img.Rect.Dy()}
}

func (b bottomUp) at(x, y int) [4]uint8 {
	idx := y*b.w + x
	if b.w == 0 || idx >= b.w*b.h {
		return [4]uint8{}
	}
	row := idx / b.w
	col := idx % b.w
	o := (b.h-1-row)*b.img.Stride + col*4
	p := b.img.Pix[o : o+4]
	return [4]uint8{p[0], p[1], p[2], p[3]}
}

func rgb(p [4]uint8) [3]uint8 {
	return [3]uint8{p[0], p[1], p[2]}
}

func equal4(a, b []uint8) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2] && a[3] == b[3]
}
