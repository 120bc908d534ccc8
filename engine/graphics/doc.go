// Package graphics holds the pixel-level helpers used when pictures are imported:
// legacy AND/OR mask merging, mask extraction, colour keys, power-of-two padding,
// tall image slabs and the validators that pick the cheapest correct compositing
// strategy for an asset.
//
// All helpers work on straight (non-premultiplied) *image.NRGBA buffers whose
// bounds start at the origin; use ToNRGBA to normalise decoded images first.
package graphics
