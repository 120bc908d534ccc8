package metadata

/** @brief One character cell of a bitmap font atlas. */
type FontGlyph struct {
	Codepoint rune
	X         int
	Y         int
	W         int
	H         int
	XOffset   int
	YOffset   int
	XAdvance  int
	Page      int
}

/** @brief A pair of codepoints whose spacing is adjusted. */
type KerningPair struct {
	First  rune
	Second rune
}

/**
 * @brief A bitmap font descriptor. Pages are atlas image paths, resolved relative to
 * the descriptor file and indexed by page id.
 */
type FontData struct {
	Face       string
	Size       int
	LineHeight int
	Baseline   int
	AtlasW     int
	AtlasH     int
	Pages      map[int]string
	Glyphs     map[rune]FontGlyph
	Kernings   map[KerningPair]int
}
