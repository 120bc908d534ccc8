package metadata

// RenderTarget selects where draws land.
type RenderTarget uint8

const (
	// Draws go to the offscreen game buffer that is scaled on repaint.
	TargetTexture RenderTarget = iota
	// Draws go straight to the physical screen image.
	TargetScreen
)

/**
 * @brief The active sub-rectangle of the output, in logical pixels, plus the offset
 * applied to every submitted primitive.
 */
type ViewportState struct {
	X int
	Y int
	W int
	H int
	/** @brief Translation added to subsequently submitted coordinates. */
	OffsetX int
	OffsetY int
	/** @brief When set, the offset is suspended (HUD drawing). */
	IgnoreOffset bool
	/** @brief Current render target. */
	Target RenderTarget
}
