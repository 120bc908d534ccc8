package metadata

/**
 * @brief One textured draw: the destination rectangle in logical pixels and the
 * source rectangle in picture pixels, plus optional rotation and mirroring.
 */
type TextureDraw struct {
	X float64
	Y float64
	W float64
	H float64

	SrcX int
	SrcY int
	SrcW int
	SrcH int

	/** @brief Clockwise rotation in degrees around Center. */
	Angle float64
	/** @brief Rotation centre relative to the destination's top-left corner. Nil means its middle. */
	Center *PointF
	Flip   Flip
	Tint   Color
}

// FrameStats summarizes the backend work of one frame.
type FrameStats struct {
	OpaqueCalls  int
	OrderedCalls int
	Vertices     int
	Snapshots    int
}

// DrawCalls is the total number of draw calls.
func (s FrameStats) DrawCalls() int {
	return s.OpaqueCalls + s.OrderedCalls
}
