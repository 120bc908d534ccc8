package core

const AVG_COUNT uint8 = 30

// Metrics keeps frame timing averages and the draw statistics of the last
// flushed frame.
type Metrics struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	// Draw calls issued by the last frame, split by queue.
	OpaqueDrawCalls  int
	OrderedDrawCalls int
	// Vertices uploaded by the last frame.
	Vertices int
	// Buffer snapshots (read-back copies) taken by the last frame.
	Snapshots int
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.MStimes[m.FrameAVGCounter] = frameMS
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}
		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
}

// RecordDraws stores the draw statistics reported by the renderer at the end of a frame.
func (m *Metrics) RecordDraws(opaque, ordered, vertices, snapshots int) {
	m.OpaqueDrawCalls = opaque
	m.OrderedDrawCalls = ordered
	m.Vertices = vertices
	m.Snapshots = snapshots
}

func (m *Metrics) FrameTime() float64 {
	return m.MSavg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.FPS, m.MSavg
}
