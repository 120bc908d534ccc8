package batch

import (
	"math"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

const (
	DefaultMultipassCount = 2
	DefaultPruneInterval  = 512

	circleSegments   = 20
	quadrantSegments = 5
)

// DrawMode selects how a device composites a vertex list.
type DrawMode uint8

const (
	// Regular blending (translucent pass) or replace-with-depth (opaque pass).
	DrawNormal DrawMode = iota
	// Draw the picture's mask texture with a bitwise AND.
	DrawMaskAND
	// Draw the picture's colour texture with a bitwise OR.
	DrawImageOR
)

// BufferID names the render targets a device keeps for read-back programs.
type BufferID uint8

const (
	BufferGame BufferID = iota
	BufferRead
	BufferInitPass
	BufferPrevPass
)

func (b BufferID) String() string {
	switch b {
	case BufferGame:
		return "game"
	case BufferRead:
		return "read"
	case BufferInitPass:
		return "init-pass"
	case BufferPrevPass:
		return "prev-pass"
	}
	return "unknown"
}

/**
 * @brief The programs a device offers the engine. Circle programs may be nil, in which
 * case circles are tessellated into triangle fans drawn without a program.
 */
type Programs struct {
	Standard     *metadata.Program
	Bitmask      *metadata.Program
	RectFilled   *metadata.Program
	RectUnfilled *metadata.Program
	Circle       *metadata.Program
	CircleHole   *metadata.Program
}

/**
 * @brief Device is the backend-specific half of the batching engine: it executes
 * draw calls and buffer copies. Vertex positions are relative to the current viewport.
 */
type Device interface {
	Programs() Programs
	// HasLogicOp reports whether AND/OR compositing is available for masked pictures.
	HasLogicOp() bool
	SetDepthWrite(enabled bool)
	// DrawVertices issues one draw call for a triangle list. pass is the multipass index.
	DrawVertices(ctx metadata.DrawContext, mode DrawMode, vertices []metadata.Vertex, pass int)
	// CopyBuffer copies rect (viewport-relative, nil for the whole viewport) from src to dst.
	CopyBuffer(dst, src BufferID, rect *metadata.Rect)
}

// Stats counts the work submitted to the device.
type Stats struct {
	OpaqueCalls  int
	OrderedCalls int
	Vertices     int
	Snapshots    int
}

type orderedKey struct {
	depth int16
	ctx   metadata.DrawContext
}

type orderedBucket struct {
	key  orderedKey
	seq  uint64
	list metadata.VertexList
}

type Option func(*Engine)

// WithMultipassCount sets how many passes multipass programs get.
func WithMultipassCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.multipassCount = n
		}
	}
}

// WithPruneInterval sets after how many frames idle buckets are dropped.
func WithPruneInterval(frames uint64) Option {
	return func(e *Engine) {
		if frames > 0 {
			e.pruneInterval = frames
		}
	}
}

/**
 * @brief Engine accumulates the primitives of a frame into per-context vertex lists and
 * replays them on a Device with as few draw calls as ordering allows.
 *
 * Opaque primitives go to the unordered queue keyed by context. Everything that blends goes
 * to the ordered queue keyed by (depth, context) and is drawn in ascending depth order.
 * The engine is not safe for concurrent use.
 */
type Engine struct {
	device   Device
	programs Programs

	multipassCount int
	pruneInterval  uint64

	unordered map[metadata.DrawContext]*metadata.VertexList
	ordered   map[orderedKey]*orderedBucket
	maskDepth map[metadata.DrawContext]int16

	recent      metadata.DrawContext
	recentDepth int16
	hasRecent   bool

	curDepth  int16
	saturated bool
	frame     uint64
	seq       uint64
	stats     Stats
}

func New(device Device, opts ...Option) *Engine {
	e := &Engine{
		device:         device,
		programs:       device.Programs(),
		multipassCount: DefaultMultipassCount,
		pruneInterval:  DefaultPruneInterval,
		unordered:      make(map[metadata.DrawContext]*metadata.VertexList),
		ordered:        make(map[orderedKey]*orderedBucket),
		maskDepth:      make(map[metadata.DrawContext]int16),
		curDepth:       1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Programs() Programs {
	return e.programs
}

// Depth returns the depth the next primitive will get.
func (e *Engine) Depth() int16 {
	return e.curDepth
}

// Frame returns the number of frames ended so far.
func (e *Engine) Frame() uint64 {
	return e.frame
}

// Stats returns the counters of the current frame.
func (e *Engine) Stats() Stats {
	return e.stats
}

// BucketCount returns how many unordered and ordered buckets exist, used or not.
func (e *Engine) BucketCount() (int, int) {
	return len(e.unordered), len(e.ordered)
}

// advance saturates at MaxInt16; ordered buckets sharing the last depth keep submission order.
func (e *Engine) advance() {
	if e.curDepth == math.MaxInt16 {
		if !e.saturated {
			core.LogWarn("draw depth exhausted at frame %d", e.frame)
			e.saturated = true
		}
		return
	}
	e.curDepth++
}

func (e *Engine) unorderedList(ctx metadata.DrawContext) *metadata.VertexList {
	list, ok := e.unordered[ctx]
	if !ok {
		list = &metadata.VertexList{}
		e.unordered[ctx] = list
	}
	return list
}

// needsSnapshot reports whether every draw of ctx in a frame should share one depth.
func (e *Engine) needsSnapshot(ctx metadata.DrawContext) bool {
	if ctx.Program.ReadsBuffer() {
		return true
	}
	return !e.device.HasLogicOp() && ctx.Program == e.programs.Standard &&
		ctx.Picture != nil && ctx.Picture.HasMask()
}

func (e *Engine) orderedList(ctx metadata.DrawContext, depth int16) *metadata.VertexList {
	if e.hasRecent && ctx == e.recent {
		return &e.bucket(orderedKey{depth: e.recentDepth, ctx: ctx}).list
	}

	if e.needsSnapshot(ctx) {
		if saved, ok := e.maskDepth[ctx]; ok {
			depth = saved
		} else {
			e.maskDepth[ctx] = depth
		}
	}

	e.recent = ctx
	e.recentDepth = depth
	e.hasRecent = true

	return &e.bucket(orderedKey{depth: depth, ctx: ctx}).list
}

func (e *Engine) bucket(key orderedKey) *orderedBucket {
	b, ok := e.ordered[key]
	if !ok {
		e.seq++
		b = &orderedBucket{key: key, seq: e.seq}
		e.ordered[key] = b
	}
	return b
}

func (e *Engine) textureContext(p *metadata.Picture, slab uint8, program *metadata.Program) (metadata.DrawContext, bool) {
	custom := program != nil && program != e.programs.Standard
	if program == nil {
		program = e.programs.Standard
	}
	return metadata.DrawContext{Picture: p, Program: program, Slab: slab}, custom
}

func (e *Engine) textureList(p *metadata.Picture, slab uint8, program *metadata.Program, alpha float32) *metadata.VertexList {
	ctx, custom := e.textureContext(p, slab, program)
	if p.DepthTest && !p.HasMask() && alpha == 1.0 && !custom {
		return e.unorderedList(ctx)
	}
	return e.orderedList(ctx, e.curDepth)
}

func (e *Engine) solidList(program *metadata.Program, alpha float32) *metadata.VertexList {
	ctx := metadata.DrawContext{Program: program}
	if alpha == 1.0 {
		return e.unorderedList(ctx)
	}
	return e.orderedList(ctx, e.curDepth)
}

/**
 * @brief Queues a textured axis-aligned quad covering (x1,y1)-(x2,y2) and sampling
 * (u1,v1)-(u2,v2) of one slab of the picture. A nil program selects the standard one.
 */
func (e *Engine) DrawTexture(p *metadata.Picture, slab uint8, program *metadata.Program,
	x1, y1, x2, y2 int16, u1, v1, u2, v2 float32, tint metadata.Color) {
	list := e.textureList(p, slab, program, tint.A)
	list.Quad(x1, y1, x2, y2, e.curDepth, u1, v1, u2, v2, tint.Bytes())
	e.advance()
}

/**
 * @brief Queues a textured quadrilateral. Corners and texture coordinates are given as
 * top-left, bottom-left, top-right, bottom-right.
 */
func (e *Engine) DrawTextureQuad(p *metadata.Picture, slab uint8, program *metadata.Program,
	corners [4][2]int16, uv [4][2]float32, tint metadata.Color) {
	list := e.textureList(p, slab, program, tint.A)
	list.Quad4(corners, e.curDepth, uv, tint.Bytes())
	e.advance()
}

// DrawRect queues a filled or outlined rectangle.
func (e *Engine) DrawRect(x, y, w, h int, c metadata.Color, filled bool) {
	if w == 0 || h == 0 {
		return
	}

	program := e.programs.RectFilled
	if !filled {
		program = e.programs.RectUnfilled
	}

	x1, y1 := int16(x), int16(y)
	x2, y2 := int16(x+w), int16(y+h)
	tint := c.Bytes()
	list := e.solidList(program, c.A)

	switch {
	case program != nil:
		// interpolated u/v is <= 0 over the first two pixels and >= 1 over the last two
		u1, u2 := -2.0/float32(w), (float32(w)+2.0)/float32(w)
		v1, v2 := -2.0/float32(h), (float32(h)+2.0)/float32(h)
		list.Quad(x1, y1, x2, y2, e.curDepth, u1, v1, u2, v2, tint)
	case filled:
		list.Quad(x1, y1, x2, y2, e.curDepth, 0, 0, 1, 1, tint)
	default:
		// edges never overlap
		if x1 > x2 {
			x1, x2 = x2, x1
		}
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		list.Quad(x1, y1, x2, y1+1, e.curDepth, 0, 0, 1, 1, tint)
		if y2-y1 > 1 {
			list.Quad(x1, y2-1, x2, y2, e.curDepth, 0, 0, 1, 1, tint)
		}
		if y2-y1 > 2 {
			list.Quad(x1, y1+1, x1+1, y2-1, e.curDepth, 0, 0, 1, 1, tint)
			if x2-x1 > 1 {
				list.Quad(x2-1, y1+1, x2, y2-1, e.curDepth, 0, 0, 1, 1, tint)
			}
		}
	}

	e.advance()
}

// DrawCircle queues a filled circle.
func (e *Engine) DrawCircle(cx, cy, radius int, c metadata.Color) {
	if radius <= 0 {
		return
	}

	program := e.programs.Circle
	list := e.solidList(program, c.A)
	tint := c.Bytes()

	if program != nil {
		list.Quad(int16(cx-radius), int16(cy-radius), int16(cx+radius), int16(cy+radius), e.curDepth, 0, 0, 1, 1, tint)
	} else {
		center := [2]int16{int16(cx), int16(cy)}
		prev := arcPoint(cx, cy, radius, 0)
		for i := 1; i <= circleSegments; i++ {
			next := arcPoint(cx, cy, radius, float64(i)*2*math.Pi/circleSegments)
			list.Triangle(prev, next, center, e.curDepth, tint)
			prev = next
		}
	}

	e.advance()
}

// DrawCircleOutline queues a one pixel wide ring. Circle programs only fill, so the
// ring is always built from triangles.
func (e *Engine) DrawCircleOutline(cx, cy, radius int, c metadata.Color) {
	if radius <= 0 {
		return
	}

	list := e.solidList(nil, c.A)
	tint := c.Bytes()

	outer := arcPoint(cx, cy, radius, 0)
	inner := arcPoint(cx, cy, radius-1, 0)
	for i := 1; i <= circleSegments; i++ {
		theta := float64(i) * 2 * math.Pi / circleSegments
		nextOuter := arcPoint(cx, cy, radius, theta)
		nextInner := arcPoint(cx, cy, radius-1, theta)
		list.Triangle(outer, nextOuter, inner, e.curDepth, tint)
		list.Triangle(inner, nextOuter, nextInner, e.curDepth, tint)
		outer, inner = nextOuter, nextInner
	}

	e.advance()
}

// DrawCircleHole queues the square around a circle with the circle itself left empty.
func (e *Engine) DrawCircleHole(cx, cy, radius int, c metadata.Color) {
	if radius <= 0 {
		return
	}

	program := e.programs.CircleHole
	list := e.solidList(program, c.A)
	tint := c.Bytes()

	if program != nil {
		list.Quad(int16(cx-radius), int16(cy-radius), int16(cx+radius), int16(cy+radius), e.curDepth, 0, 0, 1, 1, tint)
	} else {
		// one fan per quadrant from the square's corner along the arc
		corners := [4][2]int{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}}
		for q, corner := range corners {
			pivot := [2]int16{int16(cx + corner[0]*radius), int16(cy + corner[1]*radius)}
			start := float64(q) * math.Pi / 2
			prev := arcPoint(cx, cy, radius, start)
			for i := 1; i <= quadrantSegments; i++ {
				next := arcPoint(cx, cy, radius, start+float64(i)*math.Pi/2/quadrantSegments)
				list.Triangle(pivot, prev, next, e.curDepth, tint)
				prev = next
			}
		}
	}

	e.advance()
}

func arcPoint(cx, cy, radius int, theta float64) [2]int16 {
	return [2]int16{
		int16(cx + int(math.Round(float64(radius)*math.Cos(theta)))),
		int16(cy + int(math.Round(float64(radius)*math.Sin(theta)))),
	}
}

func (e *Engine) pendingOrdered() []*orderedBucket {
	pending := make([]*orderedBucket, 0, len(e.ordered))
	for _, b := range e.ordered {
		if !b.list.Empty() {
			pending = append(pending, b)
		}
	}
	slices.SortFunc(pending, func(a, b *orderedBucket) int {
		if a.key.depth != b.key.depth {
			return int(a.key.depth) - int(b.key.depth)
		}
		return int(a.seq) - int(b.seq)
	})
	return pending
}

/**
 * @brief Executes everything queued so far. Opaque buckets are drawn first, then the
 * ordered buckets in depth order with depth writes disabled, repeated for every pass
 * when a multipass program is queued.
 */
func (e *Engine) Flush() {
	for ctx, list := range e.unordered {
		if list.Empty() {
			continue
		}
		list.Active = true
		e.device.DrawVertices(ctx, DrawNormal, list.Vertices, 0)
		e.stats.OpaqueCalls++
		e.stats.Vertices += len(list.Vertices)
		list.Vertices = list.Vertices[:0]
	}

	pending := e.pendingOrdered()
	if len(pending) == 0 {
		return
	}

	passes := 1
	for _, b := range pending {
		if b.key.ctx.Program.Multipass() {
			passes = e.multipassCount
			e.device.CopyBuffer(BufferInitPass, BufferGame, nil)
			e.stats.Snapshots++
			break
		}
	}

	e.device.SetDepthWrite(false)

	logicOp := e.device.HasLogicOp()
	for pass := 0; pass < passes; pass++ {
		if pass != 0 {
			e.device.CopyBuffer(BufferPrevPass, BufferGame, nil)
			e.device.CopyBuffer(BufferGame, BufferInitPass, nil)
		}

		for _, b := range pending {
			ctx := b.key.ctx
			list := &b.list
			list.Active = true

			needLogicOp := ctx.Picture != nil && ctx.Picture.HasMask() && ctx.Program == e.programs.Standard
			if needLogicOp && !logicOp {
				ctx.Program = e.programs.Bitmask
				needLogicOp = false
			}

			if ctx.Program.ReadsBuffer() {
				switch n := len(list.Vertices); {
				case n > 6:
					e.device.CopyBuffer(BufferRead, BufferGame, nil)
					e.stats.Snapshots++
				case n == 6:
					r := list.Bounds()
					e.device.CopyBuffer(BufferRead, BufferGame, &r)
					e.stats.Snapshots++
				}
			}

			if needLogicOp {
				e.device.DrawVertices(ctx, DrawMaskAND, list.Vertices, pass)
				e.device.DrawVertices(ctx, DrawImageOR, list.Vertices, pass)
				e.stats.OrderedCalls += 2
			} else {
				e.device.DrawVertices(ctx, DrawNormal, list.Vertices, pass)
				e.stats.OrderedCalls++
			}
			e.stats.Vertices += len(list.Vertices)

			if pass == passes-1 {
				list.Vertices = list.Vertices[:0]
			}
		}
	}

	e.device.SetDepthWrite(true)
}

/**
 * @brief Flushes, then starts a new frame: the depth counter restarts, the read-back
 * depth cache is dropped and every prune interval frames the buckets left idle since
 * the previous prune are deleted. Returns the finished frame's counters.
 */
func (e *Engine) EndFrame() Stats {
	e.Flush()

	e.curDepth = 1
	e.saturated = false
	e.hasRecent = false
	clear(e.maskDepth)

	e.frame++
	if e.frame%e.pruneInterval == 0 {
		e.prune()
	}

	stats := e.stats
	e.stats = Stats{}
	return stats
}

func (e *Engine) prune() {
	dropped := 0
	for ctx, list := range e.unordered {
		if !list.Active {
			delete(e.unordered, ctx)
			dropped++
			continue
		}
		list.Active = false
	}
	for key, b := range e.ordered {
		if !b.list.Active {
			delete(e.ordered, key)
			dropped++
			continue
		}
		b.list.Active = false
	}
	if dropped > 0 {
		core.LogDebug("pruned %d idle draw buckets at frame %d", dropped, e.frame)
	}
}

// Clear discards every queued vertex without drawing it.
func (e *Engine) Clear() {
	for _, list := range e.unordered {
		list.Vertices = list.Vertices[:0]
	}
	for _, b := range e.ordered {
		b.list.Vertices = b.list.Vertices[:0]
	}
	e.hasRecent = false
	e.recent = metadata.DrawContext{}
	clear(e.maskDepth)
}

// Pending reports whether vertices drawing p are queued and not yet flushed.
func (e *Engine) Pending(p *metadata.Picture) bool {
	for ctx, list := range e.unordered {
		if ctx.Picture == p && len(list.Vertices) > 0 {
			return true
		}
	}
	for key, b := range e.ordered {
		if key.ctx.Picture == p && len(b.list.Vertices) > 0 {
			return true
		}
	}
	return false
}

// Forget drops every bucket that references p, used when its texture is destroyed.
// Flush first when Pending reports queued vertices, they are discarded otherwise.
func (e *Engine) Forget(p *metadata.Picture) {
	for ctx := range e.unordered {
		if ctx.Picture == p {
			delete(e.unordered, ctx)
		}
	}
	for key := range e.ordered {
		if key.ctx.Picture == p {
			delete(e.ordered, key)
		}
	}
	for ctx := range e.maskDepth {
		if ctx.Picture == p {
			delete(e.maskDepth, ctx)
		}
	}
	if e.recent.Picture == p {
		e.hasRecent = false
		e.recent = metadata.DrawContext{}
	}
}
