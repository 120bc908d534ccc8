package metadata

/** @brief Capabilities a program requires from the batching engine. */
type ProgramFlags uint8

const (
	/** @brief The program is drawn over several passes and samples the previous pass. */
	ProgramMultipass ProgramFlags = 1 << iota
	/** @brief The program samples a snapshot of the render target taken right before it is drawn. */
	ProgramReadBuffer
	/** @brief The program emulates bit-mask compositing without a hardware logic-op. */
	ProgramBitmask
)

/**
 * @brief Identifies a shader/program. Programs compare by identity.
 */
type Program struct {
	/** @brief Name used in logs. */
	Name string
	/** @brief Requirements of the program. */
	Flags ProgramFlags
	/** @brief Backend private program data. */
	Source interface{}
}

func (p *Program) Multipass() bool {
	return p != nil && p.Flags&ProgramMultipass != 0
}

// ReadsBuffer reports whether a backbuffer snapshot is needed before drawing with p.
func (p *Program) ReadsBuffer() bool {
	return p != nil && p.Flags&(ProgramReadBuffer|ProgramMultipass|ProgramBitmask) != 0
}

/**
 * @brief What the backend needs bound to draw a batch: a picture slab (or none for solid
 * primitives) and a program (or none). Two contexts are equal iff all fields are equal.
 */
type DrawContext struct {
	Picture *Picture
	Program *Program
	Slab    uint8
}

// Texture returns the backend handle bound by the context, or nil.
func (c DrawContext) Texture() interface{} {
	if c.Picture == nil {
		return nil
	}
	return c.Picture.Handle(int(c.Slab))
}
