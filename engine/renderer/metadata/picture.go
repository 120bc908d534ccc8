package metadata

import (
	"sync"

	"github.com/google/uuid"
)

/** @brief The maximum number of stacked textures a tall picture can be split into. */
const MaxTextureSlabs = 3

/**
 * @brief Represents one loaded or loadable image.
 *
 * A Picture is owned by whoever created it (a font, a sprite table, a level). The
 * texture system only keeps a non-owning registry entry while backend handles exist.
 * Its address must stay stable once registered: lazy materialisation fills it in place.
 */
type Picture struct {
	/** @brief Unique identifier, used as registry key and in logs. */
	ID uuid.UUID
	/** @brief Path of the image file, kept for lazy (re)loading. */
	Path string
	/** @brief Optional path of a separate bit-mask image. */
	MaskPath string
	/** @brief Optional image whose alpha channel generates the mask when MaskPath is missing. */
	MaskFallbackPath string

	/** @brief Logical width in pixels. */
	W int
	/** @brief Logical height in pixels. */
	H int
	/** @brief Physical width of the uploaded image, when it differs from W. */
	WOrig int
	/** @brief Physical height of the uploaded image, when it differs from H. */
	HOrig int
	/** @brief Maps logical texels to normalized texture coordinates on the x axis. */
	WScale float32
	/** @brief Maps logical texels to normalized texture coordinates on the y axis. */
	HScale float32

	/** @brief The picture is usable. False means it must not be drawn. */
	Inited bool
	/** @brief Pixels are loaded on demand; Path is retained for that. */
	LazyLoaded bool
	/** @brief Alpha is binary enough to go through the depth-tested opaque queue. */
	DepthTest bool

	/** @brief Backend private texture handles, one per slab. */
	Handles [MaxTextureSlabs]interface{}
	/** @brief Number of valid entries in Handles. */
	SlabCount int
	/** @brief Logical rows covered by each slab. Zero when the picture is a single texture. */
	SlabHeight int
	/** @brief Backend private handle of the bit-mask companion texture. */
	MaskHandle interface{}

	/** @brief Custom program drawn instead of the backend's standard one. Nil for none. */
	Program *Program

	/** @brief Last tint applied to the backend texture. */
	ModColor Color
	/** @brief ModColor holds a value applied to the backend. */
	ModColorSet bool

	mutex sync.Mutex
}

// NewPicture returns an empty, uninitialized picture with a fresh identifier.
func NewPicture() *Picture {
	return &Picture{ID: uuid.New(), WScale: 1, HScale: 1}
}

// Lock serializes materialisation of the picture.
func (p *Picture) Lock() {
	p.mutex.Lock()
}

func (p *Picture) Unlock() {
	p.mutex.Unlock()
}

// HasTexture reports whether pixel data is resident in the backend.
func (p *Picture) HasTexture() bool {
	return p.Handles[0] != nil
}

func (p *Picture) HasMask() bool {
	return p.MaskHandle != nil
}

// Handle returns the backend handle for the given slab, or nil.
func (p *Picture) Handle(slab int) interface{} {
	if slab < 0 || slab >= MaxTextureSlabs {
		return nil
	}
	return p.Handles[slab]
}

// ResetHandles forgets every backend handle and the cached tint.
func (p *Picture) ResetHandles() {
	for i := range p.Handles {
		p.Handles[i] = nil
	}
	p.SlabCount = 0
	p.MaskHandle = nil
	p.ModColorSet = false
}

// Reset clears the whole descriptor, including path and dimensions. The ID is kept.
func (p *Picture) Reset() {
	p.ResetHandles()
	p.Path = ""
	p.MaskPath = ""
	p.MaskFallbackPath = ""
	p.W, p.H = 0, 0
	p.WOrig, p.HOrig = 0, 0
	p.WScale, p.HScale = 1, 1
	p.SlabHeight = 0
	p.Program = nil
	p.Inited = false
	p.LazyLoaded = false
	p.DepthTest = false
}

// TintChanged records c as the current modulation and reports whether it differs
// from the one already applied.
func (p *Picture) TintChanged(c Color) bool {
	if p.ModColorSet && p.ModColor == c {
		return false
	}
	p.ModColor = c
	p.ModColorSet = true
	return true
}

// String returns a short name for logs.
func (p *Picture) String() string {
	if p.Path != "" {
		return p.Path
	}
	return p.ID.String()
}
