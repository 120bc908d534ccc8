package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Unknown files are not indexed. */
	ResourceTypeNone ResourceType = iota
	/** @brief Image resource type (png, gif, bmp, jpg, tiff). */
	ResourceTypeImage
	/** @brief Picture size sidecar (".size"). */
	ResourceTypeSizeDescriptor
	/** @brief Bitmap font descriptor (".fnt"). */
	ResourceTypeBitmapFont
	/** @brief Configuration file (".toml"). */
	ResourceTypeConfig
)

func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeSizeDescriptor:
		return "size-descriptor"
	case ResourceTypeBitmapFont:
		return "bitmap-font"
	case ResourceTypeConfig:
		return "config"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The resource type. */
	Type ResourceType
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

/** @brief Dimensions read from a picture size sidecar. */
type SizeDescriptor struct {
	W int
	H int
}

/** @brief Parameters understood by the image loader. */
type ImageLoadParams struct {
	/** @brief The file is a mask stored as RGBA: the mask is derived from its alpha channel. */
	MaskIsPNG bool
}
