package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/graphics"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageLoader decodes picture files into straight-alpha RGBA buffers. Resource.Data
// holds the *image.NRGBA.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	img, err := DecodeImage(data)
	if err != nil {
		err = fmt.Errorf("%s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	// masks saved as PNG carry the stencil in their alpha channel
	if p, ok := params.(*metadata.ImageLoadParams); ok && p != nil && p.MaskIsPNG {
		img = graphics.GetMaskFromRGBA(img)
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeImage,
		FullPath: path,
		DataSize: uint64(len(img.Pix)),
		Data:     img,
	}, nil
}

func (il *ImageLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// DecodeImage decodes any registered image format (png, gif, jpeg, bmp, tiff).
func DecodeImage(data []byte) (*image.NRGBA, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDecodeFailed, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty %s image", core.ErrEmptyImage, format)
	}
	return graphics.ToNRGBA(img), nil
}
