package loaders

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/xrender/engine/core"
	"github.com/spaghettifunk/xrender/engine/renderer/metadata"
)

// sizeRecordLen is the length of a sidecar: "wwww\nhhhh\n".
const sizeRecordLen = 10

// SizeLoader reads the ".size" sidecar giving the dimensions of a lazily loaded picture.
type SizeLoader struct{}

func (sl *SizeLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	size, err := ParseSizeDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &metadata.Resource{
		Type:     metadata.ResourceTypeSizeDescriptor,
		FullPath: path,
		DataSize: sizeRecordLen,
		Data:     size,
	}, nil
}

func (sl *SizeLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	return nil
}

// ParseSizeDescriptor decodes the two 4-character decimal fields of a sidecar.
func ParseSizeDescriptor(data []byte) (metadata.SizeDescriptor, error) {
	if len(data) < sizeRecordLen {
		return metadata.SizeDescriptor{}, fmt.Errorf("%w: %d bytes", core.ErrInvalidSizeDescriptor, len(data))
	}
	w, errW := strconv.Atoi(strings.TrimSpace(string(data[0:4])))
	h, errH := strconv.Atoi(strings.TrimSpace(string(data[5:9])))
	if errW != nil || errH != nil || w < 0 || h < 0 {
		return metadata.SizeDescriptor{}, fmt.Errorf("%w: %q", core.ErrInvalidSizeDescriptor, data[:sizeRecordLen])
	}
	return metadata.SizeDescriptor{W: w, H: h}, nil
}

// FormatSizeDescriptor encodes dimensions as a sidecar.
func FormatSizeDescriptor(w, h int) []byte {
	return []byte(fmt.Sprintf("%4d\n%4d\n", w, h))
}
