package core

import (
	"errors"
)

var (
	ErrPictureNotInited      = errors.New("picture is not initialized")
	ErrEmptyImage            = errors.New("image has zero size")
	ErrDecodeFailed          = errors.New("failed to decode image")
	ErrOutOfTextureMemory    = errors.New("out of texture memory")
	ErrTextureTooLarge       = errors.New("texture exceeds the maximum number of slabs")
	ErrBackendNotAvailable   = errors.New("render backend not available")
	ErrBackendNotInitialized = errors.New("render backend not initialized")
	ErrInvalidSizeDescriptor = errors.New("invalid picture size descriptor")
	ErrUnknownResourceType   = errors.New("unknown resource type")
	ErrLoaderNotFound        = errors.New("no loader registered for resource type")
	ErrAssetManagerClosed    = errors.New("asset manager already closed")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrUnknown               = errors.New("unknown")
)
