package storage

import (
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

const MaxImageSize = 1 << 20

var (
	ErrInvalidImage = errors.New("invalid image type")
	ErrImageTooBig  = errors.New("image exceeds 1MB")
)

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Image is an uploaded cover, already checked by DetectImage.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// DetectImage sniffs the content rather than trusting the client header.
func DetectImage(data []byte) (Image, error) {
	if len(data) > MaxImageSize {
		return Image{}, ErrImageTooBig
	}
	mt := mimetype.Detect(data)
	if _, ok := allowedTypes[mt.String()]; !ok {
		return Image{}, ErrInvalidImage
	}
	return Image{
		Data:        data,
		ContentType: mt.String(),
		Ext:         mt.Extension(),
	}, nil
}
