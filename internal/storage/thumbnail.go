package storage

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const (
	thumbnailSize    = 300
	thumbnailQuality = 85
)

// Image holds the decoded dimensions of an upload and its JPEG thumbnail
type Image struct {
	Width     int
	Height    int
	Thumbnail []byte
}

// MakeThumbnail decodes data, honouring EXIF orientation, and renders a
// 300x300 JPEG thumbnail
func MakeThumbnail(data []byte) (*Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Thumbnail(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	bounds := img.Bounds()
	return &Image{Width: bounds.Dx(), Height: bounds.Dy(), Thumbnail: buf.Bytes()}, nil
}
