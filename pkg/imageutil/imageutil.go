// Package imageutil validates uploaded raster images and renders thumbnails.
package imageutil

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	_ "image/png"  // register png decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp decoder
)

// ErrUnsupportedFormat is returned for payloads that are not a supported raster image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var extensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// Info describes a decoded image.
type Info struct {
	Format      string
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// Inspect fully decodes r to prove it is a supported image, then rewinds it.
func Inspect(r io.ReadSeeker) (Info, image.Image, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return Info{}, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	contentType, ok := contentTypes[format]
	if !ok {
		return Info{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, nil, fmt.Errorf("rewind image: %w", err)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return Info{}, nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, nil, fmt.Errorf("rewind image: %w", err)
	}
	return Info{
		Format:      format,
		ContentType: contentType,
		Extension:   extensions[format],
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, img, nil
}

// WriteThumbnail encodes a JPEG no wider than width, preserving aspect ratio.
func WriteThumbnail(w io.Writer, img image.Image, width int) error {
	if width <= 0 {
		width = 320
	}
	thumb := img
	if img.Bounds().Dx() > width {
		thumb = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	if err := imaging.Encode(w, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}
