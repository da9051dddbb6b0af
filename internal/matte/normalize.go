package matte

import (
	"errors"
	"fmt"

	_ "golang.org/x/image/webp"
)

// ErrDecode wraps any failure to interpret source bytes as a raster image.
var ErrDecode = errors.New("decode source image")

// Normalize decodes arbitrary raster bytes and resizes the result to fit
// within maxSize on both axes, preserving aspect ratio. Smaller sources are
// never enlarged. The output always carries four channels: sources without
// an alpha channel come back fully opaque.
func Normalize(data []byte, maxSize int) (*PixelBuffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if maxSize < 1 {
		return nil, fmt.Errorf("normalize: max size %d is invalid", maxSize)
	}

	img, err := decodeAndFit(data, maxSize)
	if err != nil {
		return nil, err
	}

	buf := newPixelBuffer(img)
	if buf.W == 0 || buf.H == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return buf, nil
}
