//go:build !govips || !cgo

package matte

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

func decodeAndFit(data []byte, maxSize int) (*image.NRGBA, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		return imaging.Fit(src, maxSize, maxSize, imaging.Lanczos), nil
	}
	return imaging.Clone(src), nil
}
