//go:build govips && cgo

package matte

import (
	"bytes"
	"fmt"
	"image"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// The govips path exists for formats the pure-Go decoders do not cover
// (heif, animated webp) and for its much faster large-image downscale. The
// traced pixel loops still run over an NRGBA buffer, so the vips result is
// exported once as PNG and repacked.
func decodeAndFit(data []byte, maxSize int) (*image.NRGBA, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	longest := img.Width()
	if img.Height() > longest {
		longest = img.Height()
	}
	if longest > maxSize {
		scale := float64(maxSize) / float64(longest)
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("resize source image: %w", err)
		}
	}

	encoded, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export normalized image: %w", err)
	}

	decoded, err := imaging.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return imaging.Clone(decoded), nil
}
