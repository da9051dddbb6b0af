package matte

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/iconpress/iconpress/internal/domain"
)

// Composite merges the source RGB with the computed alpha channel. R, G and
// B pass through unchanged so foreground color fidelity is exact. With a
// matte color the image is instead flattened: each pixel is blended toward
// the matte by its transparency and the output is fully opaque.
func Composite(buf *PixelBuffer, alpha AlphaChannel, matteColor *domain.RGB) *PixelBuffer {
	out := &PixelBuffer{W: buf.W, H: buf.H, Pix: make([]uint8, len(buf.Pix))}

	if matteColor == nil {
		copy(out.Pix, buf.Pix)
		for i, a := range alpha {
			out.Pix[i*4+3] = a
		}
		return out
	}

	mr := int(matteColor.R)
	mg := int(matteColor.G)
	mb := int(matteColor.B)
	for i, a := range alpha {
		p := i * 4
		fa := int(a)
		out.Pix[p] = uint8((int(buf.Pix[p])*fa + mr*(255-fa)) / 255)
		out.Pix[p+1] = uint8((int(buf.Pix[p+1])*fa + mg*(255-fa)) / 255)
		out.Pix[p+2] = uint8((int(buf.Pix[p+2])*fa + mb*(255-fa)) / 255)
		out.Pix[p+3] = 255
	}
	return out
}

// EncodePNG serializes the buffer into a PNG container.
func EncodePNG(buf *PixelBuffer) ([]byte, error) {
	var out bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&out, buf.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// Remove runs the full background-removal sequence over an already
// normalized buffer: estimate, matte, despeckle, composite.
func Remove(buf *PixelBuffer, params domain.MatteParams) *PixelBuffer {
	bg := EstimateBackground(buf)
	alpha := BuildAlpha(buf, bg, params)
	Despeckle(alpha, buf.W, buf.H, params.DespeckleRounds)
	return Composite(buf, alpha, params.Matte)
}
