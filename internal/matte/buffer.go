// Package matte implements chroma-key style background removal for icon
// imagery: border-median background estimation, a smoothstep alpha matte,
// iterative despeckling and final compositing.
package matte

import (
	"image"
)

// PixelBuffer is a decoded raster held as a flat, non-premultiplied RGBA
// array in row-major order. len(Pix) == W*H*4 always holds; the per-pixel
// loops below index it directly to stay allocation free.
type PixelBuffer struct {
	W, H int
	Pix  []uint8
}

// AlphaChannel is a W*H opacity plane sharing the PixelBuffer's spatial
// indexing. Despeckle rounds mutate it in place.
type AlphaChannel []uint8

func newPixelBuffer(img *image.NRGBA) *PixelBuffer {
	w := img.Rect.Dx()
	h := img.Rect.Dy()

	if img.Stride == w*4 && img.Rect.Min == (image.Point{}) {
		return &PixelBuffer{W: w, H: h, Pix: img.Pix}
	}

	// Sub-images and padded strides get repacked row by row.
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(pix[y*w*4:], src)
	}
	return &PixelBuffer{W: w, H: h, Pix: pix}
}

// RGBA returns the buffer's pixel at (x, y). Bounds are the caller's
// responsibility.
func (b *PixelBuffer) RGBA(x, y int) (r, g, bl, a uint8) {
	i := (y*b.W + x) * 4
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

// Image re-wraps the buffer as an *image.NRGBA sharing the same memory.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.W * 4,
		Rect:   image.Rect(0, 0, b.W, b.H),
	}
}
