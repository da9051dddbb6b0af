// Package vectorize turns raster icons into SVG path markup by luminance
// thresholding to a bitmap and tracing it with a potrace port.
package vectorize

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/dennwc/gotrace"

	"github.com/iconpress/iconpress/internal/domain"
	"github.com/iconpress/iconpress/internal/matte"
)

// CanvasSize bounds the traced bitmap. Tracing cost grows with path count,
// so the cap is deliberately tighter than the matte pipeline's.
const CanvasSize = 1024

// ErrTrace wraps any tracing failure.
var ErrTrace = errors.New("trace bitmap")

// FallbackPolicy decides what a failed trace produces. The generation flow
// wraps the raster so a finished icon is never lost to an untraceable
// image; the plain vectorize endpoint surfaces the error instead. That
// asymmetry is the caller's choice, not the vectorizer's.
type FallbackPolicy int

const (
	FallbackFail FallbackPolicy = iota
	FallbackEmbedRaster
)

// Vectorize normalizes data onto a bounded canvas, reduces it to a
// two-level bitmap at params.Threshold and traces it into SVG markup.
// The returned dimensions are those of the traced canvas.
func Vectorize(data []byte, params domain.TraceParams, policy FallbackPolicy) ([]byte, int, int, error) {
	buf, err := matte.Normalize(data, CanvasSize)
	if err != nil {
		return nil, 0, 0, err
	}

	svg, err := trace(buf, params)
	if err == nil {
		return svg, buf.W, buf.H, nil
	}
	if policy == FallbackEmbedRaster {
		return wrapRaster(data, buf.W, buf.H), buf.W, buf.H, nil
	}
	return nil, 0, 0, err
}

func trace(buf *matte.PixelBuffer, params domain.TraceParams) ([]byte, error) {
	bm := gotrace.NewBitmap(buf.W, buf.H)
	for y := 0; y < buf.H; y++ {
		row := y * buf.W * 4
		for x := 0; x < buf.W; x++ {
			i := row + x*4
			on := foreground(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3], params.Threshold)
			if params.Invert {
				on = !on
			}
			bm.Set(x, y, on)
		}
	}

	paths, err := gotrace.Trace(bm, &gotrace.Params{
		TurdSize:     params.TurdSize,
		TurnPolicy:   gotrace.TurnMinority,
		AlphaMax:     1.0,
		OptiCurve:    true,
		OptTolerance: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrace, err)
	}

	var out bytes.Buffer
	if err := gotrace.WriteSvg(&out, image.Rect(0, 0, buf.W, buf.H), paths, params.Color); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrace, err)
	}
	return out.Bytes(), nil
}

// foreground treats dark, sufficiently opaque pixels as path material.
// Rec.601 luma weights; transparent pixels always read as background.
func foreground(r, g, b, a uint8, threshold int) bool {
	if a < 128 {
		return false
	}
	luma := (299*int(r) + 587*int(g) + 114*int(b)) / 1000
	return luma < threshold
}

// wrapRaster produces a minimal SVG container that embeds the original
// raster via a data URI instead of path markup.
func wrapRaster(data []byte, w, h int) []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out,
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %d %d">`,
		w, h, w, h,
	)
	fmt.Fprintf(&out,
		`<image width="%d" height="%d" xlink:href="data:image/png;base64,%s"/>`,
		w, h, base64.StdEncoding.EncodeToString(data),
	)
	out.WriteString(`</svg>`)
	return out.Bytes()
}
