package vectorize

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/iconpress/iconpress/internal/domain"
)

// buildBitmapPNG draws a black square on a white 128x128 canvas.
func buildBitmapPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			if x >= 32 && x < 96 && y >= 32 && y < 96 {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode bitmap png: %v", err)
	}
	return buf.Bytes()
}

func TestVectorizeBlackOnWhite(t *testing.T) {
	svg, w, h, err := Vectorize(buildBitmapPNG(t), domain.DefaultTraceParams().Clamp(), FallbackFail)
	if err != nil {
		t.Fatalf("vectorize returned error: %v", err)
	}
	if w != 128 || h != 128 {
		t.Fatalf("expected 128x128 canvas, got %dx%d", w, h)
	}

	markup := string(svg)
	if !strings.Contains(markup, "<svg") {
		t.Fatalf("expected svg markup, got %q", markup[:min(len(markup), 80)])
	}
	if !strings.Contains(markup, "<path") {
		t.Fatal("expected at least one path element")
	}
	if strings.Contains(markup, "<image") {
		t.Fatal("expected traced paths, not an embedded raster fallback")
	}
}

func TestVectorizeInvert(t *testing.T) {
	params := domain.DefaultTraceParams().Clamp()
	params.Invert = true

	svg, _, _, err := Vectorize(buildBitmapPNG(t), params, FallbackFail)
	if err != nil {
		t.Fatalf("vectorize returned error: %v", err)
	}
	if !strings.Contains(string(svg), "<path") {
		t.Fatal("expected inverted trace to contain paths")
	}
}

func TestVectorizeRejectsGarbage(t *testing.T) {
	if _, _, _, err := Vectorize([]byte("not an image"), domain.DefaultTraceParams().Clamp(), FallbackFail); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWrapRasterContainer(t *testing.T) {
	svg := wrapRaster([]byte{0x89, 0x50, 0x4e, 0x47}, 64, 48)
	markup := string(svg)

	if !strings.Contains(markup, `viewBox="0 0 64 48"`) {
		t.Fatalf("expected viewBox in container, got %q", markup)
	}
	if !strings.Contains(markup, "data:image/png;base64,") {
		t.Fatal("expected embedded data uri")
	}
}

func TestForegroundThreshold(t *testing.T) {
	if !foreground(0, 0, 0, 255, 128) {
		t.Fatal("expected black opaque pixel to be foreground")
	}
	if foreground(255, 255, 255, 255, 128) {
		t.Fatal("expected white pixel to be background")
	}
	if foreground(0, 0, 0, 10, 128) {
		t.Fatal("expected transparent pixel to be background")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
