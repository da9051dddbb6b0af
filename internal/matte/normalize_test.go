package matte

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeNeverUpscales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	buf, err := Normalize(encodePNG(t, img), 512)
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	if buf.W != 60 || buf.H != 40 {
		t.Fatalf("expected 60x40 to stay 60x40, got %dx%d", buf.W, buf.H)
	}
}

func TestNormalizeFitsWithinMaxSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 400))
	buf, err := Normalize(encodePNG(t, img), 200)
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	if buf.W != 200 || buf.H != 100 {
		t.Fatalf("expected aspect-preserving 200x100, got %dx%d", buf.W, buf.H)
	}
}

func TestNormalizeAddsAlphaChannel(t *testing.T) {
	// JPEG sources have no alpha; the buffer must still be 4-channel and
	// fully opaque.
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 50, B: 10, A: 255})
		}
	}
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	buf, err := Normalize(jpg.Bytes(), 512)
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	if len(buf.Pix) != buf.W*buf.H*4 {
		t.Fatalf("expected %d channel values, got %d", buf.W*buf.H*4, len(buf.Pix))
	}
	for i := 3; i < len(buf.Pix); i += 4 {
		if buf.Pix[i] != 255 {
			t.Fatalf("expected opaque alpha at %d, got %d", i, buf.Pix[i])
		}
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	if _, err := Normalize([]byte("definitely not an image"), 512); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Normalize(nil, 512); err == nil {
		t.Fatal("expected decode error for empty input")
	}
}
