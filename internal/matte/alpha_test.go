package matte

import (
	"testing"

	"github.com/iconpress/iconpress/internal/domain"
)

func TestSmoothstepEndpoints(t *testing.T) {
	if got := Smoothstep(100, 200, 100); got != 0 {
		t.Fatalf("expected 0 at lower edge, got %v", got)
	}
	if got := Smoothstep(100, 200, 200); got != 1 {
		t.Fatalf("expected 1 at upper edge, got %v", got)
	}
	if got := Smoothstep(100, 200, 50); got != 0 {
		t.Fatalf("expected 0 below lower edge, got %v", got)
	}
	if got := Smoothstep(100, 200, 500); got != 1 {
		t.Fatalf("expected 1 above upper edge, got %v", got)
	}
	if got := Smoothstep(100, 200, 150); got <= 0.4 || got >= 0.6 {
		t.Fatalf("expected midpoint near 0.5, got %v", got)
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := -1.0
	for x := 0.0; x <= 300; x++ {
		v := Smoothstep(100, 200, x)
		if v < prev {
			t.Fatalf("smoothstep decreased at x=%v: %v < %v", x, v, prev)
		}
		prev = v
	}
}

func TestSmoothstepDegeneratesToStep(t *testing.T) {
	if got := Smoothstep(100, 100, 99); got != 0 {
		t.Fatalf("expected 0 below a degenerate edge, got %v", got)
	}
	if got := Smoothstep(100, 100, 100); got != 1 {
		t.Fatalf("expected 1 at a degenerate edge, got %v", got)
	}
	if got := Smoothstep(100, 100, 101); got != 1 {
		t.Fatalf("expected 1 above a degenerate edge, got %v", got)
	}
}

// buildFlatIcon paints a w x h white canvas with a centered solid square of
// the given color, side w/2.
func buildFlatIcon(w, h int, fg [3]uint8) *PixelBuffer {
	buf := &PixelBuffer{W: w, H: h, Pix: make([]uint8, w*h*4)}
	for i := 0; i < w*h; i++ {
		buf.Pix[i*4] = 255
		buf.Pix[i*4+1] = 255
		buf.Pix[i*4+2] = 255
		buf.Pix[i*4+3] = 255
	}
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			i := (y*w + x) * 4
			buf.Pix[i] = fg[0]
			buf.Pix[i+1] = fg[1]
			buf.Pix[i+2] = fg[2]
		}
	}
	return buf
}

func TestBuildAlphaFlatBackgroundCutout(t *testing.T) {
	buf := buildFlatIcon(64, 64, [3]uint8{200, 30, 30})
	params := domain.DefaultMatteParams().Clamp()

	bg := EstimateBackground(buf)
	if bg != (domain.RGB{R: 255, G: 255, B: 255}) {
		t.Fatalf("expected white background estimate, got %+v", bg)
	}

	alpha := BuildAlpha(buf, bg, params)

	for _, i := range []int{0, 63, 63 * 64, 64*64 - 1} {
		if alpha[i] != 0 {
			t.Fatalf("expected transparent border pixel %d, got alpha=%d", i, alpha[i])
		}
	}
	center := 32*64 + 32
	if alpha[center] != 255 {
		t.Fatalf("expected opaque interior, got alpha=%d", alpha[center])
	}
}

func TestBuildAlphaRampIsBetweenThresholds(t *testing.T) {
	// A pixel whose distance sits between tolerance and the soft boundary
	// must land strictly inside (0, 255).
	buf := &PixelBuffer{W: 1, H: 1, Pix: []uint8{255, 255, 215, 255}}
	params := domain.MatteParams{Tolerance: 35, Hardness: 55, Feather: 2.5}.Clamp()

	alpha := BuildAlpha(buf, domain.RGB{R: 255, G: 255, B: 255}, params)
	if alpha[0] == 0 || alpha[0] == 255 {
		t.Fatalf("expected partial opacity in the ramp zone, got %d", alpha[0])
	}
}
