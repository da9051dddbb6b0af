package matte

import (
	"testing"

	"github.com/iconpress/iconpress/internal/domain"
)

func TestEstimateBackgroundUniformBorder(t *testing.T) {
	buf := buildFlatIcon(48, 48, [3]uint8{10, 10, 10})
	bg := EstimateBackground(buf)
	if bg != (domain.RGB{R: 255, G: 255, B: 255}) {
		t.Fatalf("expected pure white, got %+v", bg)
	}
}

func TestEstimateBackgroundResistsContamination(t *testing.T) {
	// A thin icon stroke touching the top edge contaminates under 10% of
	// the border samples; the median must not move.
	buf := buildFlatIcon(100, 100, [3]uint8{10, 10, 10})
	for x := 45; x < 54; x++ {
		i := x * 4
		buf.Pix[i] = 10
		buf.Pix[i+1] = 10
		buf.Pix[i+2] = 10
	}

	bg := EstimateBackground(buf)
	if bg != (domain.RGB{R: 255, G: 255, B: 255}) {
		t.Fatalf("expected contaminated border to still read white, got %+v", bg)
	}
}

func TestEstimateBackgroundBoundedSamples(t *testing.T) {
	// Large images must not be sampled per-pixel; a 4096-wide border at
	// stride 16 keeps the total near 4*256.
	buf := &PixelBuffer{W: 4096, H: 4096, Pix: make([]uint8, 4096*4096*4)}
	for i := 0; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = 7
		buf.Pix[i+1] = 99
		buf.Pix[i+2] = 201
		buf.Pix[i+3] = 255
	}

	bg := EstimateBackground(buf)
	if bg != (domain.RGB{R: 7, G: 99, B: 201}) {
		t.Fatalf("unexpected estimate %+v", bg)
	}
}
