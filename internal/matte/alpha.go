package matte

import (
	"github.com/iconpress/iconpress/internal/domain"
)

// Smoothstep is the standard cubic Hermite ease: 0 at or below e0, 1 at or
// above e1, t*t*(3-2t) between. With e0 == e1 it degrades to a step
// function instead of dividing by zero.
func Smoothstep(e0, e1, x float64) float64 {
	if e0 == e1 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := (x - e0) / (e1 - e0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

// BuildAlpha computes per-pixel opacity from squared RGB distance to the
// estimated background. The ramp runs from tolerance² to a soft boundary
// halfway toward hardness², widened by the feather multiplier: one
// continuous smoothstep replaces the separate chroma-key tolerance and
// feather-blur passes. Distances at or below tolerance² are background
// (alpha 0), at or above the soft boundary foreground (alpha 255).
func BuildAlpha(buf *PixelBuffer, bg domain.RGB, params domain.MatteParams) AlphaChannel {
	tolSq := params.Tolerance * params.Tolerance
	hardSq := params.Hardness * params.Hardness
	softSq := (tolSq + (hardSq-tolSq)*0.5) * params.Feather
	if softSq < tolSq {
		softSq = tolSq
	}

	bgR := float64(bg.R)
	bgG := float64(bg.G)
	bgB := float64(bg.B)

	alpha := make(AlphaChannel, buf.W*buf.H)
	for i := range alpha {
		p := i * 4
		dr := float64(buf.Pix[p]) - bgR
		dg := float64(buf.Pix[p+1]) - bgG
		db := float64(buf.Pix[p+2]) - bgB
		distSq := dr*dr + dg*dg + db*db

		alpha[i] = uint8(255*Smoothstep(tolSq, softSq, distSq) + 0.5)
	}
	return alpha
}
