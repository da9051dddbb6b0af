package matte

const (
	despeckleRadius = 1
	rethresholdLow  = 0.35 * 255
	rethresholdHigh = 0.65 * 255
)

// Despeckle removes isolated noise from the alpha plane: each round
// box-blurs the channel over a 3x3 neighborhood (clamped at the borders)
// and then re-hardens the result through a smoothstep between 35% and 65%
// opacity. The blur dissolves stray single-pixel holes and islands; the
// re-threshold keeps the main cutout edge from going permanently soft.
// rounds == 0 leaves the channel untouched. The channel is mutated in
// place.
func Despeckle(alpha AlphaChannel, w, h, rounds int) {
	if rounds <= 0 || w <= 0 || h <= 0 {
		return
	}

	blurred := make([]uint8, len(alpha))
	for round := 0; round < rounds; round++ {
		boxBlur(alpha, blurred, w, h, despeckleRadius)
		for i, v := range blurred {
			alpha[i] = uint8(255*Smoothstep(rethresholdLow, rethresholdHigh, float64(v)) + 0.5)
		}
	}
}

func boxBlur(src AlphaChannel, dst []uint8, w, h, radius int) {
	for y := 0; y < h; y++ {
		y0 := y - radius
		if y0 < 0 {
			y0 = 0
		}
		y1 := y + radius
		if y1 > h-1 {
			y1 = h - 1
		}

		for x := 0; x < w; x++ {
			x0 := x - radius
			if x0 < 0 {
				x0 = 0
			}
			x1 := x + radius
			if x1 > w-1 {
				x1 = w - 1
			}

			sum := 0
			for yy := y0; yy <= y1; yy++ {
				row := yy * w
				for xx := x0; xx <= x1; xx++ {
					sum += int(src[row+xx])
				}
			}
			count := (y1 - y0 + 1) * (x1 - x0 + 1)
			dst[y*w+x] = uint8(sum / count)
		}
	}
}
