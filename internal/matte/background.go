package matte

import (
	"sort"

	"github.com/iconpress/iconpress/internal/domain"
)

const (
	samplesPerSide   = 256
	maxBorderSamples = 5000
)

// EstimateBackground derives the matte color from the image border: the top
// and bottom rows plus the left and right columns, stride-sampled so the
// cost stays O(perimeter) on large images. The per-channel median is used
// rather than the mean so a few foreground pixels bleeding into the border
// cannot drag the estimate.
func EstimateBackground(buf *PixelBuffer) domain.RGB {
	rs := make([]uint8, 0, 4*samplesPerSide)
	gs := make([]uint8, 0, 4*samplesPerSide)
	bs := make([]uint8, 0, 4*samplesPerSide)

	sample := func(x, y int) {
		if len(rs) >= maxBorderSamples {
			return
		}
		i := (y*buf.W + x) * 4
		rs = append(rs, buf.Pix[i])
		gs = append(gs, buf.Pix[i+1])
		bs = append(bs, buf.Pix[i+2])
	}

	strideX := buf.W / samplesPerSide
	if strideX < 1 {
		strideX = 1
	}
	strideY := buf.H / samplesPerSide
	if strideY < 1 {
		strideY = 1
	}

	for x := 0; x < buf.W; x += strideX {
		sample(x, 0)
		sample(x, buf.H-1)
	}
	for y := 0; y < buf.H; y += strideY {
		sample(0, y)
		sample(buf.W-1, y)
	}

	return domain.RGB{
		R: median(rs),
		G: median(gs),
		B: median(bs),
	}
}

func median(values []uint8) uint8 {
	if len(values) == 0 {
		return 0
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values[len(values)/2]
}
