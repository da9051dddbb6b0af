package domain

import (
	"fmt"
	"strings"
)

// RGB is an 8-bit color triple, used for estimated background colors and
// matte flattening.
type RGB struct {
	R, G, B uint8
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHexColor accepts #rgb, #rrggbb and the same forms without the hash.
func ParseHexColor(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return RGB{}, fmt.Errorf("invalid hex color %q", s)
	}

	var c RGB
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return c, nil
}

// MatteParams controls background removal. Zero values are replaced by
// defaults and everything is clamped into range by Clamp, so a MatteParams
// that went through Clamp is always safe to hand to the pipeline.
type MatteParams struct {
	MaxSize         int
	Tolerance       float64
	Hardness        float64
	Feather         float64
	DespeckleRounds int
	Matte           *RGB
}

const (
	MinMaxSize     = 128
	MaxMaxSize     = 4096
	DefaultMaxSize = 1024

	MinTolerance     = 1
	MaxTolerance     = 200
	DefaultTolerance = 35

	MinHardness     = 5
	MaxHardness     = 400
	DefaultHardness = 55

	MinFeather     = 0.5
	MaxFeather     = 10
	DefaultFeather = 2.5

	MaxDespeckleRounds     = 3
	DefaultDespeckleRounds = 1
)

func DefaultMatteParams() MatteParams {
	return MatteParams{
		MaxSize:         DefaultMaxSize,
		Tolerance:       DefaultTolerance,
		Hardness:        DefaultHardness,
		Feather:         DefaultFeather,
		DespeckleRounds: DefaultDespeckleRounds,
	}
}

// Clamp forces every field into its documented range. Hardness is
// additionally forced above Tolerance so the alpha ramp always has a
// positive width.
func (p MatteParams) Clamp() MatteParams {
	if p.MaxSize == 0 {
		p.MaxSize = DefaultMaxSize
	}
	p.MaxSize = clampInt(p.MaxSize, MinMaxSize, MaxMaxSize)

	if p.Tolerance == 0 {
		p.Tolerance = DefaultTolerance
	}
	p.Tolerance = clampFloat(p.Tolerance, MinTolerance, MaxTolerance)

	if p.Hardness == 0 {
		p.Hardness = DefaultHardness
	}
	p.Hardness = clampFloat(p.Hardness, MinHardness, MaxHardness)
	if p.Hardness < p.Tolerance+1 {
		p.Hardness = p.Tolerance + 1
	}

	if p.Feather == 0 {
		p.Feather = DefaultFeather
	}
	p.Feather = clampFloat(p.Feather, MinFeather, MaxFeather)

	p.DespeckleRounds = clampInt(p.DespeckleRounds, 0, MaxDespeckleRounds)
	return p
}

// RampWidth reports the distance between the two matte thresholds. Values
// close to zero produce a near-binary cutout, which callers may want to
// warn about.
func (p MatteParams) RampWidth() float64 {
	return p.Hardness - p.Tolerance
}

// TraceParams controls bitmap tracing into SVG paths.
type TraceParams struct {
	Color     string
	Threshold int
	TurdSize  int
	Invert    bool
}

const (
	DefaultTraceColor = "#000000"
	DefaultThreshold  = 128
	DefaultTurdSize   = 2
	MaxTurdSize       = 100
)

func DefaultTraceParams() TraceParams {
	return TraceParams{
		Color:     DefaultTraceColor,
		Threshold: DefaultThreshold,
		TurdSize:  DefaultTurdSize,
	}
}

func (p TraceParams) Clamp() TraceParams {
	if strings.TrimSpace(p.Color) == "" {
		p.Color = DefaultTraceColor
	} else if c, err := ParseHexColor(p.Color); err != nil {
		p.Color = DefaultTraceColor
	} else {
		p.Color = c.Hex()
	}

	if p.Threshold == 0 {
		p.Threshold = DefaultThreshold
	}
	p.Threshold = clampInt(p.Threshold, 1, 255)

	p.TurdSize = clampInt(p.TurdSize, 0, MaxTurdSize)
	return p
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
