package api

import (
	"strconv"
	"strings"

	"github.com/iconpress/iconpress/internal/domain"
)

// Query parsing is permissive on purpose: a missing or unparseable value
// falls back to its default and everything is clamped afterwards, so a
// malformed knob never turns into a 4xx.

type queryGetter interface {
	Get(string) string
}

func queryInt(q queryGetter, key string, fallback int) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryFloat(q queryGetter, key string, fallback float64) float64 {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func queryBool(q queryGetter, key string, fallback bool) bool {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func matteParamsFromQuery(q queryGetter) domain.MatteParams {
	params := domain.MatteParams{
		MaxSize:         queryInt(q, "maxSize", domain.DefaultMaxSize),
		Tolerance:       queryFloat(q, "tol", domain.DefaultTolerance),
		Hardness:        queryFloat(q, "hard", domain.DefaultHardness),
		Feather:         queryFloat(q, "feather", domain.DefaultFeather),
		DespeckleRounds: queryInt(q, "despeckle", domain.DefaultDespeckleRounds),
	}
	if raw := strings.TrimSpace(q.Get("matte")); raw != "" {
		if c, err := domain.ParseHexColor(raw); err == nil {
			params.Matte = &c
		}
	}
	return params.Clamp()
}

func traceParamsFromQuery(q queryGetter) domain.TraceParams {
	params := domain.TraceParams{
		Color:     q.Get("color"),
		Threshold: queryInt(q, "threshold", domain.DefaultThreshold),
		TurdSize:  queryInt(q, "turdSize", domain.DefaultTurdSize),
		Invert:    queryBool(q, "invert", false),
	}
	return params.Clamp()
}
