package api

import (
	"net/url"
	"testing"

	"github.com/iconpress/iconpress/internal/domain"
)

func TestMatteParamsFromQueryDefaults(t *testing.T) {
	params := matteParamsFromQuery(url.Values{})

	if params.MaxSize != domain.DefaultMaxSize {
		t.Fatalf("expected default max size %d, got %d", domain.DefaultMaxSize, params.MaxSize)
	}
	if params.Tolerance != domain.DefaultTolerance {
		t.Fatalf("expected default tolerance %v, got %v", domain.DefaultTolerance, params.Tolerance)
	}
	if params.Matte != nil {
		t.Fatalf("expected no matte color by default, got %v", params.Matte)
	}
}

func TestMatteParamsFromQueryBadValuesFallBack(t *testing.T) {
	q := url.Values{}
	q.Set("maxSize", "not-a-number")
	q.Set("tol", "banana")
	q.Set("feather", "")
	q.Set("despeckle", "1.5")
	q.Set("matte", "zzz")

	params := matteParamsFromQuery(q)

	if params.MaxSize != domain.DefaultMaxSize {
		t.Fatalf("unparseable maxSize should fall back, got %d", params.MaxSize)
	}
	if params.Tolerance != domain.DefaultTolerance {
		t.Fatalf("unparseable tol should fall back, got %v", params.Tolerance)
	}
	if params.DespeckleRounds != domain.DefaultDespeckleRounds {
		t.Fatalf("unparseable despeckle should fall back, got %d", params.DespeckleRounds)
	}
	if params.Matte != nil {
		t.Fatalf("invalid matte color should be dropped, got %v", params.Matte)
	}
}

func TestMatteParamsFromQueryClampsRanges(t *testing.T) {
	q := url.Values{}
	q.Set("maxSize", "999999")
	q.Set("tol", "5000")
	q.Set("feather", "0.001")
	q.Set("despeckle", "40")

	params := matteParamsFromQuery(q)

	if params.MaxSize != domain.MaxMaxSize {
		t.Fatalf("expected max size clamped to %d, got %d", domain.MaxMaxSize, params.MaxSize)
	}
	if params.Tolerance != domain.MaxTolerance {
		t.Fatalf("expected tolerance clamped to %v, got %v", float64(domain.MaxTolerance), params.Tolerance)
	}
	if params.Feather != domain.MinFeather {
		t.Fatalf("expected feather clamped to %v, got %v", float64(domain.MinFeather), params.Feather)
	}
	if params.DespeckleRounds != domain.MaxDespeckleRounds {
		t.Fatalf("expected despeckle clamped to %d, got %d", domain.MaxDespeckleRounds, params.DespeckleRounds)
	}
}

func TestMatteParamsFromQueryParsesMatteColor(t *testing.T) {
	q := url.Values{}
	q.Set("matte", "#ff8000")

	params := matteParamsFromQuery(q)
	if params.Matte == nil {
		t.Fatal("expected matte color to be parsed")
	}
	if params.Matte.R != 0xff || params.Matte.G != 0x80 || params.Matte.B != 0x00 {
		t.Fatalf("unexpected matte color %+v", *params.Matte)
	}
}

func TestTraceParamsFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("color", "#123abc")
	q.Set("threshold", "200")
	q.Set("turdSize", "7")
	q.Set("invert", "true")

	params := traceParamsFromQuery(q)
	if params.Color != "#123abc" {
		t.Fatalf("unexpected color %q", params.Color)
	}
	if params.Threshold != 200 {
		t.Fatalf("unexpected threshold %d", params.Threshold)
	}
	if params.TurdSize != 7 {
		t.Fatalf("unexpected turd size %d", params.TurdSize)
	}
	if !params.Invert {
		t.Fatal("expected invert to be set")
	}
}

func TestTraceParamsFromQueryBadValuesFallBack(t *testing.T) {
	q := url.Values{}
	q.Set("color", "rainbow")
	q.Set("threshold", "over9000")
	q.Set("invert", "maybe")

	params := traceParamsFromQuery(q)
	if params.Color != domain.DefaultTraceColor {
		t.Fatalf("invalid color should fall back, got %q", params.Color)
	}
	if params.Threshold != domain.DefaultThreshold {
		t.Fatalf("unparseable threshold should fall back, got %d", params.Threshold)
	}
	if params.Invert {
		t.Fatal("unparseable invert should fall back to false")
	}
}

func TestQueryIntKeepsParsedValue(t *testing.T) {
	q := url.Values{}
	q.Set("limit", "42")

	if got := queryInt(q, "limit", 20); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := queryInt(q, "missing", 20); got != 20 {
		t.Fatalf("expected fallback 20, got %d", got)
	}
}
