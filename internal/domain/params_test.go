package domain

import "testing"

func TestMatteParamsClampRanges(t *testing.T) {
	p := MatteParams{
		MaxSize:         9000,
		Tolerance:       500,
		Hardness:        1,
		Feather:         0.01,
		DespeckleRounds: 12,
	}.Clamp()

	if p.MaxSize != MaxMaxSize {
		t.Fatalf("expected max size %d, got %d", MaxMaxSize, p.MaxSize)
	}
	if p.Tolerance != MaxTolerance {
		t.Fatalf("expected tolerance %d, got %v", MaxTolerance, p.Tolerance)
	}
	if p.Hardness != p.Tolerance+1 {
		t.Fatalf("expected hardness forced above tolerance, got %v", p.Hardness)
	}
	if p.Feather != MinFeather {
		t.Fatalf("expected feather %v, got %v", MinFeather, p.Feather)
	}
	if p.DespeckleRounds != MaxDespeckleRounds {
		t.Fatalf("expected despeckle rounds %d, got %d", MaxDespeckleRounds, p.DespeckleRounds)
	}
}

func TestMatteParamsClampDefaults(t *testing.T) {
	p := MatteParams{}.Clamp()
	want := DefaultMatteParams()

	if p.MaxSize != want.MaxSize || p.Tolerance != want.Tolerance || p.Hardness != want.Hardness {
		t.Fatalf("zero params should clamp to defaults, got %+v", p)
	}
	if p.DespeckleRounds != 0 {
		t.Fatalf("zero despeckle rounds is a valid choice, got %d", p.DespeckleRounds)
	}
}

func TestTraceParamsClamp(t *testing.T) {
	p := TraceParams{Color: "not-a-color", Threshold: 900, TurdSize: -4}.Clamp()
	if p.Color != DefaultTraceColor {
		t.Fatalf("expected default color for junk input, got %s", p.Color)
	}
	if p.Threshold != 255 {
		t.Fatalf("expected threshold clamped to 255, got %d", p.Threshold)
	}
	if p.TurdSize != 0 {
		t.Fatalf("expected turd size clamped to 0, got %d", p.TurdSize)
	}

	p = TraceParams{Color: "FA0"}.Clamp()
	if p.Color != "#ffaa00" {
		t.Fatalf("expected short hex expanded, got %s", p.Color)
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#1A2b3C")
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if c != (RGB{R: 0x1a, G: 0x2b, B: 0x3c}) {
		t.Fatalf("unexpected color %+v", c)
	}

	if _, err := ParseHexColor("#12345"); err == nil {
		t.Fatal("expected error for 5-digit hex")
	}
}

func TestCreateGenerationRequestValidate(t *testing.T) {
	valid := CreateGenerationRequest{Prompt: "a flat orange rocket icon", Format: "svg"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	if err := (CreateGenerationRequest{}).Validate(); err == nil {
		t.Fatal("expected validation error for empty prompt")
	}

	badFormat := CreateGenerationRequest{Prompt: "rocket", Format: "tiff"}
	if err := badFormat.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported format")
	}
}
