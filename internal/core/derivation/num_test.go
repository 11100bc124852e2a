package derivation

import (
	"encoding/json"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

func TestNumCoercesTextAndNumbers(t *testing.T) {
	if v, ok := Num("12 ft"); !ok || v != 12.0 {
		t.Fatalf("Num(\"12 ft\") = %v, %v; want 12, true", v, ok)
	}
	if v, ok := Num(7.5); !ok || v != 7.5 {
		t.Fatalf("Num(7.5) = %v, %v; want 7.5, true", v, ok)
	}
	if v, ok := Num("max 3.25 FAR, 4 with bonus"); !ok || v != 3.25 {
		t.Fatalf("expected first numeric substring 3.25, got %v, %v", v, ok)
	}
	if _, ok := Num(nil); ok {
		t.Fatalf("Num(nil) must be unavailable")
	}
	if _, ok := Num("sixty"); ok {
		t.Fatalf("Num(\"sixty\") must be unavailable")
	}
	if _, ok := Num(true); ok {
		t.Fatalf("Num(true) must be unavailable")
	}
}

func TestNumAcceptsEveryNumericType(t *testing.T) {
	type storyCount uint16
	cases := []any{int8(4), int32(4), int64(4), uint(4), uint8(4), uint32(4), uint64(4), storyCount(4), float32(4), json.Number("4")}
	for _, value := range cases {
		if v, ok := Num(value); !ok || v != 4 {
			t.Fatalf("Num(%T) = %v, %v; want 4, true", value, v, ok)
		}
	}
	if _, ok := Num(json.Number("four")); ok {
		t.Fatalf("a malformed json.Number must be unavailable")
	}
}

func TestNumUnwrapsMeasures(t *testing.T) {
	if v, ok := Num(domain.TextMeasure("20 feet")); !ok || v != 20 {
		t.Fatalf("expected 20 from text measure, got %v, %v", v, ok)
	}
	if v, ok := Num(domain.NumberMeasure(0)); !ok || v != 0 {
		t.Fatalf("expected numeric zero to be available, got %v, %v", v, ok)
	}
	if _, ok := Num(domain.Measure{}); ok {
		t.Fatalf("absent measure must be unavailable")
	}
}

func TestNormalizeCoverage(t *testing.T) {
	if got := NormalizeCoverage(60); got != 0.60 {
		t.Fatalf("NormalizeCoverage(60) = %v, want 0.60", got)
	}
	if got := NormalizeCoverage(0.4); got != 0.4 {
		t.Fatalf("NormalizeCoverage(0.4) = %v, want 0.4", got)
	}
	if got := NormalizeCoverage(1.5); got != 1.5 {
		t.Fatalf("NormalizeCoverage(1.5) = %v, want boundary unchanged", got)
	}
}
