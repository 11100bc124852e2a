// Package derivation computes envelope and feasibility results from
// extracted zoning facts. Every function is pure.
package derivation

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// CoveragePercentThreshold separates fractions ("0.6") from percentage
// points ("60") in lot coverage values.
const CoveragePercentThreshold = 1.5

// FeetPerStory converts a height limit to an estimated story count.
const FeetPerStory = 12.0

var numericPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// Num coerces a raw fact value to a float. Numbers pass through; text yields
// its first decimal or integer substring ("10 ft" is 10). Absent values and
// text without digits report false.
func Num(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case domain.Measure:
		return Num(v.Raw())
	case string:
		match := numericPattern.FindString(v)
		if match == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return float64(rv.Uint()), true
		case reflect.Float32, reflect.Float64:
			return rv.Float(), true
		}
		return 0, false
	}
}

// NormalizeCoverage turns a coverage value above the threshold into a
// fraction. Values at or below it are already fractions.
func NormalizeCoverage(coverage float64) float64 {
	if coverage > CoveragePercentThreshold {
		return coverage / 100.0
	}
	return coverage
}

func numPtr(m domain.Measure) *float64 {
	v, ok := Num(m)
	if !ok {
		return nil
	}
	return &v
}
