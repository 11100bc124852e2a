package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Coordinates struct {
	Lon float64 `json:"x"`
	Lat float64 `json:"y"`
}

// Location is a geocoder match in WGS84.
type Location struct {
	MatchAddress string      `json:"match_addr"`
	Score        float64     `json:"score"`
	Coordinates  Coordinates `json:"location"`
}

// Feature is a GIS feature: raw attributes plus the polygon rings of its
// geometry when the layer returns one.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Rings      [][][2]float64 `json:"-"`
}

type ZoningDistrict struct {
	Code       string         `json:"code"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SiteSummary is the GIS-derived context of a parcel.
type SiteSummary struct {
	Address      string           `json:"address"`
	Location     Location         `json:"location"`
	District     string           `json:"district,omitempty"`
	LotAreaSqft  *float64         `json:"lot_area_sqft"`
	LotAreaAcres *float64         `json:"lot_area_acres"`
	Overlays     []string         `json:"overlays"`
	FloodZones   []string         `json:"flood_zones"`
	Flags        []string         `json:"flags"`
	Notes        []string         `json:"notes,omitempty"`
	Parcel       map[string]any   `json:"parcel,omitempty"`
	RawOverlays  []map[string]any `json:"detected_overlays,omitempty"`
}

type DeveloperAnalysisReport struct {
	Address          string           `json:"address"`
	Coordinates      Coordinates      `json:"coordinates"`
	ZoningDistrict   string           `json:"zoning_district"`
	ProposedUse      string           `json:"proposed_use,omitempty"`
	Facts            ExtractionResult `json:"facts"`
	DetailedAnalysis string           `json:"detailed_analysis"`
	Sources          []Citation       `json:"sources"`
	AnalyzedAt       time.Time        `json:"analysis_timestamp"`
}

type UseAnalysisReport struct {
	Address        string     `json:"address"`
	UseType        string     `json:"use_type"`
	ZoningDistrict string     `json:"zoning_district"`
	Analysis       string     `json:"analysis"`
	Sources        []Citation `json:"sources"`
}

type VarianceAnalysisReport struct {
	Address        string     `json:"address"`
	ZoningDistrict string     `json:"zoning_district"`
	ProposedUse    string     `json:"proposed_use"`
	VarianceTypes  []string   `json:"variance_types"`
	Analysis       string     `json:"analysis"`
	Sources        []Citation `json:"sources"`
}

type OverlayReport struct {
	Address          string           `json:"address"`
	OverlayNames     []string         `json:"overlay_names"`
	DetectedOverlays []map[string]any `json:"detected_overlays"`
	Summary          string           `json:"summary"`
	Sources          []Citation       `json:"sources"`
}

// FirstAttribute returns the first of fields that is present in attrs with a
// non-null, non-empty value, rendered as text.
func FirstAttribute(attrs map[string]any, fields ...string) (string, bool) {
	for _, field := range fields {
		value, ok := attrs[field]
		if !ok || value == nil {
			continue
		}
		var text string
		switch v := value.(type) {
		case string:
			text = strings.TrimSpace(v)
		case float64:
			text = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			text = fmt.Sprint(v)
		}
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// FirstNumber is FirstAttribute for numeric attributes. Non-numeric values
// are skipped.
func FirstNumber(attrs map[string]any, fields ...string) (float64, bool) {
	for _, field := range fields {
		switch v := attrs[field].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}
