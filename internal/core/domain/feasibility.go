package domain

// Lot is a rectangular lot in feet.
type Lot struct {
	WidthFt  float64 `json:"width_ft"`
	DepthFt  float64 `json:"depth_ft"`
	AreaSqft float64 `json:"area_sqft"`
}

type Setbacks struct {
	FrontFt float64 `json:"front"`
	SideFt  float64 `json:"side"`
	RearFt  float64 `json:"rear"`
}

type BuildableArea struct {
	WidthFt            float64  `json:"buildable_width_ft"`
	DepthFt            float64  `json:"buildable_depth_ft"`
	GeometricFootprint float64  `json:"geometric_footprint"`
	CoverageCap        *float64 `json:"coverage_cap"`
	MaxFootprint       float64  `json:"max_footprint"`
}

type IntensityCaps struct {
	FloorAreaRatio    *float64 `json:"floor_area_ratio"`
	MaxFloorAreaByFAR *float64 `json:"max_floor_area_by_far"`
	LotCoverageMax    *float64 `json:"lot_coverage_max"`
}

type HeightCaps struct {
	MaxHeightFt             *float64 `json:"max_height_ft"`
	MaxStories              *float64 `json:"max_stories"`
	EstMaxStoriesFromHeight *int     `json:"est_max_stories_from_height"`
}

// Envelope is the conservative building envelope derived from facts and lot
// dimensions. Nil pointers are values that could not be derived.
type Envelope struct {
	Lot           Lot           `json:"lot"`
	Setbacks      Setbacks      `json:"setbacks_ft"`
	Buildable     BuildableArea `json:"buildable_area_sqft"`
	IntensityCaps IntensityCaps `json:"intensity_caps"`
	HeightCaps    HeightCaps    `json:"height_caps"`
}

type Rating string

const (
	RatingGo      Rating = "Go"
	RatingCaution Rating = "Caution"
	RatingNoGo    Rating = "No-Go"
)

type Feasibility struct {
	ProposedUse string   `json:"proposed_use"`
	Rating      Rating   `json:"rating"`
	Reasons     []string `json:"reasons"`
}

// EnvelopeReport is the envelope operation output returned to callers.
type EnvelopeReport struct {
	Envelope

	Address string           `json:"address"`
	Facts   ExtractionResult `json:"facts"`
	Sources []Citation       `json:"sources"`
}

type FeasibilityReport struct {
	Feasibility

	Address string           `json:"address"`
	Facts   ExtractionResult `json:"facts"`
	Sources []Citation       `json:"sources"`
}

type SnapshotReport struct {
	Address  string           `json:"address"`
	Facts    ExtractionResult `json:"facts"`
	Markdown string           `json:"markdown"`
	Sources  []Citation       `json:"sources"`
}

type Answer struct {
	Text    string     `json:"answer"`
	Sources []Citation `json:"sources"`
}
