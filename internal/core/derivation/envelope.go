package derivation

import (
	"math"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// DeriveEnvelope computes the buildable envelope of a rectangular lot.
// Setbacks that cannot be coerced count as 0; caps whose inputs are
// unavailable stay nil.
func DeriveEnvelope(facts domain.FactRecord, lotWidthFt, lotDepthFt float64) domain.Envelope {
	lotArea := lotWidthFt * lotDepthFt

	setbacks := domain.Setbacks{
		FrontFt: valueOrZero(facts.FrontSetbackFt),
		SideFt:  valueOrZero(facts.SideSetbackFt),
		RearFt:  valueOrZero(facts.RearSetbackFt),
	}

	buildableWidth := math.Max(lotWidthFt-2*setbacks.SideFt, 0)
	buildableDepth := math.Max(lotDepthFt-(setbacks.FrontFt+setbacks.RearFt), 0)
	footprint := math.Max(buildableWidth*buildableDepth, 0)

	var coverage *float64
	if v, ok := Num(facts.LotCoverageMax); ok {
		normalized := NormalizeCoverage(v)
		coverage = &normalized
	}

	var coverageCap *float64
	maxFootprint := footprint
	if coverage != nil {
		capArea := lotArea * *coverage
		coverageCap = &capArea
		maxFootprint = math.Min(footprint, capArea)
	}

	far := numPtr(facts.FloorAreaRatio)
	var maxFloorArea *float64
	if far != nil {
		v := *far * lotArea
		maxFloorArea = &v
	}

	height := numPtr(facts.MaxHeightFt)
	var estStories *int
	if height != nil {
		v := int(math.Floor(*height / FeetPerStory))
		estStories = &v
	}

	return domain.Envelope{
		Lot: domain.Lot{
			WidthFt:  lotWidthFt,
			DepthFt:  lotDepthFt,
			AreaSqft: lotArea,
		},
		Setbacks: setbacks,
		Buildable: domain.BuildableArea{
			WidthFt:            buildableWidth,
			DepthFt:            buildableDepth,
			GeometricFootprint: footprint,
			CoverageCap:        coverageCap,
			MaxFootprint:       maxFootprint,
		},
		IntensityCaps: domain.IntensityCaps{
			FloorAreaRatio:    far,
			MaxFloorAreaByFAR: maxFloorArea,
			LotCoverageMax:    coverage,
		},
		HeightCaps: domain.HeightCaps{
			MaxHeightFt:             height,
			MaxStories:              numPtr(facts.MaxStories),
			EstMaxStoriesFromHeight: estStories,
		},
	}
}

func valueOrZero(m domain.Measure) float64 {
	v, ok := Num(m)
	if !ok {
		return 0
	}
	return v
}
