package derivation

import (
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

const (
	ReasonProhibited      = "Proposed use appears prohibited in district"
	ReasonByRight         = "Proposed use appears permitted by right"
	ReasonConditional     = "Proposed use likely requires special/conditional approval"
	ReasonUnclear         = "Use permission unclear from retrieved context"
	ReasonSetbacksConsume = "Setbacks consume lot; no buildable footprint"
)

// UseMatcher reports whether a proposed use matches one entry of a use list.
type UseMatcher func(proposedUse, listedUse string) bool

// SubstringMatcher matches when the proposed use occurs, ignoring case,
// inside the listed use.
func SubstringMatcher(proposedUse, listedUse string) bool {
	return strings.Contains(strings.ToLower(listedUse), strings.ToLower(proposedUse))
}

// LotDimensions are optional lot dimensions in feet. A dimension counts as
// supplied when it is present and positive.
type LotDimensions struct {
	WidthFt *float64
	DepthFt *float64
}

func (d LotDimensions) supplied() (float64, float64, bool) {
	if d.WidthFt == nil || d.DepthFt == nil || *d.WidthFt <= 0 || *d.DepthFt <= 0 {
		return 0, 0, false
	}
	return *d.WidthFt, *d.DepthFt, true
}

// DeriveFeasibility rates a proposed use against the extracted use lists.
// Prohibition is checked before by-right and conditional permission. When
// lot dimensions are supplied and all three setbacks are numeric, a lot
// with no buildable width or depth is forced to No-Go.
func DeriveFeasibility(facts domain.FactRecord, proposedUse string, lot LotDimensions, match UseMatcher) domain.Feasibility {
	if match == nil {
		match = SubstringMatcher
	}

	result := domain.Feasibility{
		ProposedUse: proposedUse,
		Rating:      domain.RatingCaution,
	}

	switch {
	case matchesAny(match, proposedUse, facts.ProhibitedUses):
		result.Rating = domain.RatingNoGo
		result.Reasons = append(result.Reasons, ReasonProhibited)
	case matchesAny(match, proposedUse, facts.PermittedUses):
		result.Rating = domain.RatingGo
		result.Reasons = append(result.Reasons, ReasonByRight)
	case matchesAny(match, proposedUse, facts.ConditionalUses):
		result.Rating = domain.RatingCaution
		result.Reasons = append(result.Reasons, ReasonConditional)
	default:
		result.Reasons = append(result.Reasons, ReasonUnclear)
	}

	if setbacksConsumeLot(facts, lot) {
		result.Rating = domain.RatingNoGo
		result.Reasons = append(result.Reasons, ReasonSetbacksConsume)
	}
	return result
}

func matchesAny(match UseMatcher, proposedUse string, uses domain.TextList) bool {
	if strings.TrimSpace(proposedUse) == "" {
		return false
	}
	for _, use := range uses {
		if match(proposedUse, use) {
			return true
		}
	}
	return false
}

func setbacksConsumeLot(facts domain.FactRecord, lot LotDimensions) bool {
	width, depth, ok := lot.supplied()
	if !ok {
		return false
	}
	front, okFront := Num(facts.FrontSetbackFt)
	side, okSide := Num(facts.SideSetbackFt)
	rear, okRear := Num(facts.RearSetbackFt)
	if !okFront || !okSide || !okRear {
		return false
	}
	buildableWidth := width - 2*side
	buildableDepth := depth - (front + rear)
	return buildableWidth <= 0 || buildableDepth <= 0
}
