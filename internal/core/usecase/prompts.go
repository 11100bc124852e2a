package usecase

import (
	"fmt"
	"strings"
)

const developerAnalysisPrompt = `You are advising a commercial real estate developer on a property.

Address: %s
Zoning district: %s
Zoning code excerpts:
%s

Write a developer analysis with these sections, using only the excerpts above.
When the excerpts do not cover a point, write "Not specified in retrieved code".

## Zoning Overview
Primary district, overlay districts, zoning map reference.

## Permitted Uses
By right, conditional, prohibited.

## Development Standards
Maximum height in feet and stories, front/side/rear setbacks, lot coverage,
floor area ratio, parking requirements.

## Special Requirements
Design standards, landscaping and buffers, accessibility, stormwater and
tree protection.

## Development Process
Permits, approval timeline, public hearings, fees.

## Cost Implications
Development fees, off-site infrastructure, mitigation.

## Development Opportunities
Variance potential, rezoning options, incentive programs.

## Risks
Development challenges, neighborhood concerns, timeline risks.

Finish with "Sources:" listing document names and page numbers.`

const useAnalysisPrompt = `Assess the zoning requirements for a %s project.

Address: %s
Zoning district: %s
Zoning code excerpts:
%s

Cover use permission and required approvals, site requirements (minimum lot
size, access, utilities), building standards for this use (height, setbacks,
parking), operating requirements such as hours, signage and loading,
compatibility with neighboring uses, the permit process with its timeline, and
costs specific to this use. Give actionable guidance and cite code sections.`

const varianceAnalysisPrompt = `Assess the prospects for zoning variances at this property.

Address: %s
Current zoning: %s
Proposed development: %s
Variances under consideration: %s
Zoning code excerpts:
%s

Evaluate which variances are needed, the legal criteria for approval, the
approval steps and timeline, factors for and against approval, alternative
approaches to the same development goals, application cost and timeline, and
the risk of denial. Cite the code sections that govern variance procedures.`

const overlayQuery = "overlay districts Urban Design Overlay Historic Overlay floodplain TOD Neighborhood Conservation standards"

const overlaySummaryPrompt = `Summarize what these overlay districts mean for development: %s.
Focus on approvals, design standards and common conditions. Keep it concise and
cite the excerpts where they apply.

Context:
%s`

func buildDeveloperAnalysisQuery(address, district, proposedUse string, includeVariance bool) string {
	parts := []string{
		"Address: " + address,
		"Zoning District: " + district,
		"Comprehensive developer analysis including:",
		"- Permitted uses and development standards",
		"- Height, setback, and parking requirements",
		"- Development process and timeline",
		"- Cost implications and fees",
		"- Development opportunities and risks",
	}
	if proposedUse != "" {
		parts = append(parts,
			"Proposed Use: "+proposedUse,
			"- Specific requirements for this use type",
			"- Approval process and timeline",
		)
	}
	if includeVariance {
		parts = append(parts,
			"- Variance potential and process",
			"- Alternative development approaches",
		)
	}
	return strings.Join(parts, " ")
}

func buildDeveloperAnalysisPrompt(address, district string, snippets []string) string {
	return fmt.Sprintf(developerAnalysisPrompt, address, district, strings.Join(snippets, "\n\n"))
}

func buildUseAnalysisPrompt(useType, address, district string, snippets []string) string {
	return fmt.Sprintf(useAnalysisPrompt, useType, address, district, strings.Join(snippets, "\n\n"))
}

func buildVarianceAnalysisPrompt(address, district, proposedUse string, varianceTypes []string, snippets []string) string {
	types := "not specified"
	if len(varianceTypes) > 0 {
		types = strings.Join(varianceTypes, ", ")
	}
	return fmt.Sprintf(varianceAnalysisPrompt, address, district, proposedUse, types, strings.Join(snippets, "\n\n"))
}

func buildOverlaySummaryPrompt(names []string, snippets []string) string {
	listed := "(none detected)"
	if len(names) > 0 {
		listed = strings.Join(names, ", ")
	}
	return fmt.Sprintf(overlaySummaryPrompt, listed, strings.Join(snippets, "\n\n"))
}
