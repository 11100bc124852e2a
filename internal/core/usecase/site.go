package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

const sqftPerAcre = 43560.0

// Candidate attribute names, most specific first.
var (
	lotAcreFields       = []string{"Acres", "DeededAcreage"}
	overlayCodeFields   = []string{"ZONING", "CODE"}
	overlayLabelFields  = []string{"ZONINGNAME", "OVERLAY_NAME", "NAME", "ZONING"}
	overlayNameFields   = []string{"DIST_NAME", "OVERLAY", "NAME", "CODE"}
	floodZoneFields     = []string{"FloodZone", "FLOODZONE"}
	specialFloodHazards = map[string]bool{"A": true, "AE": true, "VE": true, "FW": true}
)

const (
	developerSnippets     = 6
	developerSnippetLen   = 1500
	sourcePreviewLen      = 200
	useAnalysisSnippets   = 4
	useAnalysisSnippetLen = 1500
	overlaySnippets       = 4
	overlaySnippetLen     = 1000

	flagHistoricReview = "Historic/Conservation review likely"
	downtownCodeNote   = "Downtown Code parcel: height and form depend on the sub-district; bonus height program available. See the Downtown Code."
)

type SiteUseCase struct {
	geo       ports.GeoLookup
	retriever ports.Retriever
	extractor ports.FactExtractor
	generator ports.TextGenerator
	now       func() time.Time
}

func NewSiteUseCase(
	geo ports.GeoLookup,
	retriever ports.Retriever,
	extractor ports.FactExtractor,
	generator ports.TextGenerator,
) *SiteUseCase {
	return &SiteUseCase{
		geo:       geo,
		retriever: retriever,
		extractor: extractor,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *SiteUseCase) Site(ctx context.Context, address string) (*domain.SiteSummary, error) {
	if err := requireFields("site summary", map[string]string{"address": address}); err != nil {
		return nil, err
	}

	location, err := uc.geo.Geocode(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("geocode address: %w", err)
	}
	parcel, err := uc.geo.ParcelAt(ctx, location.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("lookup parcel: %w", err)
	}

	var (
		district domain.ZoningDistrict
		overlays []map[string]any
		floods   []map[string]any
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		district, err = uc.geo.ZoningAt(groupCtx, location.Coordinates)
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		var err error
		overlays, err = uc.geo.Overlays(groupCtx, parcel)
		return err
	})
	group.Go(func() error {
		var err error
		floods, err = uc.geo.FloodHazards(groupCtx, parcel)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("lookup parcel layers: %w", err)
	}

	summary := &domain.SiteSummary{
		Address:     address,
		Location:    location,
		District:    district.Code,
		Overlays:    []string{},
		FloodZones:  []string{},
		Flags:       []string{},
		Parcel:      parcel.Attributes,
		RawOverlays: overlays,
	}

	if acres, ok := domain.FirstNumber(parcel.Attributes, lotAcreFields...); ok {
		sqft := acres * sqftPerAcre
		rounded := math.Round(sqft/sqftPerAcre*1000) / 1000
		summary.LotAreaSqft = &sqft
		summary.LotAreaAcres = &rounded
	}

	summary.Overlays = overlayLabels(overlays)
	joined := strings.ToUpper(strings.Join(summary.Overlays, " "))
	if strings.Contains(joined, "HIST") || strings.Contains(joined, "CONSERVATION") || strings.Contains(joined, "NC") {
		summary.Flags = append(summary.Flags, flagHistoricReview)
	}

	for _, flood := range floods {
		zone, ok := domain.FirstAttribute(flood, floodZoneFields...)
		if !ok {
			continue
		}
		zone = strings.ToUpper(zone)
		summary.FloodZones = append(summary.FloodZones, zone)
		if specialFloodHazards[zone] {
			summary.Flags = append(summary.Flags, "Flood Zone "+zone)
		}
	}

	if strings.HasPrefix(strings.ToUpper(district.Code), "DTC") {
		summary.Notes = append(summary.Notes, downtownCodeNote)
	}
	return summary, nil
}

func (uc *SiteUseCase) DeveloperAnalysis(ctx context.Context, req ports.DeveloperAnalysisRequest) (*domain.DeveloperAnalysisReport, error) {
	if err := requireFields("developer analysis", map[string]string{"address": req.Address}); err != nil {
		return nil, err
	}

	location, err := uc.geo.Geocode(ctx, req.Address)
	if err != nil {
		return nil, lookupInputError("developer analysis", "could not geocode address", err)
	}
	district, err := uc.geo.ZoningAt(ctx, location.Coordinates)
	if err == nil && district.Code == "" {
		err = domain.ErrNotFound
	}
	if err != nil {
		return nil, lookupInputError("developer analysis", "could not determine zoning district", err)
	}

	query := buildDeveloperAnalysisQuery(req.Address, district.Code, req.ProposedUse, req.IncludeVarianceAnalysis)
	chunks, facts, err := retrieveAndExtract(ctx, uc.retriever, uc.extractor, query, developerSnippets, developerSnippetLen)
	if err != nil {
		return nil, err
	}

	analysis, err := uc.generator.GenerateText(ctx, buildDeveloperAnalysisPrompt(
		req.Address,
		district.Code,
		snippetsOf(chunks, developerSnippetLen),
	))
	if err != nil {
		return nil, fmt.Errorf("generate developer analysis: %w", err)
	}

	return &domain.DeveloperAnalysisReport{
		Address:          req.Address,
		Coordinates:      location.Coordinates,
		ZoningDistrict:   district.Code,
		ProposedUse:      req.ProposedUse,
		Facts:            facts,
		DetailedAnalysis: analysis,
		Sources:          citationsWithPreview(chunks, sourcePreviewLen),
		AnalyzedAt:       uc.now(),
	}, nil
}

func (uc *SiteUseCase) UseAnalysis(ctx context.Context, req ports.UseAnalysisRequest) (*domain.UseAnalysisReport, error) {
	if err := requireFields("use analysis", map[string]string{
		"address":  req.Address,
		"use_type": req.UseType,
	}); err != nil {
		return nil, err
	}

	district := strings.TrimSpace(req.ZoningDistrict)
	if district == "" {
		district = uc.resolveDistrict(ctx, req.Address)
	}
	if district == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "use analysis", errors.New("could not determine zoning district"))
	}

	query := fmt.Sprintf("%s development requirements %s zoning district", req.UseType, district)
	chunks, err := uc.retriever.Retrieve(ctx, query, useAnalysisSnippets)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	analysis, err := uc.generator.GenerateText(ctx, buildUseAnalysisPrompt(
		req.UseType,
		req.Address,
		district,
		snippetsOf(chunks, useAnalysisSnippetLen),
	))
	if err != nil {
		return nil, fmt.Errorf("generate use analysis: %w", err)
	}

	return &domain.UseAnalysisReport{
		Address:        req.Address,
		UseType:        req.UseType,
		ZoningDistrict: district,
		Analysis:       analysis,
		Sources:        domain.CitationsOf(chunks),
	}, nil
}

func (uc *SiteUseCase) VarianceAnalysis(ctx context.Context, req ports.VarianceAnalysisRequest) (*domain.VarianceAnalysisReport, error) {
	if err := requireFields("variance analysis", map[string]string{
		"address":         req.Address,
		"zoning_district": req.ZoningDistrict,
		"proposed_use":    req.ProposedUse,
	}); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("zoning variance process %s %s", req.ZoningDistrict, req.ProposedUse)
	chunks, err := uc.retriever.Retrieve(ctx, query, useAnalysisSnippets)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	analysis, err := uc.generator.GenerateText(ctx, buildVarianceAnalysisPrompt(
		req.Address,
		req.ZoningDistrict,
		req.ProposedUse,
		req.VarianceTypes,
		snippetsOf(chunks, useAnalysisSnippetLen),
	))
	if err != nil {
		return nil, fmt.Errorf("generate variance analysis: %w", err)
	}

	varianceTypes := req.VarianceTypes
	if varianceTypes == nil {
		varianceTypes = []string{}
	}
	return &domain.VarianceAnalysisReport{
		Address:        req.Address,
		ZoningDistrict: req.ZoningDistrict,
		ProposedUse:    req.ProposedUse,
		VarianceTypes:  varianceTypes,
		Analysis:       analysis,
		Sources:        domain.CitationsOf(chunks),
	}, nil
}

// Overlays summarizes the overlay districts on the parcel. An address or
// parcel that cannot be resolved yields an empty overlay list rather than an
// error.
func (uc *SiteUseCase) Overlays(ctx context.Context, address string) (*domain.OverlayReport, error) {
	if err := requireFields("overlay summary", map[string]string{"address": address}); err != nil {
		return nil, err
	}

	overlays, err := uc.parcelOverlays(ctx, address)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(overlays))
	for _, attrs := range overlays {
		if name, ok := domain.FirstAttribute(attrs, overlayNameFields...); ok {
			names = append(names, name)
		}
	}

	chunks, err := uc.retriever.Retrieve(ctx, overlayQuery, overlaySnippets)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	summary, err := uc.generator.GenerateText(ctx, buildOverlaySummaryPrompt(names, snippetsOf(chunks, overlaySnippetLen)))
	if err != nil {
		return nil, fmt.Errorf("generate overlay summary: %w", err)
	}

	return &domain.OverlayReport{
		Address:          address,
		OverlayNames:     names,
		DetectedOverlays: overlays,
		Summary:          summary,
		Sources:          domain.CitationsOf(chunks),
	}, nil
}

func (uc *SiteUseCase) parcelOverlays(ctx context.Context, address string) ([]map[string]any, error) {
	location, err := uc.geo.Geocode(ctx, address)
	if domain.IsKind(err, domain.ErrNotFound) {
		return []map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geocode address: %w", err)
	}

	parcel, err := uc.geo.ParcelAt(ctx, location.Coordinates)
	if domain.IsKind(err, domain.ErrNotFound) {
		return []map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup parcel: %w", err)
	}

	overlays, err := uc.geo.Overlays(ctx, parcel)
	if err != nil {
		return nil, fmt.Errorf("lookup overlays: %w", err)
	}
	if overlays == nil {
		overlays = []map[string]any{}
	}
	return overlays, nil
}

// resolveDistrict returns "" when the address or its district cannot be
// resolved.
func (uc *SiteUseCase) resolveDistrict(ctx context.Context, address string) string {
	location, err := uc.geo.Geocode(ctx, address)
	if err != nil {
		return ""
	}
	district, err := uc.geo.ZoningAt(ctx, location.Coordinates)
	if err != nil {
		return ""
	}
	return district.Code
}

func overlayLabels(overlays []map[string]any) []string {
	out := make([]string, 0, len(overlays))
	for _, attrs := range overlays {
		if code, ok := domain.FirstAttribute(attrs, overlayCodeFields...); ok {
			out = append(out, code)
			continue
		}
		label, ok := domain.FirstAttribute(attrs, overlayLabelFields...)
		if !ok {
			label = "Overlay"
		}
		out = append(out, label)
	}
	return out
}

func citationsWithPreview(chunks []domain.ScoredChunk, previewLen int) []domain.Citation {
	out := domain.CitationsOf(chunks)
	for i, chunk := range chunks {
		out[i].ContentPreview = truncateRunes(chunk.Text, previewLen) + "..."
	}
	return out
}

// lookupInputError reports a missing GIS match as invalid input; transport
// failures keep their own kind.
func lookupInputError(operation, message string, err error) error {
	if domain.IsKind(err, domain.ErrNotFound) {
		return domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("%s: %v", message, err))
	}
	return fmt.Errorf("%s: %s: %w", operation, message, err)
}
