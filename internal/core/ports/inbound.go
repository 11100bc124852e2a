package ports

import (
	"context"
	"io"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

// IndexBuilder is the inbound contract of the Chunk Store Builder.
type IndexBuilder interface {
	EnsureBuilt(ctx context.Context) (bool, error)
	Rebuild(ctx context.Context, reason string) (*domain.IndexBuild, error)
}

// IndexAdmin reports and schedules index builds.
type IndexAdmin interface {
	RequestRebuild(ctx context.Context, reason string) error
	Status(ctx context.Context) (*IndexStatus, error)
}

type IndexStatus struct {
	Built      bool                  `json:"built"`
	Manifest   *domain.IndexManifest `json:"manifest,omitempty"`
	LastBuild  *domain.IndexBuild    `json:"last_build,omitempty"`
	Collection string                `json:"collection"`
}

// DocumentUploader stores a new source document and schedules a rebuild.
type DocumentUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
}

// Retriever ranks chunks for a natural-language query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}

// FactExtractor turns retrieved snippets into a fact record.
type FactExtractor interface {
	Extract(ctx context.Context, snippets []string) (domain.ExtractionResult, error)
}

type QARequest struct {
	Address  string `json:"address"`
	Question string `json:"question"`
}

type EnvelopeRequest struct {
	Address    string  `json:"address"`
	LotWidthFt float64 `json:"lot_width_ft"`
	LotDepthFt float64 `json:"lot_depth_ft"`
}

type FeasibilityRequest struct {
	Address     string   `json:"address"`
	ProposedUse string   `json:"proposed_use"`
	LotWidthFt  *float64 `json:"lot_width_ft,omitempty"`
	LotDepthFt  *float64 `json:"lot_depth_ft,omitempty"`
}

type DeveloperAnalysisRequest struct {
	Address                 string `json:"address"`
	ProposedUse             string `json:"proposed_use,omitempty"`
	IncludeVarianceAnalysis bool   `json:"include_variance_analysis"`
}

type UseAnalysisRequest struct {
	Address        string `json:"address"`
	UseType        string `json:"use_type"`
	ZoningDistrict string `json:"zoning_district,omitempty"`
}

type VarianceAnalysisRequest struct {
	Address        string   `json:"address"`
	ZoningDistrict string   `json:"zoning_district"`
	ProposedUse    string   `json:"proposed_use"`
	VarianceTypes  []string `json:"variance_types"`
}

// ZoningService answers zoning feasibility questions from the Chunk Index.
type ZoningService interface {
	Answer(ctx context.Context, req QARequest) (*domain.Answer, error)
	Snapshot(ctx context.Context, address string) (*domain.SnapshotReport, error)
	Envelope(ctx context.Context, req EnvelopeRequest) (*domain.EnvelopeReport, error)
	GoNoGo(ctx context.Context, req FeasibilityRequest) (*domain.FeasibilityReport, error)
}

// SiteService combines GIS lookups with retrieval.
type SiteService interface {
	Site(ctx context.Context, address string) (*domain.SiteSummary, error)
	DeveloperAnalysis(ctx context.Context, req DeveloperAnalysisRequest) (*domain.DeveloperAnalysisReport, error)
	UseAnalysis(ctx context.Context, req UseAnalysisRequest) (*domain.UseAnalysisReport, error)
	VarianceAnalysis(ctx context.Context, req VarianceAnalysisRequest) (*domain.VarianceAnalysisReport, error)
	Overlays(ctx context.Context, address string) (*domain.OverlayReport, error)
}

// DrawVarianceService compares a budget with a draw.
type DrawVarianceService interface {
	Compare(ctx context.Context, budget, draw LedgerFile) (*domain.DrawVariance, error)
}

type LedgerFile struct {
	Filename string
	Body     io.Reader
}
