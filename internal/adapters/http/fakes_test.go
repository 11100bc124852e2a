package httpadapter

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
	"github.com/kirillkom/zoning-feasibility/internal/observability/metrics"
)

type zoningFake struct {
	err        error
	lastQA     ports.QARequest
	lastEnv    ports.EnvelopeRequest
	lastGoNoGo ports.FeasibilityRequest
}

func (f *zoningFake) Answer(_ context.Context, req ports.QARequest) (*domain.Answer, error) {
	f.lastQA = req
	if f.err != nil {
		return nil, f.err
	}
	page := 12
	return &domain.Answer{Text: "Four spaces.", Sources: []domain.Citation{{Origin: "title17.pdf", Page: &page}}}, nil
}

func (f *zoningFake) Snapshot(_ context.Context, address string) (*domain.SnapshotReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SnapshotReport{Address: address, Markdown: "# Zoning Snapshot"}, nil
}

func (f *zoningFake) Envelope(_ context.Context, req ports.EnvelopeRequest) (*domain.EnvelopeReport, error) {
	f.lastEnv = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.EnvelopeReport{Address: req.Address}, nil
}

func (f *zoningFake) GoNoGo(_ context.Context, req ports.FeasibilityRequest) (*domain.FeasibilityReport, error) {
	f.lastGoNoGo = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.FeasibilityReport{
		Feasibility: domain.Feasibility{ProposedUse: req.ProposedUse, Rating: domain.RatingCaution, Reasons: []string{"conditional"}},
		Address:     req.Address,
	}, nil
}

type indexAdminFake struct {
	status  *ports.IndexStatus
	err     error
	reasons []string
}

func (f *indexAdminFake) RequestRebuild(_ context.Context, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *indexAdminFake) Status(context.Context) (*ports.IndexStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

type uploaderFake struct {
	filename string
	body     string
	err      error
}

func (f *uploaderFake) Upload(_ context.Context, filename string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, _ := io.ReadAll(body)
	f.filename = filename
	f.body = string(data)
	return filename, nil
}

type drawFake struct {
	budget, draw string
}

func (f *drawFake) Compare(_ context.Context, budget, draw ports.LedgerFile) (*domain.DrawVariance, error) {
	f.budget = budget.Filename
	f.draw = draw.Filename
	return &domain.DrawVariance{Summary: "No overruns detected."}, nil
}

func newTestHandler(t *testing.T, cfg config.Config, services Services) http.Handler {
	t.Helper()
	handler, err := NewRouter(cfg, services, metrics.NewHTTPServerMetrics("api")).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}
