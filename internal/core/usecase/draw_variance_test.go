package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

type ledgerReaderFake struct {
	sheets map[string][]domain.LedgerLine
	err    error
}

func (f *ledgerReaderFake) Read(_ context.Context, filename string, _ io.Reader) ([]domain.LedgerLine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sheets[filename], nil
}

func ledgerFile(name string) ports.LedgerFile {
	return ports.LedgerFile{Filename: name, Body: strings.NewReader("")}
}

func TestCompareReportsSortedOverruns(t *testing.T) {
	reader := &ledgerReaderFake{sheets: map[string][]domain.LedgerLine{
		"budget.csv": {
			{LineItem: "Framing", Amount: 1000},
			{LineItem: "Concrete", Amount: 500},
			{LineItem: "Roofing", Amount: 800},
		},
		"draw.csv": {
			{LineItem: "Framing", Amount: 700},
			{LineItem: "Framing", Amount: 450},
			{LineItem: "Concrete", Amount: 400},
			{LineItem: "Change Order", Amount: 250},
		},
	}}
	uc := NewDrawVarianceUseCase(reader)

	got, err := uc.Compare(context.Background(), ledgerFile("budget.csv"), ledgerFile("draw.csv"))
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if len(got.Overruns) != 2 {
		t.Fatalf("expected 2 overruns, got %+v", got.Overruns)
	}
	if got.Overruns[0].LineItem != "Change Order" || got.Overruns[0].Budget != 0 || got.Overruns[0].Variance != 250 {
		t.Fatalf("unexpected first overrun %+v", got.Overruns[0])
	}
	if got.Overruns[1].LineItem != "Framing" || got.Overruns[1].Draw != 1150 || got.Overruns[1].Variance != 150 {
		t.Fatalf("expected summed framing draw, got %+v", got.Overruns[1])
	}
	want := "Overruns (LineItem, Budget, Draw, Variance):\nChange Order, 0.00, 250.00, 250.00\nFraming, 1000.00, 1150.00, 150.00"
	if got.Summary != want {
		t.Fatalf("unexpected summary:\n%s", got.Summary)
	}
}

func TestCompareWithoutOverruns(t *testing.T) {
	reader := &ledgerReaderFake{sheets: map[string][]domain.LedgerLine{
		"budget.csv": {{LineItem: "Framing", Amount: 1000}},
		"draw.csv":   {{LineItem: "Framing", Amount: 1000}},
	}}
	got, err := NewDrawVarianceUseCase(reader).Compare(context.Background(), ledgerFile("budget.csv"), ledgerFile("draw.csv"))
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if got.Summary != noOverrunsSummary || len(got.Overruns) != 0 {
		t.Fatalf("expected no overruns, got %+v", got)
	}
}

func TestCompareWrapsReaderError(t *testing.T) {
	errSheet := domain.WrapError(domain.ErrInvalidInput, "read ledger", errors.New("missing Amount column"))
	uc := NewDrawVarianceUseCase(&ledgerReaderFake{err: errSheet})

	_, err := uc.Compare(context.Background(), ledgerFile("budget.csv"), ledgerFile("draw.csv"))
	if !domain.IsKind(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "read budget") {
		t.Fatalf("expected wrapped invalid input, got %v", err)
	}
}
