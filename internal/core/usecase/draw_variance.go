package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

const noOverrunsSummary = "No overruns detected."

type DrawVarianceUseCase struct {
	reader ports.LedgerReader
}

func NewDrawVarianceUseCase(reader ports.LedgerReader) *DrawVarianceUseCase {
	return &DrawVarianceUseCase{reader: reader}
}

// Compare joins the budget and the draw on line item. Missing amounts count
// as zero and repeated line items are summed. Rows where the draw exceeds the
// budget are overruns, sorted by line item.
func (uc *DrawVarianceUseCase) Compare(ctx context.Context, budget, draw ports.LedgerFile) (*domain.DrawVariance, error) {
	budgetLines, err := uc.reader.Read(ctx, budget.Filename, budget.Body)
	if err != nil {
		return nil, fmt.Errorf("read budget: %w", err)
	}
	drawLines, err := uc.reader.Read(ctx, draw.Filename, draw.Body)
	if err != nil {
		return nil, fmt.Errorf("read draw: %w", err)
	}

	budgetTotals := sumByLineItem(budgetLines)
	drawTotals := sumByLineItem(drawLines)

	items := make(map[string]struct{}, len(budgetTotals)+len(drawTotals))
	for item := range budgetTotals {
		items[item] = struct{}{}
	}
	for item := range drawTotals {
		items[item] = struct{}{}
	}

	overruns := make([]domain.Overrun, 0)
	for item := range items {
		variance := drawTotals[item] - budgetTotals[item]
		if variance <= 0 {
			continue
		}
		overruns = append(overruns, domain.Overrun{
			LineItem: item,
			Budget:   budgetTotals[item],
			Draw:     drawTotals[item],
			Variance: variance,
		})
	}
	sort.Slice(overruns, func(i, j int) bool {
		return overruns[i].LineItem < overruns[j].LineItem
	})

	return &domain.DrawVariance{
		Overruns: overruns,
		Summary:  summarizeOverruns(overruns),
	}, nil
}

func sumByLineItem(lines []domain.LedgerLine) map[string]float64 {
	out := make(map[string]float64, len(lines))
	for _, line := range lines {
		out[line.LineItem] += line.Amount
	}
	return out
}

func summarizeOverruns(overruns []domain.Overrun) string {
	if len(overruns) == 0 {
		return noOverrunsSummary
	}

	var b strings.Builder
	b.WriteString("Overruns (LineItem, Budget, Draw, Variance):")
	for _, row := range overruns {
		fmt.Fprintf(&b, "\n%s, %s, %s, %s",
			row.LineItem,
			formatAmount(row.Budget),
			formatAmount(row.Draw),
			formatAmount(row.Variance),
		)
	}
	return b.String()
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
