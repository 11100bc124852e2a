package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

const (
	lineItemColumn = "lineitem"
	amountColumn   = "amount"
)

// Reader parses LineItem/Amount sheets from CSV or XLSX uploads. XLSX input
// uses the first worksheet.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Read(_ context.Context, filename string, body io.Reader) ([]domain.LedgerLine, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", "":
		rows, err = readCSV(body)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(body)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "read ledger", fmt.Errorf("unsupported ledger file %q", filename))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read ledger "+filename, err)
	}

	lines, err := parseRows(rows)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read ledger "+filename, err)
	}
	return lines, nil
}

func readCSV(body io.Reader) ([][]string, error) {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(body io.Reader) ([][]string, error) {
	book, err := excelize.OpenReader(body)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = book.Close()
	}()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func parseRows(rows [][]string) ([]domain.LedgerLine, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty sheet")
	}

	itemCol, amountCol := -1, -1
	for i, header := range rows[0] {
		switch normalizeHeader(header) {
		case lineItemColumn:
			itemCol = i
		case amountColumn:
			amountCol = i
		}
	}
	if itemCol < 0 || amountCol < 0 {
		return nil, errors.New("header must contain LineItem and Amount columns")
	}

	lines := make([]domain.LedgerLine, 0, len(rows)-1)
	for n, row := range rows[1:] {
		item := strings.TrimSpace(cell(row, itemCol))
		if item == "" {
			continue
		}
		amount, err := parseAmount(cell(row, amountCol))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		lines = append(lines, domain.LedgerLine{LineItem: item, Amount: amount})
	}
	return lines, nil
}

// parseAmount accepts currency formatting ("$1,250.00", "(300)") and treats
// an empty cell as zero.
func parseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "").Replace(s)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
