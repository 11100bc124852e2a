package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

func newEnvelopeCommand(deps Dependencies) *cobra.Command {
	var req ports.EnvelopeRequest

	cmd := &cobra.Command{
		Use:   "envelope",
		Short: "Derive the building envelope for a lot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireDependency(deps.Zoning != nil, "zoning service"); err != nil {
				return err
			}
			report, err := deps.Zoning.Envelope(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("envelope: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&req.Address, "address", "", "site address")
	cmd.Flags().Float64Var(&req.LotWidthFt, "width", 0, "lot width in feet")
	cmd.Flags().Float64Var(&req.LotDepthFt, "depth", 0, "lot depth in feet")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("depth")
	return cmd
}

func newGoNoGoCommand(deps Dependencies) *cobra.Command {
	var (
		address     string
		proposedUse string
		width       float64
		depth       float64
	)

	cmd := &cobra.Command{
		Use:   "go-no-go",
		Short: "Rate a proposed use as Go, Caution or No-Go",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireDependency(deps.Zoning != nil, "zoning service"); err != nil {
				return err
			}
			req := ports.FeasibilityRequest{Address: address, ProposedUse: proposedUse}
			if cmd.Flags().Changed("width") {
				req.LotWidthFt = &width
			}
			if cmd.Flags().Changed("depth") {
				req.LotDepthFt = &depth
			}

			report, err := deps.Zoning.GoNoGo(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("go-no-go: %w", err)
			}
			printFeasibility(cmd, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "site address")
	cmd.Flags().StringVar(&proposedUse, "use", "", "proposed use")
	cmd.Flags().Float64Var(&width, "width", 0, "lot width in feet (optional)")
	cmd.Flags().Float64Var(&depth, "depth", 0, "lot depth in feet (optional)")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("use")
	return cmd
}

func printFeasibility(cmd *cobra.Command, report *domain.FeasibilityReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", report.ProposedUse, report.Rating)
	for _, reason := range report.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
	if len(report.Sources) > 0 {
		fmt.Fprintln(out, "Sources:")
		for _, source := range report.Sources {
			if source.Page != nil {
				fmt.Fprintf(out, "  - %s, p.%d\n", source.Origin, *source.Page)
				continue
			}
			fmt.Fprintf(out, "  - %s\n", source.Origin)
		}
	}
}

func newDrawVarianceCommand(deps Dependencies) *cobra.Command {
	var budgetPath, drawPath string

	cmd := &cobra.Command{
		Use:   "draw-variance",
		Short: "Compare a construction draw with its budget",
		Long:  "Both files are CSV or XLSX sheets with LineItem and Amount columns.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireDependency(deps.Draw != nil, "draw variance"); err != nil {
				return err
			}
			budget, err := os.Open(budgetPath)
			if err != nil {
				return fmt.Errorf("open budget: %w", err)
			}
			defer budget.Close()
			draw, err := os.Open(drawPath)
			if err != nil {
				return fmt.Errorf("open draw: %w", err)
			}
			defer draw.Close()

			result, err := deps.Draw.Compare(cmd.Context(),
				ports.LedgerFile{Filename: filepath.Base(budgetPath), Body: budget},
				ports.LedgerFile{Filename: filepath.Base(drawPath), Body: draw},
			)
			if err != nil {
				return fmt.Errorf("draw variance: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&budgetPath, "budget", "", "budget sheet (CSV or XLSX)")
	cmd.Flags().StringVar(&drawPath, "draw", "", "draw sheet (CSV or XLSX)")
	_ = cmd.MarkFlagRequired("budget")
	_ = cmd.MarkFlagRequired("draw")
	return cmd
}

func newFetchURLCommand(deps Dependencies) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "fetch-url [url]",
		Short: "Store a text snapshot of a web page in the documents directory",
		Long: `Downloads the page, keeps the visible text of headings, paragraphs, list
items and table cells, and saves it as a .txt document. Run build-index
--force afterwards to include it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDependency(deps.Fetcher != nil && deps.Storage != nil, "fetcher and storage"); err != nil {
				return err
			}
			url := args[0]
			text, err := deps.Fetcher.Snapshot(cmd.Context(), url)
			if err != nil {
				return err
			}

			key := snapshotKey(url, name)
			body := text + "\n\n[Source] " + url + "\n"
			if err := deps.Storage.Save(cmd.Context(), key, strings.NewReader(body)); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved HTML snapshot: %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "file name for the snapshot (default derived from the URL)")
	return cmd
}

// snapshotKey names the stored snapshot after the last URL path segment.
func snapshotKey(url, name string) string {
	if name == "" {
		trimmed := strings.TrimRight(strings.SplitN(url, "?", 2)[0], "/")
		name = trimmed[strings.LastIndex(trimmed, "/")+1:]
		if name == "" || strings.Contains(name, ":") {
			name = "download"
		}
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String() + ".txt"
}
