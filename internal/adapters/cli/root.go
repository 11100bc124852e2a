// Package cli exposes the zoning use cases as zoningctl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
)

// PageFetcher reduces a web page to its visible text.
type PageFetcher interface {
	Snapshot(ctx context.Context, url string) (string, error)
}

type Dependencies struct {
	Builder   ports.IndexBuilder
	Retriever ports.Retriever
	Extractor ports.FactExtractor
	Zoning    ports.ZoningService
	Draw      ports.DrawVarianceService
	Fetcher   PageFetcher
	Storage   ports.ObjectStorage
	TopK      int
}

func NewRootCommand(deps Dependencies) *cobra.Command {
	if deps.TopK <= 0 {
		deps.TopK = 6
	}

	root := &cobra.Command{
		Use:           "zoningctl",
		Short:         "Zoning feasibility over a local code library",
		Long:          "zoningctl builds the chunk index from the documents directory and answers zoning questions against it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newBuildIndexCommand(deps),
		newQueryCommand(deps),
		newExtractCommand(deps),
		newEnvelopeCommand(deps),
		newGoNoGoCommand(deps),
		newDrawVarianceCommand(deps),
		newFetchURLCommand(deps),
	)
	return root
}

func printJSON(w io.Writer, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func requireDependency(present bool, name string) error {
	if !present {
		return fmt.Errorf("%s not configured", name)
	}
	return nil
}
