package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

func newBuildIndexCommand(deps Dependencies) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Build the chunk index from the documents directory",
		Long: `Reads every PDF, text and HTML document, splits and embeds it and stores
the chunks. Without --force an existing index is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireDependency(deps.Builder != nil, "index builder"); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				built, err := deps.Builder.EnsureBuilt(cmd.Context())
				if err != nil {
					return fmt.Errorf("build index: %w", err)
				}
				if !built {
					fmt.Fprintln(out, "Index already built; use --force to rebuild.")
					return nil
				}
				fmt.Fprintln(out, "Index built.")
				return nil
			}

			build, err := deps.Builder.Rebuild(cmd.Context(), "zoningctl build-index --force")
			if err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}
			fmt.Fprintf(out, "Index rebuilt: %d documents, %d chunks, %d skipped.\n", build.Documents, build.Chunks, build.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even when an index exists")
	return cmd
}

func newQueryCommand(deps Dependencies) *cobra.Command {
	var (
		k      int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Show the chunks most similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDependency(deps.Retriever != nil, "retriever"); err != nil {
				return err
			}
			if k <= 0 {
				k = deps.TopK
			}
			chunks, err := deps.Retriever.Retrieve(cmd.Context(), args[0], k)
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), chunks)
			}
			printChunks(cmd, chunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of chunks (default RAG_TOP_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output chunks as JSON")
	return cmd
}

func printChunks(cmd *cobra.Command, chunks []domain.ScoredChunk) {
	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		fmt.Fprintln(out, "No chunks found.")
		return
	}
	for i, chunk := range chunks {
		location := chunk.Origin
		if chunk.Page > 0 {
			location = fmt.Sprintf("%s p.%d", chunk.Origin, chunk.Page)
		}
		fmt.Fprintf(out, "[%d] %s (%.3f)\n", i+1, location, chunk.Score)
		fmt.Fprintf(out, "    %s\n\n", preview(chunk.Text, 240))
	}
}

func preview(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

func newExtractCommand(deps Dependencies) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "extract [query]",
		Short: "Extract the zoning fact record for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDependency(deps.Retriever != nil && deps.Extractor != nil, "retriever and extractor"); err != nil {
				return err
			}
			chunks, err := deps.Retriever.Retrieve(cmd.Context(), args[0], k)
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}
			snippets := make([]string, 0, len(chunks))
			for _, chunk := range chunks {
				snippets = append(snippets, chunk.Text)
			}
			result, err := deps.Extractor.Extract(cmd.Context(), snippets)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"facts":   result,
				"sources": domain.CitationsOf(chunks),
			})
		},
	}
	cmd.Flags().IntVar(&k, "k", 5, "number of snippets")
	return cmd
}
