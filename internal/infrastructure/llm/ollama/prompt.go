package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
)

const zoningExpertSystemPrompt = `You are a zoning expert who advises commercial real estate developers,
investors and brokers on Nashville Metro zoning.

Keep answers practical for a developer: state what can be built, what it
requires and what could block it. Name code sections and page numbers from
the context, and call out cost or schedule effects when the context supports
them. Never invent a standard that the context does not contain.`

const answerInstructions = `Cover, where the context allows:
1. Zoning district and any overlays
2. Permitted uses
3. Development standards: height, setbacks, lot coverage, parking
4. Special requirements or restrictions
5. Permits, approvals and expected timeline
6. Cost implications
7. Variance, rezoning or special permit opportunities

Use headings and bullet points. Finish with a "Sources:" list of file names and page numbers.`

func buildAnswerPrompt(question string, chunks []domain.ScoredChunk) string {
	var contextBuilder strings.Builder
	for idx, chunk := range chunks {
		source := chunk.Origin
		if chunk.Page > 0 {
			source = fmt.Sprintf("%s p.%d", chunk.Origin, chunk.Page)
		}
		fmt.Fprintf(&contextBuilder, "[%d] %s score=%.3f\n%s\n\n", idx+1, source, chunk.Score, chunk.Text)
	}

	return fmt.Sprintf(`Question:
%s

%s

Context:
%s`, question, answerInstructions, contextBuilder.String())
}
