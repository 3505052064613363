package ai

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const systemPrompt = `You answer questions using only the numbered context passages provided.
If the passages do not contain the answer, say that the documents do not cover it.
Cite passages by their number in square brackets, for example [2].`

// buildUserPrompt numbers sources from 1 in relevance order
func buildUserPrompt(query string, sources []*domain.Source) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "\n[%d] %s (relevance %.2f)\n%s\n", i+1, s.DocumentName, s.Score, s.ChunkText)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

const suggestSystemPrompt = `You suggest related questions based on the documents available.
Write 3 to 5 short questions the user could ask next, one per line, numbered.
Do not add any other text.`

// Suggestions are sampled warmer and shorter than answers
const (
	suggestTemperature = 0.8
	suggestMaxTokens   = 200
)

func buildSuggestPrompt(query string, filenames []string) string {
	return fmt.Sprintf("Available documents: %s\n\nOriginal question: %s\n\nRelated questions:",
		strings.Join(filenames, ", "), query)
}
