// Package rag composes retrieval-augmented-generation context from
// similarity search results.
package rag

import (
	"fmt"
	"strings"

	"github.com/ivanshamaev/rag-hh/internal/model"
)

const separator = "\n\n---\n\n"

// Source is a lightweight citation pointing back to the original listing.
type Source struct {
	Name       string  `json:"name"`
	URL        *string `json:"url"`
	Similarity float64 `json:"similarity"`
}

// BuildContext renders results as numbered context blocks for an LLM
// prompt and returns a parallel list of source citations.
func BuildContext(results []model.SearchResult) (string, []Source) {
	blocks := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))

	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[Вакансия %d] %s", i+1, r.Name)
		if r.EmployerName != nil && *r.EmployerName != "" {
			fmt.Fprintf(&b, " — %s", *r.EmployerName)
		}
		if r.AreaName != nil && *r.AreaName != "" {
			fmt.Fprintf(&b, " (%s)", *r.AreaName)
		}
		if r.Description != "" {
			b.WriteString("\n")
			b.WriteString(r.Description)
		}
		blocks = append(blocks, b.String())

		sources = append(sources, Source{
			Name:       r.Name,
			URL:        r.URL,
			Similarity: r.Similarity,
		})
	}

	return strings.Join(blocks, separator), sources
}
