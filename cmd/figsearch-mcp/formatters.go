package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/figsearch/internal/interfaces"
	"github.com/ternarybob/figsearch/internal/models"
)

// formatSearchResults formats search results as markdown
func formatSearchResults(query string, results []models.SearchResult, total int, transformer interfaces.TransformService, baseURL string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Figma results for \"%s\" (%d of %d results)\n\n", query, len(results), total))

	if len(results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, r.Title))
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", r.URL))

		if r.Snippet != "" {
			snippet, err := transformer.HTMLToMarkdown(r.Snippet, baseURL)
			if err != nil || snippet == "" {
				snippet = transformer.PlainText(r.Snippet)
			}
			sb.WriteString("\n")
			sb.WriteString(snippet)
			sb.WriteString("\n")
		}
		sb.WriteString("\n---\n\n")
	}

	return sb.String()
}
