package interfaces

// TransformService renders HTML snippets for text-only hosts
type TransformService interface {
	// HTMLToMarkdown converts HTML content to markdown
	// baseURL is used for resolving relative links
	HTMLToMarkdown(html string, baseURL string) (string, error)

	// PlainText returns the visible text of an HTML fragment
	PlainText(html string) string
}
