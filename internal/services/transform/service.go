package transform

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figsearch/internal/interfaces"
)

// Service converts connector HTML snippets into markdown or plain text
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts HTML content to markdown
// baseURL is used for resolving relative links
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if html == "" {
		return "", nil
	}

	mdConverter := md.NewConverter(baseURL, true, nil)
	converted, err := mdConverter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return s.PlainText(html), nil
	}

	trimmed := strings.TrimSpace(converted)
	if trimmed == "" {
		s.logger.Debug().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, applying fallback")
		return s.PlainText(html), nil
	}

	return trimmed, nil
}

// PlainText returns the visible text of an HTML fragment with line breaks
// turned into spaces and whitespace collapsed
func (s *Service) PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse HTML fragment")
		return strings.TrimSpace(html)
	}

	doc.Find("br").ReplaceWithHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var _ interfaces.TransformService = (*Service)(nil)
