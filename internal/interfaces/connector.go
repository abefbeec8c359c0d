package interfaces

import (
	"context"

	"github.com/ternarybob/figsearch/internal/models"
)

// SearchConnector is the contract a search host consumes from every connector
type SearchConnector interface {
	// Identifier returns the stable connector id
	Identifier() string
	// Search runs the query and returns display-ready results
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// FigmaConnector defines specific operations for Figma
type FigmaConnector interface {
	SearchConnector
	// Initialize must succeed before Search is called
	Initialize(ctx context.Context, creds models.FigmaCredentials) error
	// InvalidateSession forces a fresh login on the next search
	InvalidateSession()
}
