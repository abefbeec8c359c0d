package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figsearch/internal/interfaces"
)

// handleSearchFigma implements the search_figma tool
func handleSearchFigma(connector interfaces.SearchConnector, transformer interfaces.TransformService, baseURL string, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: query parameter is required"),
				},
			}, nil
		}

		limit := request.GetInt("limit", 20)
		if limit > 100 {
			limit = 100
		}

		results, err := connector.Search(ctx, query)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Figma search failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Search error: %v", err)),
				},
				IsError: true,
			}, nil
		}

		total := len(results)
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatSearchResults(query, results, total, transformer, baseURL)),
			},
		}, nil
	}
}

// handleResetSession implements the reset_figma_session tool
func handleResetSession(connector interfaces.FigmaConnector, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connector.InvalidateSession()
		logger.Info().Msg("Figma session invalidated")
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Figma session discarded; the next search will log in again."),
			},
		}, nil
	}
}
