package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchFigmaTool returns the search_figma tool definition
func createSearchFigmaTool() mcp.Tool {
	return mcp.NewTool("search_figma",
		mcp.WithDescription("Search Figma files, projects and teams of the configured organization"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text, matched by Figma relevancy"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 20, max: 100)"),
		),
	)
}

// createResetSessionTool returns the reset_figma_session tool definition
func createResetSessionTool() mcp.Tool {
	return mcp.NewTool("reset_figma_session",
		mcp.WithDescription("Discard the current Figma session so the next search logs in again"),
	)
}
