package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/figsearch/internal/common"
	"github.com/ternarybob/figsearch/internal/figma"
	"github.com/ternarybob/figsearch/internal/services/transform"
)

func main() {
	configPath := os.Getenv("FIGSEARCH_CONFIG")
	if configPath == "" {
		configPath = "figsearch.toml"
	}

	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	connector := figma.NewConnector(config.Figma, logger)
	if err := connector.Initialize(context.Background(), config.Figma.Credentials); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Figma connector")
	}

	transformer := transform.NewService(logger)

	mcpServer := server.NewMCPServer(
		"figsearch",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchFigmaTool(), handleSearchFigma(connector, transformer, config.Figma.BaseURL, logger))
	mcpServer.AddTool(createResetSessionTool(), handleResetSession(connector, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
