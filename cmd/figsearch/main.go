package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figsearch/internal/common"
	"github.com/ternarybob/figsearch/internal/figma"
	"github.com/ternarybob/figsearch/internal/models"
	"github.com/ternarybob/figsearch/internal/services/transform"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	organization = flag.Int64("org", 0, "Figma organization id (overrides config)")
	user         = flag.String("user", "", "Figma login email (overrides config)")
	format       = flag.String("format", "markdown", "Output format: markdown, text or json")
	logLevel     = flag.String("log-level", "", "Log level (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("figsearch version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: figsearch [flags] <query>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("figsearch.toml"); err == nil {
			configFiles = append(configFiles, "figsearch.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *organization, *user, *logLevel)

	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connector := figma.NewConnector(config.Figma, logger)
	if err := connector.Initialize(ctx, config.Figma.Credentials); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Figma connector")
	}

	results, err := connector.Search(ctx, query)
	if err != nil {
		logger.Fatal().Err(err).Str("query", query).Msg("Search failed")
	}

	out, err := render(results, query, *format, transform.NewService(logger), config.Figma.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to render results")
	}
	fmt.Print(out)
}

func render(results []models.SearchResult, query, format string, transformer *transform.Service, baseURL string) (string, error) {
	var sb strings.Builder

	switch format {
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", err
		}
		sb.Write(data)
		sb.WriteString("\n")
	case "text":
		for _, r := range results {
			sb.WriteString(fmt.Sprintf("%s\t%s\t%s\n", r.Title, r.URL, transformer.PlainText(r.Snippet)))
		}
	case "markdown":
		sb.WriteString(fmt.Sprintf("## Figma results for \"%s\" (%d results)\n\n", query, len(results)))
		for i, r := range results {
			sb.WriteString(fmt.Sprintf("### %d. [%s](%s)\n", i+1, r.Title, r.URL))
			snippet, err := transformer.HTMLToMarkdown(r.Snippet, baseURL)
			if err != nil {
				return "", err
			}
			if snippet != "" {
				sb.WriteString(snippet)
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}

	return sb.String(), nil
}
