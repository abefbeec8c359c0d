package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/figsearch/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment" yaml:"environment"` // "development" or "production"
	Figma       FigmaConfig   `toml:"figma" yaml:"figma"`
	Logging     LoggingConfig `toml:"logging" yaml:"logging"`
}

// FigmaConfig contains the backend and session settings of the Figma connector
type FigmaConfig struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`               // Backend origin (default: "https://www.figma.com")
	SessionCookie  string `toml:"session_cookie" yaml:"session_cookie"`   // Name of the cookie carrying the session token
	RequestTimeout string `toml:"request_timeout" yaml:"request_timeout"` // HTTP timeout per request, e.g. "30s"
	LoginQuota     int    `toml:"login_quota" yaml:"login_quota"`         // Max logins per login window
	LoginWindow    string `toml:"login_window" yaml:"login_window"`       // Quota window, e.g. "24h"
	SessionMaxAge  string `toml:"session_max_age" yaml:"session_max_age"` // Reuse a session this long before logging in again (default: login window)

	// Credentials are only read by the command line hosts; the connector receives them through Initialize
	Credentials models.FigmaCredentials `toml:"credentials" yaml:"credentials"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level"`             // "debug", "info", "warn", "error"
	Output     []string `toml:"output" yaml:"output"`           // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"` // Time format for logs (default: "15:04:05")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Figma: FigmaConfig{
			BaseURL:        "https://www.figma.com",
			SessionCookie:  "figma.authn",
			RequestTimeout: "30s",
			LoginQuota:     3,     // Logins are expensive and trigger CAPTCHAs when repeated
			LoginWindow:    "24h", // Sessions were observed to live 1-3 days
			SessionMaxAge:  "",    // Empty = same as login window
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. Files ending in .yaml or .yml are read as YAML, everything else as TOML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FIGSEARCH_ENV"); env != "" {
		config.Environment = env
	}

	// Figma configuration
	if baseURL := os.Getenv("FIGSEARCH_FIGMA_BASE_URL"); baseURL != "" {
		config.Figma.BaseURL = baseURL
	}
	if cookie := os.Getenv("FIGSEARCH_FIGMA_SESSION_COOKIE"); cookie != "" {
		config.Figma.SessionCookie = cookie
	}
	if timeout := os.Getenv("FIGSEARCH_FIGMA_REQUEST_TIMEOUT"); timeout != "" {
		config.Figma.RequestTimeout = timeout
	}
	if quota := os.Getenv("FIGSEARCH_FIGMA_LOGIN_QUOTA"); quota != "" {
		if q, err := strconv.Atoi(quota); err == nil && q > 0 {
			config.Figma.LoginQuota = q
		}
	}
	if window := os.Getenv("FIGSEARCH_FIGMA_LOGIN_WINDOW"); window != "" {
		config.Figma.LoginWindow = window
	}
	if maxAge := os.Getenv("FIGSEARCH_FIGMA_SESSION_MAX_AGE"); maxAge != "" {
		config.Figma.SessionMaxAge = maxAge
	}

	// Credentials
	if org := os.Getenv("FIGSEARCH_FIGMA_ORGANIZATION"); org != "" {
		if o, err := strconv.ParseInt(org, 10, 64); err == nil {
			config.Figma.Credentials.Organization = o
		}
	}
	if user := os.Getenv("FIGSEARCH_FIGMA_USER"); user != "" {
		config.Figma.Credentials.User = user
	}
	if password := os.Getenv("FIGSEARCH_FIGMA_PASSWORD"); password != "" {
		config.Figma.Credentials.Password = password
	}

	// Logging configuration
	if level := os.Getenv("FIGSEARCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FIGSEARCH_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, organization int64, user string, logLevel string) {
	// Command-line flags have highest priority
	if organization > 0 {
		config.Figma.Credentials.Organization = organization
	}
	if user != "" {
		config.Figma.Credentials.User = user
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}
