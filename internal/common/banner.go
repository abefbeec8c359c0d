package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the resolved backend settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("figsearch", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("base_url", config.Figma.BaseURL).
		Int("login_quota", config.Figma.LoginQuota).
		Str("login_window", config.Figma.LoginWindow).
		Msg("Configuration loaded")
}
