package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective listen address
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Tasker", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Type).
		Str("address", config.Address()).
		Msg("Tasker starting")
}
