// Package logging configures the global zerolog logger.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger from the environment.
// PORTFOLIO_LOG_LEVEL: debug, info, warn, error (default: info).
// PORTFOLIO_LOG_FORMAT: json for raw JSON lines, anything else for the
// console writer on stderr.
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("PORTFOLIO_LOG_LEVEL")))

	if strings.EqualFold(os.Getenv("PORTFOLIO_LOG_FORMAT"), "json") {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
