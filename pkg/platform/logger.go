// Package platform provides process-level helpers shared by the CLI and the API server:
// logging, environment configuration, HTTP fetching and request authentication.
package platform

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger on stderr, leaving stdout to command output.
// pretty selects the human-readable console writer instead of JSON lines.
func InitLogger(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return log.Logger
}

// LogFatal logs err and exits
func LogFatal(msg string, err error) {
	log.Fatal().Err(err).Msg(msg)
}
