package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. An explicit level wins over the
// environment default (info in production, debug elsewhere).
func Setup(env, level string, pretty bool) {
	lvl := zerolog.DebugLevel
	if env == "production" {
		lvl = zerolog.InfoLevel
	}
	if level = strings.TrimSpace(level); level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
