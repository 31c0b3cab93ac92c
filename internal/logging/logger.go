// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv names the environment variable holding the log level.
const LevelEnv = "MINIPAINT_LOG_LEVEL"

// Init initializes the global logger: console output on stderr, level from
// MINIPAINT_LOG_LEVEL (debug, info, warn, error; default info). A non-empty
// override, such as a --log-level flag, wins over the environment.
func Init(override string) {
	level := override
	if level == "" {
		level = os.Getenv(LevelEnv)
	}
	InitWriter(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

// InitWriter is Init with an explicit writer, for JSON output or tests.
func InitWriter(w io.Writer, level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level; unknown names are info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
