package main

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogger points the global logger at w, as JSON lines or as console
// output depending on format.
func setupLogger(format, level string, w io.Writer) {
	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(out).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Logger()
}

// parseLogLevel accepts zerolog level names and "warning". Unknown names
// select debug.
func parseLogLevel(name string) zerolog.Level {
	name = strings.ToLower(name)
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		log.Warn().Str("level", name).Msg("unknown log level, using debug")
		return zerolog.DebugLevel
	}
	return level
}
