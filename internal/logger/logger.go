// /internal/logger/logger.go
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/evictbot/playerlink/internal/config"
)

// New builds the root logger: human console output on stderr, plus a rotated
// JSON file when LOG_FILE is set. Component loggers hang off this one via
// .With().Str("component", ...).
func New(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}

	var out io.Writer = console
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a discard logger for tests and optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
