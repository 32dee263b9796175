// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog"
)

// Config selects where and how logs are written.
type Config struct {
	Format string
	Level  int
	// Output defaults to stderr.
	Output io.Writer
}

// New builds a logger from cfg. Format is either "text" or "json"; Level uses
// zerolog's numeric levels (-1 trace, 0 debug, 1 info, ...).
func New(cfg Config) (zerolog.Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var output io.Writer
	switch cfg.Format {
	case "json":
		output = out
	case "text", "":
		output = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    true,
			TimeFormat: time.RFC3339,
			PartsOrder: []string{
				zerolog.LevelFieldName,
				zerolog.TimestampFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
			FormatFieldName:  func(i interface{}) string { return fmt.Sprintf("%s:", i) },
			FormatFieldValue: func(i interface{}) string { return fmt.Sprintf("%s", i) },
		}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q, expected 'text' or 'json'", cfg.Format)
	}

	return zerolog.New(output).Level(zerolog.Level(cfg.Level)).With().Caller().Timestamp().Logger(), nil
}

// Install makes logger the default for zerolog.Ctx and for log/slog.
func Install(logger zerolog.Logger) {
	zerolog.DefaultContextLogger = &logger

	slogLevel := slog.LevelDebug
	switch logger.GetLevel() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		slogLevel = slog.LevelDebug
	case zerolog.InfoLevel:
		slogLevel = slog.LevelInfo
	case zerolog.WarnLevel:
		slogLevel = slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		slogLevel = slog.LevelError
	}

	slog.SetDefault(slog.New(slogzerolog.Option{Level: slogLevel, Logger: &logger}.NewZerologHandler()))
}
