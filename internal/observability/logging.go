// Package observability wires structured logging and request metrics,
// following observability/logging.Setup and
// gateway/middleware.Observability from this codebase's lineage.
package observability

import (
	"io"
	"log"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging configures the default slog logger as JSON with
// service/env attributes, renaming time/level the way
// observability/logging.Setup does, and bridges the stdlib log package
// to the same handler. If logFile is non-empty, output is additionally
// rotated through lumberjack rather than written to stdout alone.
func SetupLogging(service, env, logFile string) *slog.Logger {
	var out io.Writer = os.Stdout
	if logFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.LevelKey:
				a.Key = "severity"
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})

	logger := slog.New(handler).With("service", service, "env", env)
	slog.SetDefault(logger)
	log.SetOutput(slog.NewLogLogger(handler, slog.LevelInfo).Writer())
	return logger
}
