// Package logger exposes the relay's process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var levelVar = new(slog.LevelVar)

// L is the shared JSON logger for the whole relay. The webhook and initiation
// handlers derive request-scoped loggers from it with L.With("request_id", ...)
// so one conversation turn can be followed across store, completion and
// carrier log lines.
var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel applies the configured log_level (debug, info, warn, error);
// anything unrecognized falls back to info.
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}
