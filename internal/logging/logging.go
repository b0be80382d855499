package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a structured logger writing to stdout.
// level: "debug", "info", "warn", "error" (defaults to info if invalid)
// format: "json" for JSON output, anything else for human-readable text
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GormLogger routes GORM's query log into slog at debug level.
type GormLogger struct {
	Logger *slog.Logger
}

func (l GormLogger) Print(values ...interface{}) {
	if len(values) == 0 {
		return
	}
	kind, _ := values[0].(string)
	if kind == "sql" && len(values) >= 6 {
		l.Logger.Debug("gorm query", "source", values[1], "duration", values[2], "sql", values[3], "rows", values[5])
		return
	}
	l.Logger.Debug("gorm", "values", values)
}
