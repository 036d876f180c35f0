package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger. "json" gives machine-readable lines,
// "text" a colored console handler.
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	if level == "" {
		level = "info"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	switch format {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "text":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: "15:04:05",
		})), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
