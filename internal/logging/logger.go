package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON slog logger shared by the API server and the
// event consumer. Every line carries a service attribute so the two
// processes can be told apart in a merged log stream.
func NewLogger(service, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", service)
}

// parseLevel is forgiving: anything unrecognized, including the empty
// string, means info.
func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
