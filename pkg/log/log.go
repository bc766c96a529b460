// Package log configures the process-wide structured logger and the
// attribution carried by every conversation log line.
package log

import (
	"io"
	"log/slog"
	"os"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup installs the default logger on stderr.
func Setup(logLevel, format string) {
	slog.SetDefault(New(os.Stderr, logLevel, format))
}

// New builds a logger writing to w. Unknown formats fall back to text.
func New(w io.Writer, logLevel, format string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, options))
	}

	return slog.New(slog.NewTextHandler(w, options))
}

// ParseLevel reads debug, info, warn or error, in any case. Anything else is info.
func ParseLevel(logLevel string) slog.Level {
	var level slog.Level

	err := level.UnmarshalText([]byte(logLevel))
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

func WithWorker(logger *slog.Logger, workerID string) *slog.Logger {
	return logger.With("worker_id", workerID)
}

// WithConversation tags a logger with the attribution triple used across the engine.
func WithConversation(logger *slog.Logger, conversationID, flowID, nodeID string) *slog.Logger {
	return logger.With(
		"conversation_id", conversationID,
		"flow_id", flowID,
		"node_id", nodeID,
	)
}
