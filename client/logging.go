package client

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LogConfig selects how the client's logger is built.
type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
	Output io.Writer
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

func DebugLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelDebug, Format: "text", Output: os.Stdout}
}

// QuietLogConfig only keeps warnings and failures.
func QuietLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelWarn, Format: "text", Output: os.Stderr}
}

// SuppressedLogConfig discards everything; used by tests.
func SuppressedLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelError + 1, Format: "text", Output: io.Discard}
}

func (lc LogConfig) NewLogger() *slog.Logger {
	out := lc.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: lc.Level}
	if lc.Format == "text" {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// Reporter is the operator-facing sink. Every condition the client detects is
// reported at one of these tiers.
type Reporter interface {
	Success(msg string, args ...any)
	Info(msg string, args ...any)
	Warning(msg string, args ...any)
	Failure(msg string, args ...any)
}

// SlogReporter writes reports through a slog.Logger with a "tier" attribute.
type SlogReporter struct {
	Logger *slog.Logger
}

func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	return &SlogReporter{Logger: logger}
}

func (r *SlogReporter) log(level slog.Level, tier, msg string, args []any) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, msg, append([]any{"tier", tier}, args...)...)
}

func (r *SlogReporter) Success(msg string, args ...any) { r.log(slog.LevelInfo, "success", msg, args) }
func (r *SlogReporter) Info(msg string, args ...any)    { r.log(slog.LevelInfo, "info", msg, args) }
func (r *SlogReporter) Warning(msg string, args ...any) { r.log(slog.LevelWarn, "warning", msg, args) }
func (r *SlogReporter) Failure(msg string, args ...any) { r.log(slog.LevelError, "failure", msg, args) }
