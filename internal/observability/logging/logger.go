package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type options struct {
	writer  io.Writer
	version string
}

type Option func(*options)

// WithWriter redirects output. The MCP server needs stderr because stdout
// carries the protocol.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// NewJSONLogger writes JSON records tagged with the service name (and the
// build version when set) to stdout unless WithWriter says otherwise.
func NewJSONLogger(service, level string, opts ...Option) *slog.Logger {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	handler := slog.NewJSONHandler(o.writer, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger := slog.New(handler).With("service", service)
	if o.version != "" {
		logger = logger.With("version", o.version)
	}
	return logger
}

// Discard returns a logger that drops every record, for surfaces that own
// the terminal.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func ParseLevel(level string) slog.Level {
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
