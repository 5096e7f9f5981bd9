package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger on stdout.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

// newLogger emits JSON when LOG_FORMAT=json and text otherwise. Source
// locations are attached outside production only.
func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = &Config{AppEnv: "development"}
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel, AddSource: !cfg.IsProduction()}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(
		slog.String("service", "hotelops"),
		slog.String("env", cfg.AppEnv),
	)
}
