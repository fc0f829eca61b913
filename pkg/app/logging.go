package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/security"
)

// ParseLevel maps debug, info, warn and error to a slog level. An empty
// string is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w. Records pass through
// the redactor before they are formatted.
func NewLogger(w io.Writer, cfg config.LogConfig, override *slog.Level, redactor *security.Redactor) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if override != nil {
		level = *override
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		inner = slog.NewTextHandler(w, opts)
	case "json":
		inner = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format %q must be text or json", cfg.Format)
	}

	if redactor == nil {
		return slog.New(inner), nil
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}
