// Package logging builds the process-wide slog.Logger from config, mirroring
// the teacher's cmd/bot/main.go handler-selection block (text vs JSON,
// level parsed from the logging config section).
package logging

import (
	"log/slog"
	"os"

	"github.com/tradingctl/controlplane/internal/config"
)

// New builds an slog.Logger writing to stdout, text or JSON per cfg.Format.
func New(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.ParseLevel()}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
