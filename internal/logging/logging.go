// Package logging sets up the process-wide zerolog logger used by every
// package in this module, following the console/JSON dual-format setup
// from lh0x0-tax-ai-tools's logger package.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the global logger's verbosity and rendering.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json, console
}

// DefaultConfig returns sensible defaults for interactive CLI use.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

// Setup installs the global zerolog logger per cfg. Call once from main.
func Setup(cfg Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var out zerolog.ConsoleWriter
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return nil
	}

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	return nil
}

// For returns a logger scoped to a pipeline component (e.g. "layout",
// "orchestrator", "ocrengine.local"), matching the component-tagging
// convention used throughout the retrieval pack's logging helpers.
func For(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// WithJob returns a logger tagged with a job ID, for per-job log lines.
func WithJob(jobID string) zerolog.Logger {
	return log.Logger.With().Str("job_id", jobID).Logger()
}
