// Package config loads job and CLI configuration by merging, in order of
// precedence, command flags, environment variables, an optional YAML
// file, and hardcoded defaults — the same flag > env > file > default
// layering as the teacher-adjacent pack's viper setup
// (jackzampolin-shelf/internal/config.Manager), adapted from a
// hot-reloading daemon config to a one-shot CLI job config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/twoLoop-40/problem-cutter/internal/logging"
	"github.com/twoLoop-40/problem-cutter/pkg/imaging"
	"github.com/twoLoop-40/problem-cutter/pkg/ocrengine"
	"github.com/twoLoop-40/problem-cutter/pkg/orchestrator"
)

// envPrefix mirrors jackzampolin-shelf's SHELF_ prefix, renamed for this module.
const envPrefix = "PROBLEMCUTTER"

// Config is the fully resolved configuration for one `extract` run.
// mapstructure tags match the dash-separated flag names verbatim, since
// viper.BindPFlags keys each bound flag by its literal pflag name.
type Config struct {
	PDFPath               string `mapstructure:"pdf"`
	ImagesDir             string `mapstructure:"images-dir"`
	OutDir                string `mapstructure:"out"`
	Strategy              string `mapstructure:"strategy"`
	DPI                   int    `mapstructure:"dpi"`
	MaxRetries            int    `mapstructure:"max-retries"`
	ExpectedProblemCount  int    `mapstructure:"expected-problem-count"`
	RemoteCredentialsFile string `mapstructure:"remote-credentials-file"`
	RemoteLocation        string `mapstructure:"remote-location"`
	RemoteProcessorID     string `mapstructure:"remote-processor-id"`
	LogLevel              string `mapstructure:"log-level"`
	LogFormat             string `mapstructure:"log-format"`
	DebugHOCR             bool   `mapstructure:"debug-hocr"`

	// RemoteCredentials is populated from the literal REMOTE_OCR_APP_ID /
	// REMOTE_OCR_APP_KEY environment names, per spec.md §6 — these two
	// keys deliberately bypass the PROBLEMCUTTER_ prefix every other
	// knob uses.
	RemoteCredentials ocrengine.RemoteCredentials
}

// BindFlags registers the flags shared by every subcommand that runs a
// job, following the teacher CLI's flag-per-knob convention (cmd/pdfocr,
// cmd/gdocai) translated from the standard `flag` package to cobra/pflag.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("pdf", "", "path to the input PDF (rasterized externally per spec)")
	flags.String("images-dir", "", "directory of pre-rasterized page images, bypassing --pdf")
	flags.String("out", "", "output directory for cropped problem images and the manifest")
	flags.String("strategy", string(orchestrator.StrategyLocalThenRemote), "local_only | local_then_remote | manual_fallback")
	flags.Int("dpi", 200, "rasterization DPI hint passed to both OCR engines")
	flags.Int("max-retries", 2, "maximum retry attempts per OCR call")
	flags.Int("expected-problem-count", 0, "expected number of problems per column (0 = infer)")
	flags.String("remote-credentials-file", "", "path to the remote engine's service-account credentials file")
	flags.String("remote-location", "us", "remote engine region/location")
	flags.String("remote-processor-id", "", "remote engine processor ID")
	flags.String("config", "", "optional YAML config file")
	flags.String("log-level", "info", "trace|debug|info|warn|error")
	flags.String("log-format", "console", "console|json")
	flags.Bool("debug-hocr", false, "emit per-column hOCR debug HTML alongside cropped images")
}

// Load resolves Config from cmd's flags, the environment, and an optional
// YAML file, in that precedence order (flag > env > file > default).
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetDefault("strategy", string(orchestrator.StrategyLocalThenRemote))
	v.SetDefault("dpi", 200)
	v.SetDefault("max-retries", 2)
	v.SetDefault("remote-location", "us")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", cfgFile, err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("config: binding flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	// REMOTE_OCR_APP_ID / REMOTE_OCR_APP_KEY are read at their literal
	// names, independent of v's PROBLEMCUTTER_ prefix, per spec.md §6.
	credV := viper.New()
	credV.AutomaticEnv()
	cfg.RemoteCredentials = ocrengine.RemoteCredentials{
		AppID:  credV.GetString("REMOTE_OCR_APP_ID"),
		AppKey: credV.GetString("REMOTE_OCR_APP_KEY"),
	}
	if cfg.RemoteCredentialsFile != "" {
		cfg.RemoteCredentials.AppKey = cfg.RemoteCredentialsFile
	}

	if cfg.PDFPath == "" && cfg.ImagesDir == "" {
		return nil, errors.New("config: one of --pdf or --images-dir is required")
	}

	return &cfg, nil
}

// JobConfig translates the resolved CLI Config into the orchestrator's
// JobConfig, applying spec.md §3's defaults for anything the CLI leaves
// unset.
func (c *Config) JobConfig() orchestrator.JobConfig {
	jc := orchestrator.DefaultJobConfig()
	if c.Strategy != "" {
		jc.Strategy = orchestrator.Strategy(c.Strategy)
	}
	if c.DPI > 0 {
		jc.DPI = c.DPI
	}
	jc.MaxRetries = c.MaxRetries
	jc.ExpectedProblemCount = c.ExpectedProblemCount
	jc.OutputFormat = imaging.PNG
	jc.PerJobDeadline = 10 * time.Minute
	jc.DebugHOCR = c.DebugHOCR
	return jc
}

// LoggingConfig translates the CLI's log flags into internal/logging's
// Config.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}
