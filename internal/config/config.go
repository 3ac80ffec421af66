// Package config loads paperflow configuration from defaults, an optional
// config file, PAPERFLOW_ environment variables and CLI flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// ErrInvalid is the sentinel for configuration errors. Configuration errors
// are fatal and abort before any document is touched.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all paperflow settings.
type Config struct {
	PaperlessURL string `mapstructure:"paperless_url" yaml:"paperless_url"`
	PaperlessKey string `mapstructure:"paperless_key" yaml:"paperless_key"`

	MistralKey      string `mapstructure:"mistral_key" yaml:"mistral_key"`
	MistralModel    string `mapstructure:"mistral_model" yaml:"mistral_model"`
	MistralOCRModel string `mapstructure:"mistral_ocr_model" yaml:"mistral_ocr_model"`
	MistralBaseURL  string `mapstructure:"mistral_base_url" yaml:"mistral_base_url"`

	UsePaperlessOCR bool `mapstructure:"use_paperless_ocr" yaml:"use_paperless_ocr"`
	VerifyContent   bool `mapstructure:"verify_content" yaml:"verify_content"`
	GenerateTitles  bool `mapstructure:"generate_titles" yaml:"generate_titles"`
	SimilarLimit    int  `mapstructure:"similar_limit" yaml:"similar_limit"`

	TrackProcessed     bool   `mapstructure:"track_processed" yaml:"track_processed"`
	ProcessedFieldID   int    `mapstructure:"processed_field_id" yaml:"processed_field_id"`
	ProcessedFieldName string `mapstructure:"processed_field_name" yaml:"processed_field_name"`
	Reprocess          bool   `mapstructure:"reprocess" yaml:"reprocess"`
	MarkRejected       bool   `mapstructure:"mark_rejected" yaml:"mark_rejected"`

	DryRun         bool   `mapstructure:"dry_run" yaml:"dry_run"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		PaperlessURL:       "http://localhost:8000",
		MistralModel:       "mistral-large-latest",
		MistralOCRModel:    "mistral-ocr-latest",
		VerifyContent:      true,
		GenerateTitles:     true,
		SimilarLimit:       5,
		TrackProcessed:     true,
		ProcessedFieldID:   3,
		ProcessedFieldName: "mistral_processed",
		LogLevel:           "info",
		TimeoutSeconds:     30,
	}
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"paperlessurl":         "paperless_url",
	"paperlesskey":         "paperless_key",
	"mistralkey":           "mistral_key",
	"mistralmodel":         "mistral_model",
	"ocr-model":            "mistral_ocr_model",
	"mistralbaseurl":       "mistral_base_url",
	"use-paperless-ocr":    "use_paperless_ocr",
	"verify":               "verify_content",
	"titles":               "generate_titles",
	"similar-limit":        "similar_limit",
	"track-processed":      "track_processed",
	"processed-field-id":   "processed_field_id",
	"processed-field-name": "processed_field_name",
	"reprocess":            "reprocess",
	"mark-rejected":        "mark_rejected",
	"dry":                  "dry_run",
	"loglevel":             "log_level",
	"timeout":              "timeout_seconds",
}

// Load parses configuration from defaults, the config file (optional),
// environment and bound flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("paperless_url", defaults.PaperlessURL)
	v.SetDefault("mistral_model", defaults.MistralModel)
	v.SetDefault("mistral_ocr_model", defaults.MistralOCRModel)
	v.SetDefault("verify_content", defaults.VerifyContent)
	v.SetDefault("generate_titles", defaults.GenerateTitles)
	v.SetDefault("similar_limit", defaults.SimilarLimit)
	v.SetDefault("track_processed", defaults.TrackProcessed)
	v.SetDefault("processed_field_id", defaults.ProcessedFieldID)
	v.SetDefault("processed_field_name", defaults.ProcessedFieldName)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("timeout_seconds", defaults.TimeoutSeconds)

	// Environment variables with PAPERFLOW_ prefix
	v.SetEnvPrefix("PAPERFLOW")
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.paperflow")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: error reading config file: %w", ErrInvalid, err)
		}
	}

	// Flags override file and environment, but only when set.
	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("%w: failed to bind flag %s: %w", ErrInvalid, flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrInvalid, err)
	}
	return &cfg, nil
}

// Validate checks the configuration before any document is touched.
func (c *Config) Validate() error {
	if c.PaperlessURL == "" {
		return fmt.Errorf("%w: missing paperless url", ErrInvalid)
	}
	if c.PaperlessKey == "" {
		return fmt.Errorf("%w: missing paperless API key", ErrInvalid)
	}

	needsMistral := !c.UsePaperlessOCR || c.VerifyContent || c.GenerateTitles
	if needsMistral && c.MistralKey == "" {
		return fmt.Errorf("%w: missing mistral API key", ErrInvalid)
	}

	if c.TrackProcessed && c.ProcessedFieldName == "" {
		return fmt.Errorf("%w: tracking enabled but processed field name is empty", ErrInvalid)
	}
	if c.SimilarLimit < 0 {
		return fmt.Errorf("%w: similar limit must be non-negative", ErrInvalid)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalid, level)
	}
}

// WriteDefault writes a commented default configuration to the given path.
func WriteDefault(path string) error {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# paperflow configuration
# Every key can also be set via environment variables with a PAPERFLOW_
# prefix (e.g. PAPERFLOW_PAPERLESS_KEY) or overridden on the command line.
# Keep API keys out of this file on shared machines.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
