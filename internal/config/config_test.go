package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func validConfig() *Config {
	cfg := Default()
	cfg.PaperlessKey = "pk"
	cfg.MistralKey = "mk"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing paperless url", func(c *Config) { c.PaperlessURL = "" }, true},
		{"missing paperless key", func(c *Config) { c.PaperlessKey = "" }, true},
		{"missing mistral key", func(c *Config) { c.MistralKey = "" }, true},
		{"mistral key not needed when all llm stages off", func(c *Config) {
			c.MistralKey = ""
			c.UsePaperlessOCR = true
			c.VerifyContent = false
			c.GenerateTitles = false
		}, false},
		{"tracking without field name", func(c *Config) { c.ProcessedFieldName = "" }, true},
		{"tracking disabled allows empty field name", func(c *Config) {
			c.TrackProcessed = false
			c.ProcessedFieldName = ""
		}, false},
		{"negative similar limit", func(c *Config) { c.SimilarLimit = -1 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("validation errors must wrap ErrInvalid, got %v", err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	// Keep stray config files on the host out of the search path.
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PaperlessURL != "http://localhost:8000" {
		t.Errorf("PaperlessURL = %q", cfg.PaperlessURL)
	}
	if !cfg.VerifyContent || !cfg.GenerateTitles || !cfg.TrackProcessed {
		t.Errorf("llm stages should default on: %+v", cfg)
	}
	if cfg.ProcessedFieldName != "mistral_processed" {
		t.Errorf("ProcessedFieldName = %q", cfg.ProcessedFieldName)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `paperless_url: https://docs.example.com
paperless_key: file-key
mistral_key: file-mistral
use_paperless_ocr: true
similar_limit: 3
dry_run: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PaperlessURL != "https://docs.example.com" {
		t.Errorf("PaperlessURL = %q", cfg.PaperlessURL)
	}
	if cfg.PaperlessKey != "file-key" || cfg.MistralKey != "file-mistral" {
		t.Errorf("keys not loaded: %+v", cfg)
	}
	if !cfg.UsePaperlessOCR || !cfg.DryRun {
		t.Errorf("bools not loaded: %+v", cfg)
	}
	if cfg.SimilarLimit != 3 {
		t.Errorf("SimilarLimit = %d", cfg.SimilarLimit)
	}
	if cfg.MistralModel != "mistral-large-latest" {
		t.Errorf("unset keys must keep defaults, got %q", cfg.MistralModel)
	}
}

func TestLoadFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "paperless_url: https://from-file\npaperless_key: k\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("paperlessurl", "http://localhost:8000", "")
	flags.Bool("dry", false, "")
	if err := flags.Parse([]string{"--paperlessurl", "https://from-flag", "--dry"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PaperlessURL != "https://from-flag" {
		t.Errorf("flag must win over file, got %q", cfg.PaperlessURL)
	}
	if !cfg.DryRun {
		t.Error("dry flag not bound")
	}
	if cfg.PaperlessKey != "k" {
		t.Errorf("file values without flags must survive, got %q", cfg.PaperlessKey)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.PaperlessURL != def.PaperlessURL ||
		cfg.MistralModel != def.MistralModel ||
		cfg.ProcessedFieldID != def.ProcessedFieldID ||
		cfg.SimilarLimit != def.SimilarLimit {
		t.Errorf("written defaults do not round-trip: %+v", cfg)
	}
}
