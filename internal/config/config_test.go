package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agent462/pingcsv/internal/delimited"
	"github.com/agent462/pingcsv/internal/textenc"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Output.File != "result.csv" {
		t.Errorf("default output file = %q, want \"result.csv\"", cfg.Output.File)
	}
	if cfg.Output.Delimiter != "," {
		t.Errorf("default delimiter = %q, want \",\"", cfg.Output.Delimiter)
	}
	if !cfg.Output.Header {
		t.Error("header should be enabled by default")
	}
	if cfg.Output.QuoteAll {
		t.Error("quote_all should be disabled by default")
	}
	if cfg.Collect.Count != 4 {
		t.Errorf("default count = %d, want 4", cfg.Collect.Count)
	}
	if cfg.Collect.Timeout.Duration != 2*time.Minute {
		t.Errorf("default timeout = %s, want 2m", cfg.Collect.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	content := `
output:
  file: latency.tsv
  delimiter: "\t"
  encoding: shift_jis
  header: false
  quote_all: true

collect:
  target: 8.8.4.4
  count: 10
  concurrency: 5
  timeout: 30s

groups:
  lab:
    hosts:
      - pi-1
      - admin@pi-2
    user: pi
`
	cfg := loadFromString(t, content)

	if cfg.Output.File != "latency.tsv" {
		t.Errorf("output file = %q", cfg.Output.File)
	}
	r, err := cfg.Output.DelimiterRune()
	if err != nil || r != '\t' {
		t.Errorf("delimiter = %q, %v; want tab", r, err)
	}
	if cfg.Output.Encoding != "shift_jis" {
		t.Errorf("encoding = %q", cfg.Output.Encoding)
	}
	if cfg.Output.Header {
		t.Error("header should be disabled")
	}
	if !cfg.Output.QuoteAll {
		t.Error("quote_all should be enabled")
	}
	if cfg.Collect.Target != "8.8.4.4" || cfg.Collect.Count != 10 || cfg.Collect.Concurrency != 5 {
		t.Errorf("collect = %+v", cfg.Collect)
	}
	if cfg.Collect.Timeout.Duration != 30*time.Second {
		t.Errorf("timeout = %s, want 30s", cfg.Collect.Timeout)
	}
	lab := cfg.Groups["lab"]
	if len(lab.Hosts) != 2 || lab.User != "pi" {
		t.Errorf("lab group = %+v", lab)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg := loadFromString(t, "collect:\n  target: example.com\n")

	if cfg.Output.File != "result.csv" || cfg.Output.Delimiter != "," || !cfg.Output.Header {
		t.Errorf("output defaults lost: %+v", cfg.Output)
	}
	if cfg.Collect.Count != 4 {
		t.Errorf("count = %d, want default 4", cfg.Collect.Count)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"quote delimiter", "output:\n  delimiter: '\"'\n", "invalid delimiter"},
		{"newline delimiter", "output:\n  delimiter: \"\\n\"\n", "invalid delimiter"},
		{"long delimiter", "output:\n  delimiter: ';;'\n", "single character"},
		{"empty delimiter", "output:\n  delimiter: ''\n", "single character"},
		{"unknown encoding", "output:\n  encoding: ebcdic\n", "unknown encoding"},
		{"empty file", "output:\n  file: ''\n", "must not be empty"},
		{"negative count", "collect:\n  count: -1\n", "count must be non-negative"},
		{"negative concurrency", "collect:\n  concurrency: -2\n", "concurrency"},
		{"negative timeout", "collect:\n  timeout: -5s\n", "timeout"},
		{"bad duration", "collect:\n  timeout: soon\n", "invalid duration"},
		{"empty group", "groups:\n  lab:\n    hosts: []\n", "has no hosts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDelimiterErrorIsSentinel(t *testing.T) {
	_, err := Output{Delimiter: "\r"}.DelimiterRune()
	if !errors.Is(err, delimited.ErrInvalidDelimiter) {
		t.Errorf("expected ErrInvalidDelimiter, got %v", err)
	}
	cfg := DefaultConfig()
	cfg.Output.Encoding = "klingon"
	if err := cfg.Validate(); !errors.Is(err, textenc.ErrUnknownEncoding) {
		t.Errorf("expected ErrUnknownEncoding, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDefaultWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if cfg.Output.File != "result.csv" {
		t.Errorf("expected default config, got %+v", cfg.Output)
	}
}

func TestLoadDefaultReadsXDGConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := DefaultConfigPath()
	if path != filepath.Join(dir, "pingcsv", "config.yaml") {
		t.Fatalf("DefaultConfigPath = %q", path)
	}
	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("output:\n  file: other.csv\n"), 0644)

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if cfg.Output.File != "other.csv" {
		t.Errorf("output file = %q, want other.csv", cfg.Output.File)
	}
}

func TestDurationMarshal(t *testing.T) {
	out, err := Duration{90 * time.Second}.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if out != "1m30s" {
		t.Errorf("MarshalYAML = %v, want 1m30s", out)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}
