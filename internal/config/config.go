package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/agent462/pingcsv/internal/delimited"
	"github.com/agent462/pingcsv/internal/textenc"
)

// Config represents the top-level pingcsv configuration.
type Config struct {
	Output  Output           `yaml:"output"`
	Collect Collect          `yaml:"collect"`
	Groups  map[string]Group `yaml:"groups,omitempty"`
}

// Output controls how the combined table is written.
type Output struct {
	File      string `yaml:"file"`               // file name placed beside the data directory
	Delimiter string `yaml:"delimiter"`          // single character
	Encoding  string `yaml:"encoding,omitempty"` // empty selects the platform default
	Header    bool   `yaml:"header"`
	QuoteAll  bool   `yaml:"quote_all"`
}

// Collect holds defaults for gathering captures from remote hosts.
type Collect struct {
	Target      string   `yaml:"target,omitempty"`
	Count       int      `yaml:"count"`
	Command     string   `yaml:"command,omitempty"`     // overrides the generated ping command
	RemoteFile  string   `yaml:"remote_file,omitempty"` // fetch this file over SFTP instead
	Concurrency int      `yaml:"concurrency"`
	Timeout     Duration `yaml:"timeout"`
}

// Group defines a named set of hosts with an optional user override.
type Group struct {
	Hosts []string `yaml:"hosts"`
	User  string   `yaml:"user,omitempty"`
}

// Duration wraps time.Duration to support YAML unmarshaling from strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Output: Output{
			File:      "result.csv",
			Delimiter: ",",
			Header:    true,
		},
		Collect: Collect{
			Count:       4,
			Concurrency: 20,
			Timeout:     Duration{2 * time.Minute},
		},
		Groups: make(map[string]Group),
	}
}

// DefaultConfigPath returns the default config file path.
// Respects $XDG_CONFIG_HOME if set, otherwise falls back to ~/.config.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "pingcsv", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pingcsv", "config.yaml")
}

// Load reads and parses a config YAML file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads the config from the default path.
// If the file does not exist, it returns the default config.
func LoadDefault() (*Config, error) {
	path := DefaultConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// DelimiterRune returns the configured delimiter as a single rune.
func (o Output) DelimiterRune() (rune, error) {
	if utf8.RuneCountInString(o.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", o.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(o.Delimiter)
	if err := delimited.ValidateDelimiter(r); err != nil {
		return 0, err
	}
	return r, nil
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	if c.Output.File == "" {
		return fmt.Errorf("output file name must not be empty")
	}
	if _, err := c.Output.DelimiterRune(); err != nil {
		return err
	}
	if _, err := textenc.Parse(c.Output.Encoding); err != nil {
		return err
	}

	if c.Collect.Count < 0 {
		return fmt.Errorf("collect count must be non-negative, got %d", c.Collect.Count)
	}
	if c.Collect.Concurrency < 0 {
		return fmt.Errorf("concurrency must be non-negative, got %d", c.Collect.Concurrency)
	}
	if c.Collect.Timeout.Duration < 0 {
		return fmt.Errorf("collect timeout must be non-negative, got %s", c.Collect.Timeout)
	}

	for name, group := range c.Groups {
		if len(group.Hosts) == 0 {
			return fmt.Errorf("group %q has no hosts", name)
		}
	}

	return nil
}
