package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/kmpscan/pkg/types"
)

// Config holds all configuration for kmpscan
type Config struct {
	// Behavior flags
	Quiet bool `yaml:"quiet" env:"KMPSCAN_QUIET"`

	// Pattern configuration
	Patterns []Pattern `yaml:"patterns"`

	// Scanner settings
	Workers      int      `yaml:"workers" env:"KMPSCAN_WORKERS"`
	CacheSize    int      `yaml:"cache_size" env:"KMPSCAN_CACHE_SIZE"`
	MaxFileSize  ByteSize `yaml:"max_file_size" env:"KMPSCAN_MAX_FILE_SIZE"`
	ContextWidth int      `yaml:"context_width"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Batching
	BatchWindow time.Duration `yaml:"batch_window" env:"KMPSCAN_BATCH_WINDOW"`

	// Config file reloading in watch mode
	ReloadDebounce time.Duration `yaml:"reload_debounce"`

	// Watch mode status line on the bottom terminal row
	StatusLine bool `yaml:"status_line" env:"KMPSCAN_STATUS_LINE"`
}

// Pattern represents a configurable pattern.
type Pattern = types.Pattern

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// ByteSize is a size in bytes that can be written as "64MB" or "1 GiB" in
// YAML and environment variables.
type ByteSize uint64

// UnmarshalYAML implements yaml.Unmarshaler
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	n, err := humanize.ParseBytes(value.Value)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", value.Value, err)
	}
	*b = ByteSize(n)
	return nil
}

// String returns the size in human readable form
func (b ByteSize) String() string {
	return humanize.Bytes(uint64(b))
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.GOMAXPROCS(0),
		CacheSize:    128,
		MaxFileSize:  256 * humanize.MByte,
		ContextWidth: 20,
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 60,
		},
		ReloadDebounce: 250 * time.Millisecond,
	}
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads configuration from the given file and the environment. A
// missing file is not an error.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	// Compile patterns
	if err := compilePatterns(cfg); err != nil {
		return nil, fmt.Errorf("failed to compile patterns: %w", err)
	}

	// Validate configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config file path
func Path() string {
	// Check for explicit config path
	if path := os.Getenv("KMPSCAN_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kmpscan", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "kmpscan", "config.yaml")
	}

	return ""
}

// AddLiteral enables text as a pattern and returns the name its matches are
// reported under. Patterns given on the command line go through here. A
// configured pattern with the same text is enabled in place; otherwise a new
// pattern named after its text is added, prefixed with "-e:" when a
// configured pattern already uses that name.
func (c *Config) AddLiteral(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("pattern text must not be empty")
	}

	for i := range c.Patterns {
		p := &c.Patterns[i]
		if p.Text != text {
			continue
		}
		p.Enabled = true
		if p.Matcher() == nil {
			p.Compile()
		}
		return p.Name, nil
	}

	name := text
	for n := 1; c.hasPattern(name); n++ {
		name = "-e:" + text
		if n > 1 {
			name = fmt.Sprintf("-e:%s#%d", text, n)
		}
	}

	p := Pattern{Name: name, Text: text, Enabled: true}
	p.Compile()
	c.Patterns = append(c.Patterns, p)
	return name, nil
}

func (c *Config) hasPattern(name string) bool {
	for _, p := range c.Patterns {
		if p.Name == name {
			return true
		}
	}
	return false
}

// EnabledPatterns returns the enabled, compiled patterns
func (c *Config) EnabledPatterns() []Pattern {
	enabled := make([]Pattern, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		if p.Enabled && p.Matcher() != nil {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if quiet := os.Getenv("KMPSCAN_QUIET"); quiet != "" {
		switch quiet {
		case "true", "1", "yes":
			cfg.Quiet = true
		case "false", "0", "no":
			cfg.Quiet = false
		default:
			return fmt.Errorf("invalid KMPSCAN_QUIET value: %q (use true/false)", quiet)
		}
	}

	if statusLine := os.Getenv("KMPSCAN_STATUS_LINE"); statusLine != "" {
		b, err := strconv.ParseBool(statusLine)
		if err != nil {
			return fmt.Errorf("invalid KMPSCAN_STATUS_LINE: %w", err)
		}
		cfg.StatusLine = b
	}

	if workers := os.Getenv("KMPSCAN_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid KMPSCAN_WORKERS: %w", err)
		}
		cfg.Workers = n
	}

	if size := os.Getenv("KMPSCAN_CACHE_SIZE"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return fmt.Errorf("invalid KMPSCAN_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = n
	}

	if maxSize := os.Getenv("KMPSCAN_MAX_FILE_SIZE"); maxSize != "" {
		n, err := humanize.ParseBytes(maxSize)
		if err != nil {
			return fmt.Errorf("invalid KMPSCAN_MAX_FILE_SIZE: %w", err)
		}
		cfg.MaxFileSize = ByteSize(n)
	}

	if window := os.Getenv("KMPSCAN_BATCH_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return fmt.Errorf("invalid KMPSCAN_BATCH_WINDOW: %w", err)
		}
		cfg.BatchWindow = d
	}

	if patterns := os.Getenv("KMPSCAN_PATTERNS"); patterns != "" {
		for _, text := range strings.Split(patterns, ",") {
			if text == "" {
				continue
			}
			cfg.Patterns = append(cfg.Patterns, Pattern{Name: text, Text: text, Enabled: true})
		}
	}

	return nil
}

// compilePatterns builds the matcher for every enabled pattern
func compilePatterns(cfg *Config) error {
	for i := range cfg.Patterns {
		pattern := &cfg.Patterns[i]
		if !pattern.Enabled {
			continue
		}
		if pattern.Text == "" {
			return fmt.Errorf("pattern %q: text must not be empty", pattern.Name)
		}
		pattern.Compile()
	}
	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if p.Name == "" {
			return fmt.Errorf("pattern with text %q has no name", p.Text)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate pattern name %q", p.Name)
		}
		seen[p.Name] = true
	}

	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if cfg.CacheSize < 1 {
		return fmt.Errorf("cache_size must be at least 1")
	}

	if cfg.ContextWidth < 0 {
		return fmt.Errorf("context_width must be non-negative")
	}

	if cfg.RateLimit.MaxMessages < 0 {
		return fmt.Errorf("rate_limit.max_messages must be non-negative")
	}

	if cfg.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be non-negative")
	}

	if cfg.BatchWindow < 0 {
		return fmt.Errorf("batch_window must be non-negative")
	}

	if cfg.ReloadDebounce < 0 {
		return fmt.Errorf("reload_debounce must be non-negative")
	}

	return nil
}
