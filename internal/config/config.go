// Package config loads scopegraph.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jward/scopegraph/internal/parse"
	"github.com/jward/scopegraph/query"
)

// DefaultFile is the config file looked for in the working directory.
const DefaultFile = "scopegraph.toml"

// Forever spells an unbounded lock timeout.
const Forever = "forever"

type Config struct {
	Index   Index   `toml:"index"`
	Query   Query   `toml:"query"`
	Watch   Watch   `toml:"watch"`
	Metrics Metrics `toml:"metrics"`
}

type Index struct {
	DB        string   `toml:"db"`
	Languages []string `toml:"languages"`
	Workers   int      `toml:"workers"`

	// Serial turns off parallel parsing.
	Serial bool `toml:"serial"`
}

type Query struct {
	// LockTimeout is a duration such as "250ms", "0s" for a single attempt,
	// or "forever".
	LockTimeout  string `toml:"lock_timeout"`
	AsyncWorkers int    `toml:"async_workers"`
}

type Watch struct {
	// Paths are the directories to watch. Empty means the deepest directory
	// holding every indexed file.
	Paths               []string      `toml:"paths"`
	Debounce            time.Duration `toml:"debounce"`
	ScanInterval        time.Duration `toml:"scan_interval"`
	ExcludeDirs         []string      `toml:"exclude_dirs"`
	ExcludeFiles        []string      `toml:"exclude_files"`
	Archive             string        `toml:"archive"`
	MaxBatchesPerSecond float64       `toml:"max_batches_per_second"`
}

type Metrics struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `toml:"addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the TOML file at path, fills in defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Index.DB) == "" {
		cfg.Index.DB = ".scopegraph/index.db"
	}
	if len(cfg.Index.Languages) == 0 {
		cfg.Index.Languages = parse.Languages()
	}
	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = 4
	}

	if strings.TrimSpace(cfg.Query.LockTimeout) == "" {
		cfg.Query.LockTimeout = Forever
	}
	if cfg.Query.AsyncWorkers <= 0 {
		cfg.Query.AsyncWorkers = 4
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.ScanInterval == 0 {
		cfg.Watch.ScanInterval = time.Minute
	}
	if cfg.Watch.ExcludeDirs == nil {
		cfg.Watch.ExcludeDirs = []string{".git", "node_modules", "vendor", "bin", "obj"}
	}
	if strings.TrimSpace(cfg.Watch.Archive) == "" {
		cfg.Watch.Archive = ".scopegraph/archive.yaml"
	}
}

// Validate checks the values a file may get wrong.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Index.DB) == "" {
		return errors.New("index.db must not be empty")
	}
	supported := parse.Languages()
	for _, lang := range c.Index.Languages {
		if !slices.Contains(supported, lang) {
			return fmt.Errorf("index.languages: unsupported language %q; supported are %s",
				lang, strings.Join(supported, ", "))
		}
	}
	if _, err := c.Query.Timeout(); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if c.Watch.ScanInterval < 0 {
		return fmt.Errorf("watch.scan_interval must not be negative, got %s", c.Watch.ScanInterval)
	}
	if c.Watch.MaxBatchesPerSecond < 0 {
		return fmt.Errorf("watch.max_batches_per_second must not be negative, got %g", c.Watch.MaxBatchesPerSecond)
	}
	return nil
}

// Timeout parses LockTimeout. "forever" maps to query.WaitForever.
func (q Query) Timeout() (time.Duration, error) {
	s := strings.TrimSpace(q.LockTimeout)
	if s == "" || strings.EqualFold(s, Forever) {
		return query.WaitForever, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("query.lock_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("query.lock_timeout must not be negative, got %s; use %q to wait without limit", s, Forever)
	}
	return d, nil
}
