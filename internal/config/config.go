// Package config loads pavcore settings from TOML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shirou/gopsutil/v4/cpu"
)

// Config is the full configuration file.
type Config struct {
	ResultsDir string       `toml:"results_dir"`
	LogLevel   string       `toml:"log_level"`
	Check      CheckConfig  `toml:"check"`
	Verify     VerifyConfig `toml:"verify"`
	Watch      WatchConfig  `toml:"watch"`
}

// CheckConfig configures check-complete.
type CheckConfig struct {
	// MinK is the smallest committee size checked when none is given.
	MinK int `toml:"min_k"`
}

// VerifyConfig configures verify-certificates.
type VerifyConfig struct {
	MinK int `toml:"min_k"`
	// Workers is a positive count or "auto" for one per logical CPU.
	Workers            string `toml:"workers"`
	RequireNonNegative bool   `toml:"require_nonnegative"`
}

// WatchConfig configures --watch.
type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
}

// Duration is a time.Duration written as a string such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration. The committee-size floors
// match the ranges the search was run over.
func Default() Config {
	return Config{
		ResultsDir: "results",
		LogLevel:   "info",
		Check:      CheckConfig{MinK: 8},
		Verify:     VerifyConfig{MinK: 9, Workers: "8"},
		Watch:      WatchConfig{Debounce: Duration{500 * time.Millisecond}},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/pavcore/config.toml or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pavcore", "config.toml")
}

// Parse decodes TOML text over the defaults. Unknown keys are an error.
func Parse(text string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration at path. An empty path means DefaultPath,
// which may be absent; an explicit path must exist. Environment overrides
// are applied last.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if cfg, err = Parse(string(data)); err != nil {
				return Config{}, fmt.Errorf("%s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from PAVCORE_RESULTS_DIR, PAVCORE_LOG_LEVEL
// and PAVCORE_WORKERS.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PAVCORE_RESULTS_DIR"); v != "" {
		c.ResultsDir = v
	}
	if v := os.Getenv("PAVCORE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PAVCORE_WORKERS"); v != "" {
		c.Verify.Workers = v
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Check.MinK < 1 || c.Verify.MinK < 1 {
		return fmt.Errorf("config: min_k must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Verify.Workers != "auto" {
		if n, err := strconv.Atoi(c.Verify.Workers); err != nil || n < 1 {
			return fmt.Errorf("config: workers must be a positive integer or \"auto\", got %q", c.Verify.Workers)
		}
	}
	if c.Watch.Debounce.Duration < 0 {
		return fmt.Errorf("config: negative watch debounce")
	}
	return nil
}

// WorkerCount resolves Workers to a concrete pool size.
func (c VerifyConfig) WorkerCount() (int, error) {
	if c.Workers != "auto" {
		n, err := strconv.Atoi(c.Workers)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("invalid worker count %q", c.Workers)
		}
		return n, nil
	}
	n, err := cpu.Counts(true)
	if err != nil {
		return 0, fmt.Errorf("count CPUs: %w", err)
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}
