// Package config loads and validates the optional .procexec YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/deixis/procexec/internal/match"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up from the working directory
// upward.
const FileName = ".procexec"

// Default values.
const (
	DefaultLogMaxSizeMB = 10
	DefaultStoreSize    = 16
)

// Config holds the parsed .procexec configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version    int           `yaml:"version"`
	RawShell   *bool         `yaml:"shell"`        // default true
	RawTimeout string        `yaml:"timeout"`      // e.g. "30s"; empty means no timeout
	RawEngine  string        `yaml:"regex_engine"` // re2 | regexp2
	StoreDir   string        `yaml:"store_dir"`    // where run records are written
	Log        LogConfig     `yaml:"log"`
	Checks     []CheckConfig `yaml:"checks"`
}

// LogConfig controls the process-wide logger.
type LogConfig struct {
	File      string `yaml:"file"`        // empty logs to stderr
	Level     string `yaml:"level"`       // debug | info | warn | error
	MaxSizeMB int    `yaml:"max_size_mb"` // rotation threshold for File
}

// CheckConfig describes one named command whose exit status is verified.
type CheckConfig struct {
	Name     string   `yaml:"name"`
	Command  string   `yaml:"command"`
	Dir      string   `yaml:"dir"`
	Env      []string `yaml:"env"`    // KEY=VALUE pairs added to the environment
	Expect   *int     `yaml:"expect"` // default 0
	RawShell *bool    `yaml:"shell"`  // default: the top-level shell setting
	Match    string   `yaml:"match"`  // lines starting with this pattern are reported
}

// Timeout returns the configured per-execution timeout, or 0 for none.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// UseShell returns the configured shell default, which is true.
func (c *Config) UseShell() bool {
	if c.RawShell != nil {
		return *c.RawShell
	}
	return true
}

// RegexEngine returns the configured pattern engine, falling back to
// match.DefaultEngine for unknown values. Validate reports unknown values.
func (c *Config) RegexEngine() match.Engine {
	e, err := match.ParseEngine(c.RawEngine)
	if err != nil {
		return match.DefaultEngine
	}
	return e
}

// RunStoreDir returns the directory for run records. It defaults to
// procexec/runs under the user cache directory, or the temp directory.
func (c *Config) RunStoreDir() string {
	if c.StoreDir != "" {
		return c.StoreDir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "procexec", "runs")
}

// Check returns the check called name.
func (c *Config) Check(name string) (CheckConfig, bool) {
	for _, ch := range c.Checks {
		if ch.Name == name {
			return ch, true
		}
	}
	return CheckConfig{}, false
}

// Validate reports configuration mistakes that would otherwise surface
// only when a check runs.
func (c *Config) Validate() error {
	var errs []error
	if c.RawTimeout != "" {
		if d, err := time.ParseDuration(c.RawTimeout); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("invalid timeout %q", c.RawTimeout))
		}
	}
	if _, err := match.ParseEngine(c.RawEngine); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Checks))
	for i, ch := range c.Checks {
		switch {
		case ch.Name == "":
			errs = append(errs, fmt.Errorf("check %d: name is required", i))
		case seen[ch.Name]:
			errs = append(errs, fmt.Errorf("check %q: duplicate name", ch.Name))
		}
		seen[ch.Name] = true
		if ch.Command == "" {
			errs = append(errs, fmt.Errorf("check %q: command is required", ch.Name))
		}
	}
	return errors.Join(errs...)
}

// Expected returns the exit status the check expects.
func (c CheckConfig) Expected() int {
	if c.Expect != nil {
		return *c.Expect
	}
	return 0
}

// Shell returns whether the check runs through the host shell.
func (c CheckConfig) Shell(def bool) bool {
	if c.RawShell != nil {
		return *c.RawShell
	}
	return def
}

// LogLevel returns the configured level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	l, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// LogMaxSizeMB returns the log rotation threshold.
func (c *Config) LogMaxSizeMB() int {
	if c.Log.MaxSizeMB > 0 {
		return c.Log.MaxSizeMB
	}
	return DefaultLogMaxSizeMB
}

// ParseLevel parses a level name. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// LoadResult holds the parsed config and where it was found.
type LoadResult struct {
	Config *Config
	Path   string // empty when no file exists
	Root   string // directory containing the file; falls back to the start dir
}

// Load finds .procexec by walking upward from dir and parses it. If no
// file exists, a default Config is returned.
func Load(dir string) (*LoadResult, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	path, err := find(dir)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: dir}, nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Path: path, Root: filepath.Dir(path)}, nil
}

// LoadFile parses the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// find walks upward from dir looking for FileName.
func find(dir string) (string, error) {
	for {
		path := filepath.Join(dir, FileName)
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}
