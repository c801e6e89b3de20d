// Package config loads shelter-watch settings.
//
// Settings are layered: the embedded defaults, then a YAML file, then a .env
// file and SHELTER_WATCH_* environment variables. Command-line flags are
// applied on top by the cli package.
package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const envPrefix = "SHELTER_WATCH_"

type RetryConfig struct {
	MaxAttempts     int    `yaml:"max_attempts"`
	InitialInterval string `yaml:"initial_interval"`
	MaxInterval     string `yaml:"max_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	IndexURL          string      `yaml:"index_url"`
	Keyword           string      `yaml:"keyword"`
	TitlePrefix       string      `yaml:"title_prefix"`
	OutputDir         string      `yaml:"output_dir"`
	AnnouncementsFile string      `yaml:"announcements_file"`
	SnapshotsFile     string      `yaml:"snapshots_file"`
	Timezone          string      `yaml:"timezone"`
	UserAgent         string      `yaml:"user_agent"`
	Timeout           string      `yaml:"timeout"`
	Concurrency       int         `yaml:"concurrency"`
	Retry             RetryConfig `yaml:"retry"`
	Log               LogConfig   `yaml:"log"`
	MetricsFile       string      `yaml:"metrics_file"`
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "shelter-watch", "config.yaml")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading default config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	return &cfg, nil
}

// Default returns the embedded defaults.
func Default() (*Config, error) {
	return loadDefaults()
}

// Load builds the configuration. An explicit path must exist; when path is
// empty the XDG config file is used if present. Environment overrides are
// applied last. The result is not validated; call Validate after flags have
// been applied.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"INDEX_URL":          &c.IndexURL,
		"KEYWORD":            &c.Keyword,
		"TITLE_PREFIX":       &c.TitlePrefix,
		"OUTPUT_DIR":         &c.OutputDir,
		"ANNOUNCEMENTS_FILE": &c.AnnouncementsFile,
		"SNAPSHOTS_FILE":     &c.SnapshotsFile,
		"TIMEZONE":           &c.Timezone,
		"USER_AGENT":         &c.UserAgent,
		"TIMEOUT":            &c.Timeout,
		"RETRY_INITIAL":      &c.Retry.InitialInterval,
		"RETRY_MAX_INTERVAL": &c.Retry.MaxInterval,
		"LOG_LEVEL":          &c.Log.Level,
		"METRICS_FILE":       &c.MetricsFile,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CONCURRENCY":        &c.Concurrency,
		"RETRY_MAX_ATTEMPTS": &c.Retry.MaxAttempts,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %q", envPrefix, key, v)
		}
		*dst = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.IndexURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("index_url must be an absolute URL: %q", c.IndexURL)
	}
	if c.Keyword == "" {
		return errors.New("keyword is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for name, value := range map[string]string{
		"timeout":                c.Timeout,
		"retry.initial_interval": c.Retry.InitialInterval,
		"retry.max_interval":     c.Retry.MaxInterval,
	} {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", name, value)
		}
	}
	if c.AnnouncementsFile == "" || c.SnapshotsFile == "" {
		return errors.New("announcements_file and snapshots_file are required")
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) RetryInitialInterval() time.Duration {
	d, err := time.ParseDuration(c.Retry.InitialInterval)
	if err != nil {
		return time.Second
	}
	return d
}

func (c *Config) RetryMaxInterval() time.Duration {
	d, err := time.ParseDuration(c.Retry.MaxInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
