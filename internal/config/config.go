package config

import (
	"errors"
	"fmt"
	"io/fs"
	"m3u8dl/internal/filter"
	"m3u8dl/internal/hls"
	"m3u8dl/internal/models"
	"m3u8dl/internal/proxy"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWorkers        = 10
	DefaultRetry          = 3
	DefaultBackoff        = time.Second
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Config is the fully processed application configuration.
type Config struct {
	Workers        int
	Retry          int
	Backoff        time.Duration
	Timeout        time.Duration
	ConnectTimeout time.Duration
	RateLimit      int
	Proxies        []proxy.Entry
	// BaseURL is normalized: it carries a scheme and ends with a slash.
	BaseURL  string
	CacheDir string

	LogLevel  string
	LogFormat string

	// Headers holds canonical header names; user values override defaults.
	Headers map[string]string

	AdPatterns       []string
	ResolutionFilter bool

	FFmpeg    string
	Simple    bool
	KeepCache bool
	Force     bool
}

type rawSystem struct {
	Workers        int      `yaml:"workers"`
	Retry          int      `yaml:"retry"`
	Backoff        string   `yaml:"backoff"`
	Timeout        string   `yaml:"timeout"`
	ConnectTimeout string   `yaml:"connect_timeout"`
	RateLimit      int      `yaml:"rate_limit"`
	Proxies        []string `yaml:"proxies"`
	BaseURL        string   `yaml:"base_url"`
	CacheDir       string   `yaml:"cache_dir"`
}

type rawLog struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type rawFilters struct {
	URLPatterns []string `yaml:"url_patterns"`
	Resolution  bool     `yaml:"resolution"`
}

type rawMerge struct {
	FFmpeg    string `yaml:"ffmpeg"`
	Simple    bool   `yaml:"simple"`
	KeepCache bool   `yaml:"keep_cache"`
	Force     bool   `yaml:"force"`
}

// rawConfig maps directly to the YAML file.
type rawConfig struct {
	System  rawSystem         `yaml:"system"`
	Log     rawLog            `yaml:"log"`
	Headers map[string]string `yaml:"headers"`
	Filters rawFilters        `yaml:"filters"`
	Merge   rawMerge          `yaml:"merge"`
}

// DefaultHeaders returns the headers sent when the user sets none.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": DefaultUserAgent,
		"Accept":     "*/*",
		"Connection": "keep-alive",
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workers:        DefaultWorkers,
		Retry:          DefaultRetry,
		Backoff:        DefaultBackoff,
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		LogLevel:       "info",
		LogFormat:      "console",
		Headers:        DefaultHeaders(),
	}
}

// LoadConfig reads and processes the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: config file %s not found", models.ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: failed to read config file at %s: %v", models.ErrIO, path, err)
	}
	return Parse(data)
}

// Parse processes raw YAML into a Config, applying defaults.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config YAML: %v", models.ErrConfig, err)
	}

	cfg := Default()

	if raw.System.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative, got %d", models.ErrConfig, raw.System.Workers)
	}
	if raw.System.Workers > 0 {
		cfg.Workers = raw.System.Workers
	}
	if raw.System.Retry < 0 {
		return nil, fmt.Errorf("%w: retry must not be negative, got %d", models.ErrConfig, raw.System.Retry)
	}
	if raw.System.Retry > 0 {
		cfg.Retry = raw.System.Retry
	}
	if raw.System.RateLimit < 0 {
		return nil, fmt.Errorf("%w: rate_limit must not be negative, got %d", models.ErrConfig, raw.System.RateLimit)
	}
	cfg.RateLimit = raw.System.RateLimit

	var err error
	if cfg.Backoff, err = parseDuration("backoff", raw.System.Backoff, DefaultBackoff); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = parseDuration("timeout", raw.System.Timeout, DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = parseDuration("connect_timeout", raw.System.ConnectTimeout, DefaultConnectTimeout); err != nil {
		return nil, err
	}

	if len(raw.System.Proxies) > 0 {
		if cfg.Proxies, err = proxy.ParseEntries(raw.System.Proxies); err != nil {
			return nil, err
		}
	}
	if err := cfg.SetBaseURL(raw.System.BaseURL); err != nil {
		return nil, err
	}
	cfg.CacheDir = raw.System.CacheDir

	if raw.Log.Level != "" {
		cfg.LogLevel = strings.ToLower(raw.Log.Level)
	}
	if raw.Log.Format != "" {
		cfg.LogFormat = strings.ToLower(raw.Log.Format)
	}

	for k, v := range raw.Headers {
		cfg.SetHeader(k, v)
	}

	cfg.AdPatterns = raw.Filters.URLPatterns
	cfg.ResolutionFilter = raw.Filters.Resolution

	cfg.FFmpeg = raw.Merge.FFmpeg
	cfg.Simple = raw.Merge.Simple
	cfg.KeepCache = raw.Merge.KeepCache
	cfg.Force = raw.Merge.Force

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(name, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", models.ErrConfig, name, val)
	}
	return d, nil
}

// SetHeader stores a header under its canonical name.
func (c *Config) SetHeader(key, value string) {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
}

// SetBaseURL normalizes and stores the base URL. Empty clears it.
func (c *Config) SetBaseURL(raw string) error {
	u, err := hls.NormalizeBase(raw)
	if err != nil {
		return err
	}
	if u == nil {
		c.BaseURL = ""
		return nil
	}
	c.BaseURL = u.String()
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", models.ErrConfig, c.Workers)
	}
	if c.Retry <= 0 {
		return fmt.Errorf("%w: retry must be positive, got %d", models.ErrConfig, c.Retry)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", models.ErrConfig, c.LogFormat)
	}
	if _, err := c.BuildFilter(); err != nil {
		return err
	}
	return nil
}

// BuildFilter compiles the ad filter patterns.
func (c *Config) BuildFilter() (*filter.AdFilter, error) {
	return filter.New(c.AdPatterns)
}

// BuildSelector returns the weighted proxy selector, or nil for direct connections.
func (c *Config) BuildSelector() (*proxy.Selector, error) {
	if len(c.Proxies) == 0 {
		return nil, nil
	}
	return proxy.NewSelector(c.Proxies)
}
