package config

import (
	"fmt"
	"m3u8dl/internal/models"
	"m3u8dl/internal/proxy"
	"strings"
)

// Overrides carries command-line values. Zero values leave the config untouched.
type Overrides struct {
	BaseURL   string
	Headers   []string
	Workers   int
	Retry     int
	Proxies   []string
	CacheDir  string
	LogLevel  string
	LogFormat string
	FFmpeg    string
	Simple    bool
	KeepCache bool
	Force     bool
}

// ApplyOverrides merges CLI values into the config. Malformed "Key:Value"
// headers are skipped; their warnings are returned for the caller to log.
func (c *Config) ApplyOverrides(o Overrides) ([]string, error) {
	var warnings []string

	if o.BaseURL != "" {
		if err := c.SetBaseURL(o.BaseURL); err != nil {
			return nil, err
		}
	}
	for _, h := range o.Headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			warnings = append(warnings, fmt.Sprintf("ignoring malformed header %q, expected Key:Value", h))
			continue
		}
		c.SetHeader(key, value)
	}

	if o.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative, got %d", models.ErrConfig, o.Workers)
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.Retry < 0 {
		return nil, fmt.Errorf("%w: retry must not be negative, got %d", models.ErrConfig, o.Retry)
	}
	if o.Retry > 0 {
		c.Retry = o.Retry
	}

	if len(o.Proxies) > 0 {
		entries, err := proxy.ParseEntries(o.Proxies)
		if err != nil {
			return nil, err
		}
		c.Proxies = entries
	}

	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
	if o.LogLevel != "" {
		c.LogLevel = strings.ToLower(o.LogLevel)
	}
	if o.LogFormat != "" {
		c.LogFormat = strings.ToLower(o.LogFormat)
	}
	if o.FFmpeg != "" {
		c.FFmpeg = o.FFmpeg
	}
	c.Simple = c.Simple || o.Simple
	c.KeepCache = c.KeepCache || o.KeepCache
	c.Force = c.Force || o.Force

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return warnings, nil
}
