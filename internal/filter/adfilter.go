package filter

import (
	"fmt"
	"m3u8dl/internal/models"
	"regexp"
)

// AdFilter classifies segment and variant URLs as advertisements.
// It is immutable after construction and safe for concurrent use.
type AdFilter struct {
	patterns []*regexp.Regexp
}

// New compiles the given patterns. A malformed pattern fails construction
// so that bad configuration is caught before any network activity.
func New(patterns []string) (*AdFilter, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: invalid ad filter pattern %q: %v", models.ErrConfig, models.ErrParse, p, err)
		}
		compiled = append(compiled, re)
	}
	return &AdFilter{patterns: compiled}, nil
}

// IsAd reports whether any pattern matches the absolute URL.
// A nil filter or one with no patterns never matches.
func (f *AdFilter) IsAd(url string) bool {
	if f == nil {
		return false
	}
	for _, re := range f.patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns.
func (f *AdFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.patterns)
}
