package proxy

import (
	"fmt"
	"m3u8dl/internal/models"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
)

// Entry is one weighted proxy endpoint.
type Entry struct {
	Endpoint string
	Weight   int
}

// ParseEntry parses the "weight,endpointUrl" form used in configuration.
func ParseEntry(raw string) (Entry, error) {
	weightPart, endpoint, ok := strings.Cut(strings.TrimSpace(raw), ",")
	if !ok {
		return Entry{}, fmt.Errorf("%w: invalid proxy %q: expected 'weight,url'", models.ErrConfig, raw)
	}
	weight, err := strconv.Atoi(strings.TrimSpace(weightPart))
	if err != nil || weight <= 0 {
		return Entry{}, fmt.Errorf("%w: invalid proxy weight %q in %q: must be a positive integer", models.ErrConfig, weightPart, raw)
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Entry{}, fmt.Errorf("%w: invalid proxy %q: empty endpoint", models.ErrConfig, raw)
	}
	return Entry{Endpoint: endpoint, Weight: weight}, nil
}

// ParseEntries parses every value, failing on the first malformed one.
func ParseEntries(values []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(values))
	for _, s := range values {
		e, err := ParseEntry(s)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Selector draws proxy endpoints proportionally to their weight.
// The table is immutable after construction, so Select needs no locking.
type Selector struct {
	entries    []Entry
	cumulative []int64
	total      int64
}

// NewSelector drops entries with a non-positive weight and fails with
// ErrEmpty when nothing remains.
func NewSelector(entries []Entry) (*Selector, error) {
	s := &Selector{}
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		s.total += int64(e.Weight)
		s.entries = append(s.entries, e)
		s.cumulative = append(s.cumulative, s.total)
	}
	if len(s.entries) == 0 {
		return nil, fmt.Errorf("%w: no proxy with a positive weight", models.ErrEmpty)
	}
	return s, nil
}

// Select returns a random endpoint. A nil selector means the direct network
// path and reports false.
func (s *Selector) Select() (string, bool) {
	if s == nil {
		return "", false
	}
	return s.pick(rand.Int64N(s.total)), true
}

// pick maps a draw in [0, total) to the entry whose cumulative interval contains it.
func (s *Selector) pick(draw int64) string {
	i := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > draw })
	return s.entries[i].Endpoint
}

// Entries returns a copy of the accepted entries.
func (s *Selector) Entries() []Entry {
	if s == nil {
		return nil
	}
	return append([]Entry(nil), s.entries...)
}

// TotalWeight is the sum of accepted weights.
func (s *Selector) TotalWeight() int64 {
	if s == nil {
		return 0
	}
	return s.total
}
