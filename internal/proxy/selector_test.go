package proxy

import (
	"errors"
	"m3u8dl/internal/models"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	e, err := ParseEntry(" 3, http://10.0.0.1:8080 ")
	require.NoError(t, err)
	assert.Equal(t, Entry{Endpoint: "http://10.0.0.1:8080", Weight: 3}, e)

	for _, bad := range []string{"http://10.0.0.1:8080", "x,http://p", "0,http://p", "-2,http://p", "5,"} {
		_, err := ParseEntry(bad)
		assert.True(t, errors.Is(err, models.ErrConfig), "expected config error for %q", bad)
	}
}

func TestParseEntries_FailsOnFirstBad(t *testing.T) {
	_, err := ParseEntries([]string{"1,http://a", "bogus"})
	assert.ErrorIs(t, err, models.ErrConfig)
}

func TestNewSelector_RejectsNonPositiveWeights(t *testing.T) {
	s, err := NewSelector([]Entry{{"http://a", 0}, {"http://b", 2}, {"http://c", -1}})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"http://b", 2}}, s.Entries())
	assert.Equal(t, int64(2), s.TotalWeight())

	_, err = NewSelector([]Entry{{"http://a", 0}})
	assert.ErrorIs(t, err, models.ErrEmpty)

	_, err = NewSelector(nil)
	assert.ErrorIs(t, err, models.ErrEmpty)
}

func TestSelector_NilMeansDirect(t *testing.T) {
	var s *Selector
	endpoint, ok := s.Select()
	assert.False(t, ok)
	assert.Empty(t, endpoint)
}

func TestSelector_PickIntervals(t *testing.T) {
	s, err := NewSelector([]Entry{{"a", 10}, {"b", 15}, {"c", 20}})
	require.NoError(t, err)

	assert.Equal(t, "a", s.pick(0))
	assert.Equal(t, "a", s.pick(9))
	assert.Equal(t, "b", s.pick(10))
	assert.Equal(t, "b", s.pick(24))
	assert.Equal(t, "c", s.pick(25))
	assert.Equal(t, "c", s.pick(44))
}

func TestSelector_WeightedDistribution(t *testing.T) {
	s, err := NewSelector([]Entry{{"a", 10}, {"b", 15}, {"c", 20}})
	require.NoError(t, err)

	const draws = 10000
	counts := map[string]int{}
	for range draws {
		endpoint, ok := s.Select()
		require.True(t, ok)
		counts[endpoint]++
	}

	assert.InDelta(t, 10.0/45, float64(counts["a"])/draws, 0.03)
	assert.InDelta(t, 15.0/45, float64(counts["b"])/draws, 0.03)
	assert.InDelta(t, 20.0/45, float64(counts["c"])/draws, 0.03)
}

func TestSelector_ConcurrentSelect(t *testing.T) {
	s, err := NewSelector([]Entry{{"a", 1}, {"b", 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				endpoint, ok := s.Select()
				if !ok || (endpoint != "a" && endpoint != "b") {
					t.Errorf("unexpected selection %q", endpoint)
				}
			}
		}()
	}
	wg.Wait()
}
