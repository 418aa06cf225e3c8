package fetch

import (
	"context"
	"errors"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"m3u8dl/internal/proxy"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := NewClient(opts, logger.Nop())
	require.NoError(t, err)
	return c
}

func TestClient_InjectsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m3u8dl-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://example.com", r.Header.Get("Referer"))
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer server.Close()

	c := newTestClient(t, Options{Headers: map[string]string{
		"User-Agent": "m3u8dl-test",
		"Referer":    "https://example.com",
	}})
	text, err := c.Load(context.Background(), server.URL+"/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", text)
}

func TestClient_FetchSegmentSendsRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=100-149", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("partial"))
	}))
	defer server.Close()

	c := newTestClient(t, Options{})
	data, err := c.FetchSegment(context.Background(), models.Segment{
		URL:       server.URL + "/seg.ts",
		ByteRange: &models.ByteRange{Offset: 100, Length: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, Options{})
	_, err := c.FetchSegment(context.Background(), models.Segment{URL: server.URL + "/seg.ts"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNetwork)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestClient_EmptyBodyIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, Options{})
	_, err := c.FetchSegment(context.Background(), models.Segment{URL: server.URL + "/seg.ts", Sequence: 7})
	assert.ErrorIs(t, err, models.ErrNetwork)
	assert.Contains(t, err.Error(), "empty body")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := newTestClient(t, Options{Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := c.FetchSegment(context.Background(), models.Segment{URL: server.URL})
	assert.ErrorIs(t, err, models.ErrNetwork)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_LoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.m3u8")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\nlocal"), 0o644))

	c := newTestClient(t, Options{})
	text, err := c.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\nlocal", text)

	_, err = c.Load(context.Background(), filepath.Join(t.TempDir(), "missing.m3u8"))
	assert.ErrorIs(t, err, models.ErrIO)
}

func TestClient_RoutesThroughProxy(t *testing.T) {
	var seen string
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.String()
		w.Write([]byte("via-proxy"))
	}))
	defer proxyServer.Close()

	sel, err := proxy.NewSelector([]proxy.Entry{{Endpoint: proxyServer.URL, Weight: 1}})
	require.NoError(t, err)

	c := newTestClient(t, Options{Proxies: sel})
	data, err := c.FetchSegment(context.Background(), models.Segment{URL: "http://origin.invalid/seg.ts"})
	require.NoError(t, err)
	assert.Equal(t, "via-proxy", string(data))
	assert.Equal(t, "http://origin.invalid/seg.ts", seen)
}

func TestNewClient_InvalidProxy(t *testing.T) {
	sel, err := proxy.NewSelector([]proxy.Entry{{Endpoint: "not a proxy", Weight: 1}})
	require.NoError(t, err)

	_, err = NewClient(Options{Proxies: sel}, logger.Nop())
	assert.ErrorIs(t, err, models.ErrConfig)
}

func TestClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	c := newTestClient(t, Options{RateLimit: 20})
	start := time.Now()
	for range 5 {
		_, err := c.FetchSegment(context.Background(), models.Segment{URL: server.URL})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
