package fetch

import (
	"context"
	"fmt"
	"io"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"m3u8dl/internal/proxy"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/ratelimit"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// StatusError reports a non-2xx response. It matches models.ErrNetwork.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Is(target error) bool {
	return target == models.ErrNetwork
}

// Options configures a Client.
type Options struct {
	Headers        map[string]string
	Proxies        *proxy.Selector
	Timeout        time.Duration
	ConnectTimeout time.Duration
	// RateLimit caps outgoing requests per second. Zero means unlimited.
	RateLimit int
}

// Client performs every HTTP request of a run. One underlying http.Client
// is built per proxy endpoint up front; each request draws an endpoint from
// the selector, or goes direct when none is configured.
type Client struct {
	direct   *http.Client
	proxied  map[string]*http.Client
	selector *proxy.Selector
	limiter  ratelimit.Limiter
	timeout  time.Duration
	logger   logger.Logger
}

// NewClient builds the client. A malformed proxy endpoint is a config error.
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	c := &Client{
		direct:   newHTTPClient(nil, headers, opts),
		proxied:  make(map[string]*http.Client),
		selector: opts.Proxies,
		limiter:  ratelimit.NewUnlimited(),
		timeout:  opts.Timeout,
		logger:   log,
	}
	if opts.RateLimit > 0 {
		c.limiter = ratelimit.New(opts.RateLimit)
	}

	if opts.Proxies != nil {
		for _, e := range opts.Proxies.Entries() {
			u, err := url.Parse(e.Endpoint)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return nil, fmt.Errorf("%w: invalid proxy endpoint %q", models.ErrConfig, e.Endpoint)
			}
			c.proxied[e.Endpoint] = newHTTPClient(u, headers, opts)
		}
	}
	return c, nil
}

func newHTTPClient(proxyURL *url.URL, headers map[string]string, opts Options) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Transport: &HeaderTransport{
			Headers: headers,
			Base:    transport,
		},
	}
}

// pick returns the client for this request and its proxy label.
func (c *Client) pick() (*http.Client, string) {
	endpoint, ok := c.selector.Select()
	if !ok {
		return c.direct, "direct"
	}
	if hc, found := c.proxied[endpoint]; found {
		return hc, endpoint
	}
	return c.direct, "direct"
}

func isRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Load returns playlist text from an http(s) URL or a local file path.
func (c *Client) Load(ctx context.Context, source string) (string, error) {
	if !isRemote(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return "", fmt.Errorf("%w: failed to read playlist %s: %v", models.ErrIO, source, err)
		}
		return string(data), nil
	}

	c.logger.Debugf("Fetching playlist from URL: %s", source)
	data, err := c.get(ctx, source, "")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FetchSegment downloads one segment, honoring its byte range. An empty
// body is reported as a network error so callers retry it.
func (c *Client) FetchSegment(ctx context.Context, seg models.Segment) ([]byte, error) {
	rangeHeader := ""
	if seg.ByteRange != nil {
		rangeHeader = seg.ByteRange.Header()
	}
	data, err := c.get(ctx, seg.URL, rangeHeader)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body for segment %d from %s", models.ErrNetwork, seg.Sequence, seg.URL)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, target, rangeHeader string) ([]byte, error) {
	c.limiter.Take()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request for %s: %v", models.ErrNetwork, target, err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	hc, via := c.pick()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request to %s via %s failed: %v", models.ErrNetwork, target, via, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body from %s: %v", models.ErrNetwork, target, err)
	}
	return data, nil
}
