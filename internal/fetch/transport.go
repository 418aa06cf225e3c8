package fetch

import "net/http"

// HeaderTransport injects a fixed header set into every request.
// The map is never mutated after construction.
type HeaderTransport struct {
	Headers map[string]string
	Base    http.RoundTripper
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.Headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.Headers {
			req.Header.Set(k, v)
		}
	}
	return t.Base.RoundTrip(req)
}
