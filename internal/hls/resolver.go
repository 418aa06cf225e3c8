package hls

import (
	"context"
	"fmt"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"net/url"
	"strings"
)

// Loader fetches playlist text from a URL or a local path.
type Loader interface {
	Load(ctx context.Context, source string) (string, error)
}

// Resolver turns a source into a NestedResolution, following a master
// playlist one level down to each variant's media playlist.
type Resolver struct {
	loader Loader
	parser *Parser
	logger logger.Logger
}

// NewResolver creates a resolver.
func NewResolver(loader Loader, parser *Parser, log logger.Logger) *Resolver {
	return &Resolver{
		loader: loader,
		parser: parser,
		logger: log,
	}
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// NormalizeBase adds an https scheme when missing and a trailing slash so
// the value resolves as a directory.
func NormalizeBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", models.ErrConfig, raw)
	}
	return u, nil
}

func (r *Resolver) baseFor(source, baseURL string) (*url.URL, error) {
	if baseURL != "" {
		return NormalizeBase(baseURL)
	}
	if IsRemote(source) {
		u, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid source URL %q: %v", models.ErrParse, source, err)
		}
		return u, nil
	}
	return nil, nil
}

// Resolve loads and parses source. For a master playlist every variant's
// media playlist is fetched in order and the highest-bandwidth one is
// selected. Any variant failure aborts the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, source, baseURL string) (*models.NestedResolution, error) {
	base, err := r.baseFor(source, baseURL)
	if err != nil {
		return nil, err
	}

	text, err := r.loader.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist %s: %w", source, err)
	}

	pl, err := r.parser.Parse(text, source, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	if pl.Type == models.PlaylistMedia {
		r.logger.Infof("Parsed media playlist: %d segments, %d ads filtered", len(pl.Segments), pl.AdCount)
		return &models.NestedResolution{MediaPlaylists: []*models.Playlist{pl}}, nil
	}

	master := pl
	r.logger.Infof("Parsed master playlist with %d variants", len(master.Variants))

	media := make([]*models.Playlist, 0, len(master.Variants))
	for i, v := range master.Variants {
		pl, err := r.loadVariant(ctx, v.URL)
		if err != nil {
			return nil, fmt.Errorf("variant %d (%s): %w", i, v.URL, err)
		}
		r.logger.Debugf("Variant %d: %s, %d segments", i, v.Info(), len(pl.Segments))
		media = append(media, pl)
	}

	return &models.NestedResolution{
		Master:         master,
		MediaPlaylists: media,
		Selected:       bestVariant(master.Variants),
	}, nil
}

func (r *Resolver) loadVariant(ctx context.Context, variantURL string) (*models.Playlist, error) {
	text, err := r.loader.Load(ctx, variantURL)
	if err != nil {
		return nil, err
	}
	typ, err := DetectType(text)
	if err != nil {
		return nil, err
	}
	if typ != models.PlaylistMedia {
		return nil, fmt.Errorf("%w: nested master playlists are not supported", models.ErrParse)
	}
	base, err := url.Parse(variantURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid variant URL: %v", models.ErrParse, err)
	}
	return r.parser.ParseMedia(text, variantURL, base)
}
