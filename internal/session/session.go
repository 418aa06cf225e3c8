package session

import (
	"context"
	"fmt"
	"m3u8dl/internal/cache"
	"m3u8dl/internal/download"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/merge"
	"m3u8dl/internal/models"
	"time"
)

// Resolver turns a source into its parsed playlists.
type Resolver interface {
	Resolve(ctx context.Context, source, baseURL string) (*models.NestedResolution, error)
}

// Options describes one download run.
type Options struct {
	Source  string
	BaseURL string
	// Output is the target file; empty means a timestamped name.
	Output string
	Format string
	// Variant forces a variant index; negative selects the highest bandwidth.
	Variant          int
	KeepCache        bool
	Force            bool
	ResolutionFilter bool
}

// Result carries everything a run produced, including on partial failure.
type Result struct {
	Resolution *models.NestedResolution
	Playlist   *models.Playlist
	Outcome    *download.Outcome
	Output     string
	Report     Report
}

// Session drives one run: resolve, download, mux and clean up.
type Session struct {
	resolver  Resolver
	scheduler *download.Scheduler
	cache     *cache.SegmentCache
	muxer     merge.Muxer
	logger    logger.Logger
	now       func() time.Time
}

// New creates a session from its collaborators.
func New(resolver Resolver, scheduler *download.Scheduler, segCache *cache.SegmentCache, muxer merge.Muxer, log logger.Logger) *Session {
	return &Session{
		resolver:  resolver,
		scheduler: scheduler,
		cache:     segCache,
		muxer:     muxer,
		logger:    log,
		now:       time.Now,
	}
}

// Resolve parses the source and applies the variant choice without downloading.
func (s *Session) Resolve(ctx context.Context, opts Options) (*models.NestedResolution, error) {
	res, err := s.resolver.Resolve(ctx, opts.Source, opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Variant >= 0 && res.Master != nil {
		if err := res.Select(opts.Variant); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrConfig, err)
		}
	}

	for i, info := range res.VariantsInfo() {
		marker := " "
		if i == res.Selected {
			marker = "*"
		}
		s.logger.Infof("%s [%d] %s", marker, i, info)
	}
	return res, nil
}

// Run executes the whole pipeline. Segments that failed every retry leave
// the cache in place for a later run and surface as a MissingSegmentsError.
// With Force set the available segments are still muxed.
func (s *Session) Run(ctx context.Context, opts Options) (*Result, error) {
	output, err := OutputPath(opts.Output, opts.Format, s.now())
	if err != nil {
		return nil, err
	}

	res, err := s.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	pl := res.SelectedPlaylist()

	if pl.IsLive {
		s.logger.Warnf("Playlist is live; only the %d segments currently listed will be downloaded", len(pl.Segments))
	}
	if opts.ResolutionFilter {
		s.logger.Warnf("Resolution-based ad filtering is not supported, ignoring")
	}
	s.logger.Infof("Playlist duration %s, %d segments, %d ads filtered", FormatDuration(pl.TotalDuration()), len(pl.Segments), pl.AdCount)

	outcome, err := s.scheduler.Run(pl.Fingerprint, pl.Segments)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Resolution: res,
		Playlist:   pl,
		Outcome:    outcome,
		Output:     output,
		Report:     NewReport(opts.Source, res, outcome, output),
	}

	items, missing := s.collect(pl)
	if len(missing) > 0 {
		s.logger.Warnf("%d segments unavailable, cache kept at %s for resumption", len(missing), s.cache.Dir(pl.Fingerprint))
		if !opts.Force || len(items) == 0 {
			result.Output = ""
			result.Report.Output = ""
			return result, &merge.MissingSegmentsError{Sequences: missing}
		}
		s.logger.Warnf("Force merging %d of %d segments", len(items), len(pl.Segments))
	}

	if err := s.muxer.Mux(items, output); err != nil {
		return result, fmt.Errorf("failed to merge segments: %w", err)
	}

	if len(missing) > 0 {
		return result, &merge.MissingSegmentsError{Sequences: missing}
	}

	if !opts.KeepCache {
		if err := s.cache.Purge(pl.Fingerprint); err != nil {
			s.logger.Warnf("Failed to clean up cache: %v", err)
		}
	}
	return result, nil
}

// collect reads back the playlist in sequence order from the cache.
func (s *Session) collect(pl *models.Playlist) ([]merge.Item, []int) {
	var (
		items   []merge.Item
		missing []int
	)
	for _, seg := range pl.Segments {
		if !s.cache.Exists(pl.Fingerprint, seg.Sequence) {
			missing = append(missing, seg.Sequence)
			continue
		}
		items = append(items, merge.Item{
			Sequence: seg.Sequence,
			Path:     s.cache.Path(pl.Fingerprint, seg.Sequence),
		})
	}
	return items, missing
}
