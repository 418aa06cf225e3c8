package main

import (
	"m3u8dl/internal/cache"
	"m3u8dl/internal/config"
	"m3u8dl/internal/download"
	"m3u8dl/internal/fetch"
	"m3u8dl/internal/hls"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/merge"
	"m3u8dl/internal/session"
	"os"
)

// flagValues holds everything bound to command-line flags.
type flagValues struct {
	configFile string
	overrides  config.Overrides
	output     string
	format     string
	variant    int
	master     bool
}

// app wires the collaborators of one invocation.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	client   *fetch.Client
	resolver *hls.Resolver
}

func newApp(fv *flagValues) (*app, error) {
	cfg := config.Default()
	if fv.configFile != "" {
		loaded, err := config.LoadConfig(fv.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	warnings, err := cfg.ApplyOverrides(fv.overrides)
	if err != nil {
		return nil, err
	}

	log := logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	for _, w := range warnings {
		log.Warnf("%s", w)
	}
	if fv.configFile != "" {
		log.Debugf("Configuration loaded from %s", fv.configFile)
	}

	selector, err := cfg.BuildSelector()
	if err != nil {
		return nil, err
	}
	if selector != nil {
		log.Infof("Using %d proxies (total weight %d)", len(selector.Entries()), selector.TotalWeight())
	}
	ads, err := cfg.BuildFilter()
	if err != nil {
		return nil, err
	}

	client, err := fetch.NewClient(fetch.Options{
		Headers:        cfg.Headers,
		Proxies:        selector,
		Timeout:        cfg.Timeout,
		ConnectTimeout: cfg.ConnectTimeout,
		RateLimit:      cfg.RateLimit,
	}, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		client:   client,
		resolver: hls.NewResolver(client, hls.NewParser(ads), log),
	}, nil
}

func (a *app) session() *session.Session {
	segCache := cache.New(a.cfg.CacheDir, a.log)
	scheduler := download.NewScheduler(a.client, segCache, download.Options{
		Workers:    a.cfg.Workers,
		MaxRetries: a.cfg.Retry,
		Backoff:    a.cfg.Backoff,
	}, a.log)
	muxer := merge.New(a.cfg.FFmpeg, a.cfg.Simple, a.log)
	return session.New(a.resolver, scheduler, segCache, muxer, a.log)
}

func (a *app) options(source string, fv *flagValues) session.Options {
	return session.Options{
		Source:           source,
		BaseURL:          a.cfg.BaseURL,
		Output:           fv.output,
		Format:           fv.format,
		Variant:          fv.variant,
		KeepCache:        a.cfg.KeepCache,
		Force:            a.cfg.Force,
		ResolutionFilter: a.cfg.ResolutionFilter,
	}
}
