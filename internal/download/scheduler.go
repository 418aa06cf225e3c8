package download

import (
	"context"
	"fmt"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	DefaultWorkers = 10
	DefaultRetries = 3
	DefaultBackoff = time.Second
	progressEvery  = 2 * time.Second
)

// Fetcher downloads the bytes of one segment.
type Fetcher interface {
	FetchSegment(ctx context.Context, seg models.Segment) ([]byte, error)
}

// Store is the subset of the segment cache the scheduler needs.
type Store interface {
	Exists(fingerprint string, sequence int) bool
	Store(fingerprint string, sequence int, data []byte) error
}

// Options tunes a Scheduler. Zero values take the defaults.
type Options struct {
	Workers          int
	MaxRetries       int
	Backoff          time.Duration
	ProgressInterval time.Duration
}

// Outcome summarizes one scheduler run.
type Outcome struct {
	Total      int
	Cached     int
	Needed     int
	Downloaded int
	Failed     int
	Bytes      int64
	Elapsed    time.Duration
	// Failures maps each failed sequence to its last error.
	Failures map[int]error
}

// FailedSequences returns the failed sequence numbers in ascending order.
func (o *Outcome) FailedSequences() []int {
	seqs := make([]int, 0, len(o.Failures))
	for seq := range o.Failures {
		seqs = append(seqs, seq)
	}
	slices.Sort(seqs)
	return seqs
}

// OK reports whether every segment is available.
func (o *Outcome) OK() bool {
	return o.Failed == 0
}

// Scheduler downloads the segments missing from the cache on a bounded
// worker pool. Completion order is arbitrary; callers read segments back
// from the cache in sequence order.
type Scheduler struct {
	fetcher Fetcher
	store   Store
	opts    Options
	logger  logger.Logger
	sleep   func(time.Duration)
}

// NewScheduler creates a scheduler.
func NewScheduler(fetcher Fetcher, store Store, opts Options, log logger.Logger) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultRetries
	}
	if opts.Backoff < 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = progressEvery
	}
	return &Scheduler{
		fetcher: fetcher,
		store:   store,
		opts:    opts,
		logger:  log,
		sleep:   time.Sleep,
	}
}

// Partition splits segments into those already cached and those to fetch.
func (s *Scheduler) Partition(fingerprint string, segments []models.Segment) (cached, needed []models.Segment) {
	for _, seg := range segments {
		if s.store.Exists(fingerprint, seg.Sequence) {
			cached = append(cached, seg)
		} else {
			needed = append(needed, seg)
		}
	}
	return cached, needed
}

// Run downloads every uncached segment. Per-segment failures are recorded
// in the outcome and never abort the other downloads. An error is returned
// only when the worker pool cannot be created.
func (s *Scheduler) Run(fingerprint string, segments []models.Segment) (*Outcome, error) {
	start := time.Now()
	cached, needed := s.Partition(fingerprint, segments)
	out := &Outcome{
		Total:    len(segments),
		Cached:   len(cached),
		Needed:   len(needed),
		Failures: make(map[int]error),
	}
	s.logger.Infof("Segments: %d total, %d cached, %d to download", out.Total, out.Cached, out.Needed)

	if len(needed) == 0 {
		out.Elapsed = time.Since(start)
		return out, nil
	}

	pool, err := ants.NewPool(s.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg         sync.WaitGroup
		downloaded atomic.Int64
		failed     atomic.Int64
		bytes      = xsync.NewCounter()
		failures   = xsync.NewMapOf[int, error]()
	)

	stop := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		s.reportProgress(stop, len(needed), &downloaded, &failed, bytes)
	}()

	for _, seg := range needed {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			job := &segmentJob{seg: seg}
			for !job.done() {
				s.step(fingerprint, job)
			}
			if job.state == stateSucceeded {
				downloaded.Add(1)
				bytes.Add(int64(job.size))
				return
			}
			failed.Add(1)
			failures.Store(seg.Sequence, job.lastErr)
			s.logger.Warnf("Segment %d failed after %d attempts: %v", seg.Sequence, job.attempt, job.lastErr)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			failures.Store(seg.Sequence, fmt.Errorf("failed to schedule segment: %w", submitErr))
		}
	}
	wg.Wait()
	close(stop)
	<-progressDone

	out.Downloaded = int(downloaded.Load())
	out.Failed = int(failed.Load())
	out.Bytes = bytes.Value()
	failures.Range(func(seq int, err error) bool {
		out.Failures[seq] = err
		return true
	})
	out.Elapsed = time.Since(start)

	s.logger.Infof("Download finished: %d downloaded, %d failed, %d bytes in %s",
		out.Downloaded, out.Failed, out.Bytes, out.Elapsed.Round(time.Millisecond))
	return out, nil
}

func (s *Scheduler) reportProgress(stop <-chan struct{}, needed int, downloaded, failed *atomic.Int64, bytes *xsync.Counter) {
	ticker := time.NewTicker(s.opts.ProgressInterval)
	defer ticker.Stop()

	var lastBytes int64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			total := bytes.Value()
			speed := float64(total-lastBytes) / s.opts.ProgressInterval.Seconds()
			lastBytes = total
			s.logger.Infof("Progress: %d/%d downloaded, %d failed, %.1f KiB/s",
				downloaded.Load(), needed, failed.Load(), speed/1024)
		}
	}
}
