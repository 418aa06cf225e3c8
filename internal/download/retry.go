package download

import (
	"context"
	"m3u8dl/internal/models"
	"time"
)

type segmentState int

const (
	statePending segmentState = iota
	stateAttempting
	stateSucceeded
	stateFailed
)

func (s segmentState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAttempting:
		return "attempting"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// segmentJob tracks one segment through
// Pending -> Attempting(n) -> Succeeded | Attempting(n+1) | Failed.
type segmentJob struct {
	seg     models.Segment
	state   segmentState
	attempt int
	lastErr error
	size    int
}

func (j *segmentJob) done() bool {
	return j.state == stateSucceeded || j.state == stateFailed
}

// backoff returns the wait after the given failed attempt.
func backoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}

// step performs one transition of the job.
func (s *Scheduler) step(fingerprint string, job *segmentJob) {
	switch job.state {
	case statePending:
		job.state = stateAttempting
		job.attempt = 1
	case stateAttempting:
		size, err := s.attempt(fingerprint, job.seg)
		if err == nil {
			job.state = stateSucceeded
			job.size = size
			job.lastErr = nil
			return
		}
		job.lastErr = err
		if job.attempt >= s.opts.MaxRetries {
			job.state = stateFailed
			return
		}
		s.logger.Debugf("Segment %d attempt %d/%d failed: %v", job.seg.Sequence, job.attempt, s.opts.MaxRetries, err)
		s.sleep(backoff(s.opts.Backoff, job.attempt))
		job.attempt++
	}
}

// attempt fetches once and commits the bytes to the cache before reporting success.
func (s *Scheduler) attempt(fingerprint string, seg models.Segment) (int, error) {
	data, err := s.fetcher.FetchSegment(context.Background(), seg)
	if err != nil {
		return 0, err
	}
	if err := s.store.Store(fingerprint, seg.Sequence, data); err != nil {
		return 0, err
	}
	return len(data), nil
}
