package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	httpdl "github.com/tanq16/splitdl/internal/downloaders/http"
	"github.com/tanq16/splitdl/internal/metrics"
	"github.com/tanq16/splitdl/internal/progress"
	"github.com/tanq16/splitdl/internal/utils"
)

type RetryState int

const (
	StatePending RetryState = iota
	StateAttempting
	StateBackoffWait
	StateSuccess
	StateExhausted
)

func (s RetryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateBackoffWait:
		return "backoff"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Attempter is the part of httpdl.Downloader the retry loop drives.
type Attempter interface {
	Probe(ctx context.Context, link, outputPath string) (*httpdl.DownloadJob, error)
	Attempt(ctx context.Context, link, outputPath string, resume bool, onProgress progress.ProgressFunc) error
}

// ExhaustedError is returned once every attempt for a file has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("download failed after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Retrier re-runs whole-file attempts with exponential backoff. Attempt k
// (from 0) that fails waits 2^k seconds before the next one. Continue lets
// the first attempt resume chunk files left by an earlier run.
type Retrier struct {
	Downloader Attempter
	Retries    int
	Continue   bool
	MaxBackoff time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	OnState    func(job utils.BatchJob, state RetryState, attempt int)
}

func (r *Retrier) Run(ctx context.Context, job utils.BatchJob, onProgress progress.ProgressFunc) error {
	logger := log.With().Str("op", "scheduler/retry").Str("jobId", job.ID).Str("output", job.OutputPath).Logger()
	retries := max(1, r.Retries)
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	r.transition(job, StatePending, 0)

	var lastErr error
	for k := range retries {
		r.transition(job, StateAttempting, k)
		resume := k > 0 || r.Continue
		lastErr = r.Downloader.Attempt(ctx, job.URL, job.OutputPath, resume, onProgress)
		if lastErr == nil {
			metrics.Attempts.WithLabelValues("success").Inc()
			r.transition(job, StateSuccess, k)
			return nil
		}
		metrics.Attempts.WithLabelValues("failed").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(lastErr).Int("attempt", k+1).Int("retries", retries).Msg("Download attempt failed")
		if k == retries-1 {
			break
		}

		// A failure reported after the bytes all landed still counts
		if probed, err := r.Downloader.Probe(ctx, job.URL, job.OutputPath); err == nil && httpdl.OutputComplete(job.OutputPath, probed.TotalSize) {
			logger.Info().Int64("size", probed.TotalSize).Msg("Output already complete after failed attempt")
			r.transition(job, StateSuccess, k)
			return nil
		}

		wait := r.backoff(k)
		r.transition(job, StateBackoffWait, k)
		logger.Debug().Dur("backoff", wait).Msg("Waiting before next attempt")
		metrics.BackoffSeconds.Add(wait.Seconds())
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	r.transition(job, StateExhausted, retries-1)
	return &ExhaustedError{Attempts: retries, Last: lastErr}
}

// backoff returns 2^k seconds, capped by MaxBackoff when set.
func (r *Retrier) backoff(k int) time.Duration {
	wait := time.Duration(math.MaxInt64)
	if k < 33 {
		wait = time.Second << k
	}
	if r.MaxBackoff > 0 && wait > r.MaxBackoff {
		wait = r.MaxBackoff
	}
	return wait
}

func (r *Retrier) transition(job utils.BatchJob, state RetryState, attempt int) {
	if r.OnState != nil {
		r.OnState(job, state, attempt)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
