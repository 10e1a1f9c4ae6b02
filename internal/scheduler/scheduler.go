package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/tanq16/splitdl/internal/config"
	httpdl "github.com/tanq16/splitdl/internal/downloaders/http"
	"github.com/tanq16/splitdl/internal/metrics"
	"github.com/tanq16/splitdl/internal/utils"
)

// Reporter receives per-file status for display. output.Manager satisfies it.
type Reporter interface {
	RegisterFunction(label string) int
	SetMessage(id int, message string)
	SetStatus(id int, status string)
	AddProgressBarToStream(id int, done, total int64, text string)
	Complete(id int, message string)
	ReportError(id int, err error)
}

type Options struct {
	// Client is shared by every file; built from cfg when nil.
	Client     utils.HTTPDoer
	Downloader Attempter
	Reporter   Reporter
	Sleep      func(ctx context.Context, d time.Duration) error
}

type Result struct {
	Job utils.BatchJob
	Err error
}

// BatchError lists the files that failed in a batch. The others completed.
type BatchError struct {
	Failures []Result
	Total    int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d downloads failed", len(e.Failures), e.Total)
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

type Scheduler struct {
	cfg      config.Config
	retrier  *Retrier
	reporter Reporter
	permits  *semaphore.Weighted
	maxFiles int

	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex
}

func New(cfg config.Config, opts Options) *Scheduler {
	downloader := opts.Downloader
	if downloader == nil {
		client := opts.Client
		if client == nil {
			client = utils.NewHTTPClient(cfg.HTTPClientConfig())
		}
		downloader = httpdl.NewDownloader(client, httpdl.Options{
			Workers:         cfg.Workers,
			BufferSize:      cfg.BufferSize,
			MinParallelSize: cfg.MinParallelSize,
			DeferCleanup:    cfg.DeferCleanup,
		})
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = noopReporter{}
	}
	maxFiles := cfg.MaxFiles()
	return &Scheduler{
		cfg: cfg,
		retrier: &Retrier{
			Downloader: downloader,
			Retries:    cfg.Retries,
			Continue:   cfg.Continue,
			MaxBackoff: cfg.MaxBackoff,
			Sleep:      opts.Sleep,
		},
		reporter:  reporter,
		permits:   semaphore.NewWeighted(int64(maxFiles)),
		maxFiles:  maxFiles,
		pathLocks: make(map[string]*sync.Mutex),
	}
}

// Run downloads every job with at most cfg.MaxFiles() files in flight.
func Run(ctx context.Context, jobs []utils.BatchJob, cfg config.Config, opts Options) ([]Result, error) {
	return New(cfg, opts).Run(ctx, jobs)
}

// Run downloads every job and waits for all of them. A failed file never
// stops the others; results come back in submission order.
func (s *Scheduler) Run(ctx context.Context, jobs []utils.BatchJob) ([]Result, error) {
	logger := log.With().Str("op", "scheduler/scheduler").Logger()
	if len(jobs) == 0 {
		logger.Warn().Msg("No downloads to run")
		return nil, nil
	}
	logger.Info().Int("files", len(jobs)).Int("maxFiles", s.maxFiles).Int("workers", s.cfg.Workers).Msg("Starting batch")

	results := make([]Result, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		results[i].Job = job
		funcID := s.reporter.RegisterFunction(job.OutputPath)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i].Err = s.runJob(ctx, job, funcID)
		}()
	}
	wg.Wait()

	var failures []Result
	for _, res := range results {
		if res.Err != nil {
			failures = append(failures, res)
		}
	}
	if len(failures) > 0 {
		logger.Error().Int("failed", len(failures)).Int("total", len(jobs)).Msg("Batch finished with failures")
		return results, &BatchError{Failures: failures, Total: len(jobs)}
	}
	logger.Info().Int("total", len(jobs)).Msg("Batch finished")
	return results, nil
}

func (s *Scheduler) runJob(ctx context.Context, job utils.BatchJob, funcID int) error {
	logger := log.With().Str("op", "scheduler/scheduler").Str("jobId", job.ID).Str("output", job.OutputPath).Logger()
	unlock := s.lockPath(job.OutputPath)
	defer unlock()

	// The permit covers the file's whole lifetime, backoff waits included
	if err := s.permits.Acquire(ctx, 1); err != nil {
		s.finish(funcID, job, err)
		return err
	}
	defer s.permits.Release(1)
	metrics.ActiveFiles.Inc()
	defer metrics.ActiveFiles.Dec()

	s.reporter.SetStatus(funcID, "active")
	s.reporter.SetMessage(funcID, fmt.Sprintf("Downloading %s", job.OutputPath))
	logger.Debug().Str("url", job.URL).Msg("Acquired file permit")
	err := s.retrier.Run(ctx, job, func(done, total int64) {
		s.reporter.AddProgressBarToStream(funcID, done, total, progressText(done, total))
	})
	s.finish(funcID, job, err)
	return err
}

func (s *Scheduler) finish(funcID int, job utils.BatchJob, err error) {
	if err != nil {
		metrics.Files.WithLabelValues("failed").Inc()
		s.reporter.SetMessage(funcID, fmt.Sprintf("Failed %s", job.OutputPath))
		s.reporter.ReportError(funcID, err)
		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			log.Error().Str("op", "scheduler/scheduler").Str("output", job.OutputPath).Int("attempts", exhausted.Attempts).Err(exhausted.Last).Msg("Download failed")
		}
		return
	}
	metrics.Files.WithLabelValues("success").Inc()
	s.reporter.Complete(funcID, fmt.Sprintf("Completed %s", job.OutputPath))
}

// lockPath serializes jobs writing the same output file.
func (s *Scheduler) lockPath(outputPath string) func() {
	key, err := filepath.Abs(outputPath)
	if err != nil {
		key = filepath.Clean(outputPath)
	}
	s.mu.Lock()
	lock, ok := s.pathLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pathLocks[key] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func progressText(done, total int64) string {
	if total <= 0 {
		return utils.FormatBytes(uint64(done))
	}
	return fmt.Sprintf("%s / %s", utils.FormatBytes(uint64(done)), utils.FormatBytes(uint64(total)))
}

type noopReporter struct{}

func (noopReporter) RegisterFunction(string) int { return 0 }
func (noopReporter) SetMessage(int, string) {}
func (noopReporter) SetStatus(int, string) {}
func (noopReporter) AddProgressBarToStream(int, int64, int64, string) {}
func (noopReporter) Complete(int, string) {}
func (noopReporter) ReportError(int, error) {}
