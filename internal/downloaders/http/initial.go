package httpdl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanq16/splitdl/internal/progress"
	"github.com/tanq16/splitdl/internal/utils"
)

type Options struct {
	Workers          int
	BufferSize       int
	MinParallelSize  int64
	DeferCleanup     bool
	ProgressInterval time.Duration
}

// Downloader runs single download attempts against a shared client.
type Downloader struct {
	client utils.HTTPDoer
	opts   Options
}

func NewDownloader(client utils.HTTPDoer, opts Options) *Downloader {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = utils.DefaultBufferSize
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 100 * time.Millisecond
	}
	return &Downloader{client: client, opts: opts}
}

func (d *Downloader) Probe(ctx context.Context, link, outputPath string) (*DownloadJob, error) {
	return Probe(ctx, d.client, link, outputPath)
}

// Attempt makes one full pass at link: probe, plan, fetch every chunk in
// parallel, then merge. With resume set, chunk files left by an earlier
// attempt are continued instead of refetched.
func (d *Downloader) Attempt(ctx context.Context, link, outputPath string, resume bool, onProgress progress.ProgressFunc) error {
	logger := log.With().Str("op", "http/initial").Str("url", link).Str("output", outputPath).Logger()
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &IOError{Path: dir, Err: err}
		}
	}

	job, err := d.Probe(ctx, link, outputPath)
	if err != nil {
		return err
	}
	if OutputComplete(outputPath, job.TotalSize) {
		logger.Info().Int64("size", job.TotalSize).Msg("Output already complete, skipping download")
		if onProgress != nil {
			onProgress(job.TotalSize, job.TotalSize)
		}
		return nil
	}

	validator := job.RangeValidator()
	if err := syncResumeMeta(outputPath, validator, resume); err != nil {
		return err
	}

	plan := PlanChunks(job.TotalSize, job.SupportsRanges, d.opts.Workers, d.opts.MinParallelSize)
	logger.Debug().Stringer("plan", plan).Bool("resume", resume).Msg("Starting attempt")

	state := progress.NewState(job.TotalSize)
	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		progress.Watch(watchCtx, state, d.opts.ProgressInterval, onProgress)
	}()

	// Every chunk runs to completion before the first failure is reported,
	// so partial chunk files are all flushed for the next attempt.
	var group errgroup.Group
	for _, chunk := range plan.Chunks {
		group.Go(func() error {
			return FetchChunk(ctx, FetchRequest{
				Client:         d.client,
				URL:            link,
				Chunk:          chunk,
				Ranged:         plan.Ranged,
				SupportsRanges: job.SupportsRanges,
				TempPath:       ChunkFileName(outputPath, chunk.Index),
				Resume:         resume,
				Validator:      validator,
				BufferSize:     d.opts.BufferSize,
				Progress:       state,
			})
		})
	}
	err = group.Wait()
	stopWatch()
	<-watchDone
	if err != nil {
		logger.Debug().Err(err).Msg("Attempt failed during fetch")
		if errors.Is(err, ErrRemoteChanged) {
			logger.Warn().Msg("Remote file changed during resume, discarding chunk files")
			if cleanErr := utils.CleanFunction(outputPath); cleanErr != nil {
				logger.Error().Err(cleanErr).Msg("Failed to discard chunk files")
			}
		}
		return err
	}

	if err := Assemble(plan, outputPath, AssembleOptions{DeferCleanup: d.opts.DeferCleanup}); err != nil {
		return err
	}
	removeChunkFile(ResumeMetaFileName(outputPath))
	logger.Debug().Int64("bytes", state.Position()).Msg("Attempt completed")
	return nil
}

// syncResumeMeta discards chunk files fetched from an older version of the
// resource and records the current validator for later resumes.
func syncResumeMeta(outputPath, validator string, resume bool) error {
	if validator == "" {
		return nil
	}
	metaPath := ResumeMetaFileName(outputPath)
	if resume {
		if previous, err := os.ReadFile(metaPath); err == nil && string(previous) != validator {
			log.Warn().Str("op", "http/initial").Str("output", outputPath).Str("previous", string(previous)).Str("current", validator).Msg("Remote file changed since the partial download, discarding chunk files")
			if err := utils.CleanFunction(outputPath); err != nil {
				return &IOError{Path: outputPath, Err: err}
			}
		}
	}
	if err := os.WriteFile(metaPath, []byte(validator), 0644); err != nil {
		return &IOError{Path: metaPath, Err: err}
	}
	return nil
}
