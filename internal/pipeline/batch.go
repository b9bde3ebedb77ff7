package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitedigest/internal/model"
)

// DefaultBatchConcurrency is the number of jobs crawled at once.
const DefaultBatchConcurrency = 2

// BatchProcessor runs several crawl jobs concurrently, one pipeline per job.
// Each job keeps its own per-job concurrency; the batch limit bounds how many
// jobs run side by side.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each job.
	pipelineFactory func() *Pipeline

	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every job and returns the runs in job order.
//
// A failed job does not stop the others; its error is in Run.Err. Jobs that
// had not started when ctx was canceled have a nil entry, and the returned
// error is the context error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []model.CrawlJob) ([]*Run, error) {
	results := make([]*Run, len(jobs))
	err := bp.ProcessBatchWithCallback(ctx, jobs, func(run *Run, index int) {
		results[index] = run
	})
	return results, err
}

// ProcessBatchWithCallback runs every job and calls callback as each one
// finishes. The callback is called from the job's goroutine, so it must be
// safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []model.CrawlJob,
	callback func(run *Run, index int),
) error {
	bp.logger.Info("starting batch",
		"total_jobs", len(jobs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling",
				"start_url", job.StartURL,
				"index", i+1,
				"total", len(jobs),
			)

			run := NewRun(job)
			if err := bp.pipelineFactory().Execute(gctx, run); err != nil {
				bp.logger.Warn("job failed",
					"start_url", job.StartURL,
					"error", err,
				)
			}
			callback(run, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch complete",
		"total_jobs", len(jobs),
		"elapsed", time.Since(startTime),
	)
	return err
}
