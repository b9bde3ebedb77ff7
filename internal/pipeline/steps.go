package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/nao1215/sitedigest/internal/model"
	"github.com/nao1215/sitedigest/internal/report"
)

// Submitter runs a crawl job to completion. *crawler.Crawler implements it.
type Submitter interface {
	Submit(ctx context.Context, job model.CrawlJob) (*model.CrawlReport, error)
}

// Archiver stores finished reports. *database.Archive implements it.
type Archiver interface {
	SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// errNoSubmitter is returned by a CrawlStep built without a Submitter.
var errNoSubmitter = errors.New("crawl step has no submitter")

// CrawlStep runs the job and stores the report in the run.
type CrawlStep struct {
	submitter Submitter
	logger    *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step that submits jobs to submitter.
func NewCrawlStep(submitter Submitter, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl. Only configuration errors are returned; page failures
// are part of the report.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	if s.submitter == nil {
		return errNoSubmitter
	}
	rep, err := s.submitter.Submit(ctx, run.Job)
	if err != nil {
		return err
	}
	run.Report = rep

	s.logger.Info("crawl finished",
		"start_url", rep.StartURL,
		"pages_crawled", rep.PagesCrawled,
		"pages_failed", rep.PagesFailed,
		"skipped", len(rep.Skipped),
		"stop_reason", rep.StopReason,
		"elapsed", rep.Elapsed,
	)
	return nil
}

// ReportStep writes the report with a report.Writer.
//
// Several pipelines of a batch may share one ReportStep output; the lock
// keeps their reports from interleaving.
type ReportStep struct {
	writer      report.Writer
	summaryOnly bool
	mu          sync.Locker
}

// ReportStepOption configures a ReportStep.
type ReportStepOption func(*ReportStep)

// WithSummaryOnly writes the summary instead of the full report.
func WithSummaryOnly(summaryOnly bool) ReportStepOption {
	return func(s *ReportStep) {
		s.summaryOnly = summaryOnly
	}
}

// WithOutputLock serializes writes with mu.
func WithOutputLock(mu sync.Locker) ReportStepOption {
	return func(s *ReportStep) {
		s.mu = mu
	}
}

// NewReportStep creates a step that writes reports to writer.
func NewReportStep(writer report.Writer, opts ...ReportStepOption) *ReportStep {
	s := &ReportStep{writer: writer, mu: &sync.Mutex{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do writes the report. A run without a report is skipped.
func (s *ReportStep) Do(_ context.Context, run *Run) error {
	if run.Report == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.summaryOnly {
		_, err = s.writer.WriteSummary(report.NewSummary(run.Report))
	} else {
		_, err = s.writer.Write(run.Report)
	}
	return err
}

// URLListStep writes the processed URLs of the run, one per line.
type URLListStep struct {
	output io.Writer
	mu     sync.Locker
}

// NewURLListStep creates a step that writes processed URLs to output.
// mu may be nil when output is not shared.
func NewURLListStep(output io.Writer, mu sync.Locker) *URLListStep {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &URLListStep{output: output, mu: mu}
}

// Name returns the step name.
func (s *URLListStep) Name() string {
	return "url_list"
}

// Do writes the URL list. A run without a report is skipped.
func (s *URLListStep) Do(_ context.Context, run *Run) error {
	if run.Report == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := report.WriteURLList(s.output, run.Report)
	return err
}

// ArchiveStep saves the report in the archive so later runs can be compared.
type ArchiveStep struct {
	archive Archiver
	logger  *slog.Logger
}

// ArchiveStepOption configures an ArchiveStep.
type ArchiveStepOption func(*ArchiveStep)

// WithArchiveLogger sets a custom logger for the archive step.
func WithArchiveLogger(logger *slog.Logger) ArchiveStepOption {
	return func(s *ArchiveStep) {
		s.logger = logger
	}
}

// NewArchiveStep creates a step that saves reports to archive.
func NewArchiveStep(archive Archiver, opts ...ArchiveStepOption) *ArchiveStep {
	s := &ArchiveStep{
		archive: archive,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do saves the report. Canceled crawls are not archived: their page sets
// are incomplete and would show up as removals in the next diff.
func (s *ArchiveStep) Do(ctx context.Context, run *Run) error {
	if run.Report == nil {
		return nil
	}
	if run.Report.Canceled() {
		s.logger.Info("not archiving canceled crawl", "start_url", run.Report.StartURL)
		return nil
	}

	// The crawl may have used up the caller's deadline; the write must still happen.
	id, err := s.archive.SaveReport(context.WithoutCancel(ctx), run.Report)
	if err != nil {
		return err
	}
	run.RunID = id
	s.logger.Debug("report archived", "start_url", run.Report.StartURL, "run_id", id)
	return nil
}
