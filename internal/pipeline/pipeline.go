package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitedigest/internal/model"
)

// Run carries one crawl job through the pipeline. Steps read the job and
// fill in the remaining fields.
type Run struct {
	// Job is the crawl to perform.
	Job model.CrawlJob

	// Report is set by the crawl step. It stays nil when the job was rejected.
	Report *model.CrawlReport

	// RunID is the archive id of the report, 0 when it was not archived.
	RunID int64

	// Performed lists the steps that ran, in order.
	Performed []string

	// Err is the first step error.
	Err error
}

// NewRun creates a Run for job.
func NewRun(job model.CrawlJob) *Run {
	return &Run{Job: job}
}

// Step is one stage of a run.
type Step interface {
	// Do executes the step. A returned error is recorded in the run and,
	// unless the pipeline continues on error, stops the remaining steps.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. A failed archive write then does not prevent
// the report from being written.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence.
//
// Cancellation stops the pipeline only while no report exists yet. Once
// the crawl step has produced a report, partial or not, the output steps
// still run so that a canceled crawl is reported.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if ctx.Err() != nil && run.Report == nil {
			p.logger.Warn("pipeline canceled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			if run.Err == nil {
				run.Err = ctx.Err()
			}
			return ctx.Err()
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"start_url", run.Job.StartURL,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"start_url", run.Job.StartURL,
				"error", err,
			)
			if run.Err == nil {
				run.Err = err
			}
			if !p.continueOnError {
				return err
			}
		}

		run.Performed = append(run.Performed, step.Name())
	}
	return run.Err
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
