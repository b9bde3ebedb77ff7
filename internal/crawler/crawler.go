package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitedigest/internal/extract"
	"github.com/nao1215/sitedigest/internal/fetcher"
	"github.com/nao1215/sitedigest/internal/frontier"
	"github.com/nao1215/sitedigest/internal/linkfilter"
	"github.com/nao1215/sitedigest/internal/model"
	"github.com/nao1215/sitedigest/internal/politeness"
	"github.com/nao1215/sitedigest/internal/progress"
)

// Crawler runs crawl jobs. A Crawler holds no per-job state and may run
// several jobs concurrently; each Submit call builds its own frontier,
// governor and aggregator.
type Crawler struct {
	// client overrides the HTTP client built from the job. Used by tests and
	// by callers that need a custom transport.
	client *http.Client

	// listener receives a progress event for every completed page.
	listener progress.Listener

	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithHTTPClient makes every job use client instead of one built from the
// job's proxy, cookie and header settings.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.client = client
	}
}

// WithProgress registers a listener for progress events. It is called from
// the scheduler goroutine, so it must return quickly.
func WithProgress(l progress.Listener) Option {
	return func(c *Crawler) {
		c.listener = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler.
func New(opts ...Option) *Crawler {
	c := &Crawler{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit runs job to completion and returns its report.
//
// The returned error is non-nil only for configuration errors (bad start
// URL, invalid limits, malformed patterns, bad proxy address), which are
// detected before any request is made. Page failures are recorded in the
// report. When ctx is canceled the crawl stops dispatching, waits for the
// in-flight fetches to observe the cancellation, and returns a partial
// report with StopReason "canceled".
func (c *Crawler) Submit(ctx context.Context, job model.CrawlJob) (*model.CrawlReport, error) {
	job = job.Clone()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	filter, err := linkfilter.New(job)
	if err != nil {
		return nil, err
	}
	seed, err := job.Seed()
	if err != nil {
		return nil, err
	}

	client := c.client
	if client == nil {
		client, err = fetcher.NewHTTPClient(fetcher.ClientOptions{
			ProxyAddress: job.ProxyAddress,
			Cookie:       job.Cookie,
			Headers:      job.Headers,
			Timeout:      job.Timeout * 2,
		})
		if err != nil {
			return nil, fmt.Errorf("build http client: %w", err)
		}
	}

	logger := c.logger.With("start_url", job.StartURL)

	run := &run{
		job:    job,
		filter: filter,
		governor: politeness.New(client,
			politeness.WithDelay(job.Delay),
			politeness.WithUserAgent(job.UserAgent),
			politeness.WithRobots(job.RespectRobots),
			politeness.WithLogger(logger),
		),
		extractor: extract.New(job.Extract, extract.WithLogger(logger)),
		frontier:  frontier.New(),
		logger:    logger,
		state:     model.StateInit,
	}

	run.fetcher = fetcher.New(client,
		fetcher.WithUserAgent(job.UserAgent),
		fetcher.WithTimeout(job.Timeout),
		fetcher.WithMaxBodySize(job.MaxBodySize),
		fetcher.WithRedirectGate(run.clearRedirect),
		fetcher.WithLogger(logger),
	)

	var aggOpts []progress.Option
	if c.listener != nil {
		aggOpts = append(aggOpts, progress.WithListener(c.listener))
	}
	run.agg = progress.New(frontier.Canonicalize(seed), job.MaxPages, aggOpts...)
	defer run.agg.Close()

	return run.execute(ctx, seed), nil
}

// run is the state of one job. Every field except the ones shared with
// workers (governor, fetcher, extractor, filter) is touched only by the
// scheduler goroutine.
type run struct {
	job       model.CrawlJob
	filter    *linkfilter.Filter
	governor  *politeness.Governor
	fetcher   *fetcher.Fetcher
	extractor *extract.Extractor
	frontier  *frontier.Frontier
	agg       *progress.Aggregator
	logger    *slog.Logger
	state     model.JobState
}

// execute is the scheduler loop. It owns the frontier: workers only report
// outcomes on a channel, and newly discovered links are admitted here, so
// the visited check and the budget check can never race.
func (r *run) execute(ctx context.Context, seed *url.URL) *model.CrawlReport {
	r.transition(model.StateRunning)
	r.admit(model.FrontierEntry{
		URL:      frontier.Canonicalize(seed),
		FetchURL: withoutFragment(seed),
		Depth:    0,
	})

	var g errgroup.Group
	g.SetLimit(r.job.Concurrency)
	outcomes := make(chan outcome, r.job.Concurrency)
	inFlight := 0

	for {
		for ctx.Err() == nil && inFlight < r.job.Concurrency {
			entry, ok := r.frontier.Next()
			if !ok {
				break
			}
			inFlight++
			g.Go(func() error {
				outcomes <- r.work(ctx, entry)
				return nil
			})
		}

		if inFlight == 0 {
			break
		}

		out := <-outcomes
		inFlight--
		r.handle(out)
	}
	_ = g.Wait()

	reason := model.StopFrontierExhausted
	switch {
	case ctx.Err() != nil:
		reason = model.StopCanceled
	case r.state == model.StateDraining:
		reason = model.StopPageBudget
	}
	r.transition(model.StateComplete)

	report := r.agg.Report(model.StateComplete, reason)
	r.logger.Info("crawl finished",
		"stop_reason", reason,
		"pages_crawled", report.PagesCrawled,
		"pages_failed", report.PagesFailed,
		"skipped", len(report.Skipped),
		"elapsed", report.Elapsed,
	)
	return report
}

// handle records one outcome and admits the page's in-scope links.
func (r *run) handle(out outcome) {
	switch {
	case out.canceled:
		r.logger.Debug("fetch abandoned", "url", out.entry.URL)
		return
	case out.skipReason != "":
		r.logger.Debug("page skipped", "url", out.entry.URL, "reason", out.skipReason)
		r.agg.Skip(out.entry.URL, out.skipReason)
		return
	}

	r.agg.Record(out.page)
	if !out.page.OK() {
		r.logger.Debug("page failed", "url", out.page.URL, "error", out.page.Error)
		return
	}
	r.logger.Debug("page crawled", "url", out.page.URL, "links", len(out.page.Links))

	if out.entry.Depth >= r.job.MaxDepth {
		return
	}
	for _, link := range out.page.Links {
		if r.state != model.StateRunning {
			return
		}
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if rule := r.filter.Evaluate(u); rule != linkfilter.RuleAccepted {
			r.logger.Debug("link out of scope", "url", link, "rule", rule)
			continue
		}
		r.admit(model.FrontierEntry{
			URL:            frontier.Canonicalize(u),
			FetchURL:       link,
			Depth:          out.entry.Depth + 1,
			DiscoveredFrom: out.entry.URL,
		})
	}
}

// admit queues entry unless it was seen before. Reaching the page budget
// moves the job to DRAINING.
func (r *run) admit(entry model.FrontierEntry) {
	if r.state != model.StateRunning {
		return
	}
	if !r.frontier.Admit(entry) {
		return
	}
	if r.frontier.Admitted() >= r.job.MaxPages {
		r.transition(model.StateDraining)
	}
}

func (r *run) transition(to model.JobState) {
	if r.state == to {
		return
	}
	r.logger.Info("crawl state changed",
		"from", r.state,
		"to", to,
		"admitted", r.frontier.Admitted(),
		"completed", r.agg.Completed(),
	)
	r.state = to
}

// clearRedirect is consulted before every redirect hop. A hop must stay in
// the job's host scope and is then cleared by the governor like any other
// request.
func (r *run) clearRedirect(ctx context.Context, target *url.URL) error {
	if rule := r.filter.EvaluateScope(target); rule != linkfilter.RuleAccepted {
		return fmt.Errorf("%w: %s is out of scope (%s)", fetcher.ErrRedirectBlocked, target, rule)
	}
	decision, err := r.governor.Clear(ctx, target)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: %s: %s", fetcher.ErrRedirectBlocked, target, decision.Reason)
	}
	return nil
}

// withoutFragment returns u as a string without its fragment.
func withoutFragment(u *url.URL) string {
	cu := *u
	cu.Fragment = ""
	cu.RawFragment = ""
	return cu.String()
}
