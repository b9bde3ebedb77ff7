package progress

import (
	"sync"
	"time"

	"github.com/nao1215/sitedigest/internal/model"
)

// maxEventBuffer caps the event channel buffer for very large page budgets.
const maxEventBuffer = 4096

// Listener receives progress events synchronously, in order.
type Listener func(model.ProgressEvent)

// Aggregator collects page results and skips for one crawl job.
//
// Record is safe for concurrent use, but in sitedigest it is only called
// from the scheduler goroutine, which also guarantees that events are
// emitted in completion order with a strictly increasing Completed count.
type Aggregator struct {
	startURL  string
	maxPages  int
	startedAt time.Time

	mu        sync.Mutex
	pages     []model.PageResult
	failures  []model.Failure
	skipped   []model.Skip
	completed int
	ok        int
	failed    int

	listener Listener
	events   chan model.ProgressEvent
	closed   bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithListener registers a callback invoked for every event. A slow
// listener slows the crawl down; it never loses events.
func WithListener(l Listener) Option {
	return func(a *Aggregator) {
		a.listener = l
	}
}

// WithEventChannel enables Events. The channel is buffered with room for
// min(maxPages, 4096) events and closed by Close.
func WithEventChannel() Option {
	return func(a *Aggregator) {
		size := a.maxPages
		if size > maxEventBuffer {
			size = maxEventBuffer
		}
		if size < 1 {
			size = 1
		}
		a.events = make(chan model.ProgressEvent, size)
	}
}

// New creates an Aggregator for a job whose seed is startURL.
func New(startURL string, maxPages int, opts ...Option) *Aggregator {
	a := &Aggregator{
		startURL:  startURL,
		maxPages:  maxPages,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Events returns the event channel, or nil when WithEventChannel was not given.
// The consumer must keep reading until the channel is closed.
func (a *Aggregator) Events() <-chan model.ProgressEvent {
	return a.events
}

// Record adds a completed page and emits one progress event.
func (a *Aggregator) Record(page model.PageResult) {
	a.mu.Lock()
	a.pages = append(a.pages, page)
	a.completed++
	if page.Status == model.StatusOK {
		a.ok++
	} else {
		a.failed++
		a.failures = append(a.failures, model.Failure{URL: page.URL, Reason: page.Error})
	}
	ev := model.ProgressEvent{
		URL:       page.URL,
		Status:    page.Status,
		Completed: a.completed,
		MaxPages:  a.maxPages,
	}
	listener := a.listener
	events := a.events
	closed := a.closed
	a.mu.Unlock()

	if listener != nil {
		listener(ev)
	}
	if events != nil && !closed {
		events <- ev
	}
}

// Skip records an admitted URL that was not fetched. Skips do not advance
// the progress counter.
func (a *Aggregator) Skip(url, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped = append(a.skipped, model.Skip{URL: url, Reason: reason})
}

// Completed returns the number of recorded pages.
func (a *Aggregator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Ratio returns Completed/MaxPages in [0, 1]. It never decreases.
func (a *Aggregator) Ratio() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.ProgressEvent{Completed: a.completed, MaxPages: a.maxPages}.Ratio()
}

// Report builds the final report. The returned slices are copies.
func (a *Aggregator) Report(state model.JobState, reason model.StopReason) *model.CrawlReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &model.CrawlReport{
		StartURL:     a.startURL,
		PagesCrawled: a.completed,
		PagesOK:      a.ok,
		PagesFailed:  a.failed,
		Failures:     append([]model.Failure{}, a.failures...),
		Skipped:      append([]model.Skip(nil), a.skipped...),
		Pages:        append([]model.PageResult{}, a.pages...),
		State:        state,
		StopReason:   reason,
		StartedAt:    a.startedAt,
		Elapsed:      time.Since(a.startedAt),
	}
}

// Close closes the event channel. Record must not be called afterwards.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.events != nil && !a.closed {
		close(a.events)
	}
	a.closed = true
}
