package model

import (
	"time"
)

// JobState is the lifecycle state of a crawl job.
//
// A job moves INIT -> RUNNING -> (DRAINING) -> COMPLETE. DRAINING is entered
// when the page budget is reached: nothing new is admitted, but queued and
// in-flight entries still finish.
type JobState string

const (
	// StateInit is a job that has been validated but not started.
	StateInit JobState = "init"

	// StateRunning is a job that still admits new frontier entries.
	StateRunning JobState = "running"

	// StateDraining is a job whose page budget is exhausted.
	StateDraining JobState = "draining"

	// StateComplete is a finished job.
	StateComplete JobState = "complete"
)

// StopReason explains why a job reached COMPLETE.
type StopReason string

const (
	// StopFrontierExhausted means every reachable in-scope page was processed.
	StopFrontierExhausted StopReason = "frontier-exhausted"

	// StopPageBudget means max pages was reached and the drain finished.
	StopPageBudget StopReason = "page-budget"

	// StopCanceled means the caller canceled the context (signal or --max-time).
	StopCanceled StopReason = "canceled"
)

// Failure is a URL whose fetch or extraction failed.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Skip is a URL that was admitted but never fetched, such as a page denied by
// robots.txt. Skips are not failures.
type Skip struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// CrawlReport is the summary of a finished (or canceled) crawl.
//
// PagesCrawled counts attempted fetches that produced a PageResult, so
// PagesCrawled == PagesOK + PagesFailed and len(Failures) == PagesFailed.
type CrawlReport struct {
	// StartURL is the canonical seed URL.
	StartURL string `json:"start_url"`

	// PagesCrawled is the number of PageResults produced.
	PagesCrawled int `json:"pages_crawled"`

	// PagesOK is the number of successful PageResults.
	PagesOK int `json:"pages_ok"`

	// PagesFailed is the number of failed PageResults.
	PagesFailed int `json:"pages_failed"`

	// Failures lists every failed URL with its reason, in completion order.
	Failures []Failure `json:"failures"`

	// Skipped lists admitted URLs that were never fetched.
	Skipped []Skip `json:"skipped,omitempty"`

	// Pages holds every PageResult in completion order.
	Pages []PageResult `json:"pages"`

	// State is always StateComplete for a returned report.
	State JobState `json:"state"`

	// StopReason explains why the crawl ended.
	StopReason StopReason `json:"stop_reason"`

	// StartedAt is when the seed was admitted.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total crawl duration.
	Elapsed time.Duration `json:"elapsed"`
}

// ProcessedURLs returns the URL of every PageResult in completion order.
func (r *CrawlReport) ProcessedURLs() []string {
	urls := make([]string, 0, len(r.Pages))
	for i := range r.Pages {
		urls = append(urls, r.Pages[i].URL)
	}
	return urls
}

// Canceled reports whether the crawl ended early because its context was canceled.
func (r *CrawlReport) Canceled() bool {
	return r.StopReason == StopCanceled
}
