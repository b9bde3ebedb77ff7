package report

import (
	"fmt"
	"time"

	"github.com/nao1215/sitedigest/internal/model"
)

// Summary is the condensed view of a CrawlReport that every format starts from.
type Summary struct {
	StartURL     string           `json:"start_url"`
	DateCrawled  time.Time        `json:"date_crawled"`
	Elapsed      time.Duration    `json:"elapsed"`
	StopReason   model.StopReason `json:"stop_reason"`
	PagesCrawled int              `json:"pages_crawled"`
	PagesOK      int              `json:"pages_ok"`
	PagesFailed  int              `json:"pages_failed"`
	PartialPages int              `json:"partial_pages"`
	Kinds        map[string]int   `json:"kinds"`
	Failures     []model.Failure  `json:"failures"`
	Skipped      []model.Skip     `json:"skipped,omitempty"`
}

// kindOrder is the display order of content kinds.
var kindOrder = []model.ContentKind{model.KindHTML, model.KindPDF, model.KindEPUB, model.KindOther}

// NewSummary builds the summary of report.
func NewSummary(report *model.CrawlReport) *Summary {
	s := &Summary{
		StartURL:     report.StartURL,
		DateCrawled:  report.StartedAt,
		Elapsed:      report.Elapsed,
		StopReason:   report.StopReason,
		PagesCrawled: report.PagesCrawled,
		PagesOK:      report.PagesOK,
		PagesFailed:  report.PagesFailed,
		Kinds:        make(map[string]int),
		Failures:     report.Failures,
		Skipped:      report.Skipped,
	}
	for i := range report.Pages {
		p := &report.Pages[i]
		if !p.OK() {
			continue
		}
		s.Kinds[string(p.Kind)]++
		if p.Partial {
			s.PartialPages++
		}
	}
	return s
}

// Headline is the one-line result, e.g. "Pages crawled: 12. Failed URLs: 1".
func (s *Summary) Headline() string {
	return fmt.Sprintf("Pages crawled: %d. Failed URLs: %d", s.PagesCrawled, s.PagesFailed)
}

// Canceled reports whether the crawl was aborted and the summary is partial.
func (s *Summary) Canceled() bool {
	return s.StopReason == model.StopCanceled
}

// HasFailures reports whether any page failed.
func (s *Summary) HasFailures() bool {
	return len(s.Failures) > 0
}

// StatusText describes how the crawl ended.
func (s *Summary) StatusText() string {
	switch s.StopReason {
	case model.StopCanceled:
		return "Canceled (partial results)"
	case model.StopPageBudget:
		return "Complete (page budget reached)"
	default:
		return "Complete"
	}
}
