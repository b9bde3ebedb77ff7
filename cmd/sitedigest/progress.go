package main

import (
	"context"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/nao1215/sitedigest/internal/crawler"
	"github.com/nao1215/sitedigest/internal/model"
	crawlprogress "github.com/nao1215/sitedigest/internal/progress"
)

// progressBar renders one tracker per crawl job on stderr.
type progressBar struct {
	pw progress.Writer
}

func newProgressBar(w io.Writer) *progressBar {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetMessageLength(40)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Percentage = true
	pw.Style().Visibility.Value = true
	go pw.Render()
	return &progressBar{pw: pw}
}

// stop flushes the trackers and waits for the renderer to exit.
func (b *progressBar) stop() {
	b.pw.Stop()
	for b.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

// submitter returns a Submitter that feeds every job's progress into its
// own tracker. opts are passed to the crawler created for each job.
func (b *progressBar) submitter(opts ...crawler.Option) *progressSubmitter {
	return &progressSubmitter{bar: b, opts: opts}
}

type progressSubmitter struct {
	bar  *progressBar
	opts []crawler.Option
}

// Submit crawls job while updating its tracker.
func (s *progressSubmitter) Submit(ctx context.Context, job model.CrawlJob) (*model.CrawlReport, error) {
	tracker := &progress.Tracker{
		Message: job.StartURL,
		Total:   int64(job.MaxPages),
		Units:   progress.UnitsDefault,
	}
	s.bar.pw.AppendTracker(tracker)

	var listener crawlprogress.Listener = func(ev model.ProgressEvent) {
		tracker.SetValue(int64(ev.Completed))
	}
	opts := append(append([]crawler.Option{}, s.opts...), crawler.WithProgress(listener))

	report, err := crawler.New(opts...).Submit(ctx, job)
	if err != nil || report == nil || report.StopReason == model.StopCanceled {
		tracker.MarkAsErrored()
		return report, err
	}
	// The frontier usually runs dry long before the page budget.
	tracker.UpdateTotal(int64(report.PagesCrawled))
	tracker.MarkAsDone()
	return report, nil
}
