package crawler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/nao1215/sitedigest/internal/extract"
	"github.com/nao1215/sitedigest/internal/model"
)

// outcome is what a worker reports back to the scheduler for one entry.
// Exactly one of the three shapes is set: a page (ok or failed), a skip
// reason, or canceled.
type outcome struct {
	entry      model.FrontierEntry
	page       model.PageResult
	skipReason string
	canceled   bool
}

// work clears, fetches and extracts a single frontier entry. It never
// touches the frontier or the aggregator.
func (r *run) work(ctx context.Context, entry model.FrontierEntry) outcome {
	out := outcome{entry: entry}
	start := time.Now()

	u, err := url.Parse(entry.Target())
	if err != nil {
		out.page = failedPage(entry, start, err.Error())
		return out
	}

	decision, err := r.governor.Clear(ctx, u)
	if err != nil {
		out.canceled = true
		return out
	}
	if !decision.Allowed {
		out.skipReason = decision.Reason
		return out
	}

	resp, err := r.fetcher.Fetch(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			out.canceled = true
			return out
		}
		page := failedPage(entry, start, err.Error())
		var fe *model.FetchError
		if errors.As(err, &fe) {
			page.StatusCode = fe.StatusCode
		}
		out.page = page
		return out
	}

	content, err := r.extractor.Extract(ctx, resp)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			out.canceled = true
		case errors.Is(err, extract.ErrKindDisabled):
			out.skipReason = err.Error()
		default:
			page := failedPage(entry, start, err.Error())
			page.StatusCode = resp.StatusCode
			page.Kind = resp.Kind
			out.page = page
		}
		return out
	}

	page := model.PageResult{
		URL:            entry.URL,
		Depth:          entry.Depth,
		DiscoveredFrom: entry.DiscoveredFrom,
		Status:         model.StatusOK,
		StatusCode:     resp.StatusCode,
		Kind:           resp.Kind,
		Title:          content.Title,
		Content:        content.Text,
		Links:          content.Links,
		Images:         content.Images,
		Headings:       content.Headings,
		CodeBlocks:     content.CodeBlocks,
		Partial:        content.Partial,
		Elapsed:        time.Since(start),
	}
	page.ComputeHash()
	out.page = page
	return out
}

func failedPage(entry model.FrontierEntry, start time.Time, reason string) model.PageResult {
	return model.PageResult{
		URL:            entry.URL,
		Depth:          entry.Depth,
		DiscoveredFrom: entry.DiscoveredFrom,
		Status:         model.StatusFailed,
		Error:          reason,
		Elapsed:        time.Since(start),
	}
}
