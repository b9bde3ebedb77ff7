// Package crawler runs breadth-first crawl jobs.
//
// # Architecture
//
// A job is driven by a single scheduler goroutine that owns the frontier and
// the visited set. Fetches run on a bounded pool of workers
// (errgroup.SetLimit) and report back over a channel; only the scheduler
// admits new links. That keeps deduplication and the page budget exact
// without locking the frontier.
//
//	Submit -> scheduler ---dispatch---> worker: governor -> fetcher -> extractor
//	              ^                                                     |
//	              +--------------------- outcome -----------------------+
//
// # Lifecycle
//
// A job moves INIT -> RUNNING -> (DRAINING) -> COMPLETE. RUNNING admits new
// links. When the number of admitted URLs reaches max pages the job drains:
// nothing more is admitted, but everything already queued or in flight is
// still fetched. COMPLETE is reached when the queue is empty and no fetch is
// in flight, or when the context is canceled.
//
// # Politeness
//
//   - at most one request per host every delay (robots.txt Crawl-delay may raise it)
//   - robots.txt compliance when enabled
//   - a bounded number of concurrent fetches
//   - single attempt per URL, no retries
//
// # Usage
//
//	job := model.NewCrawlJob("https://example.com/docs/")
//	job.MaxDepth = 2
//	report, err := crawler.New().Submit(ctx, job)
package crawler
