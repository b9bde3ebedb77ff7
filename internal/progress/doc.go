// Package progress aggregates page results into progress events and the
// final crawl report.
//
// The Aggregator counts completed pages, emits one ProgressEvent per page
// to a listener or a buffered channel, and builds the CrawlReport once the
// job stops.
package progress
