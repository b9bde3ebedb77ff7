// Package model defines the core data structures used throughout sitedigest.
//
// This package contains the following main types:
//   - CrawlJob: The immutable configuration of one crawl
//   - FrontierEntry: A URL waiting to be fetched, with its depth
//   - PageResult: The outcome of one fetch attempt
//   - CrawlReport: The summary returned when a crawl finishes
//   - ProgressEvent: A notification emitted after every fetch attempt
//   - FetchError: A classified per-page failure
//
// Models live in their own package because the crawler, extractor, report
// writers and database all share them and would otherwise import each other.
//
// The models are serializable to JSON for report output and database storage.
package model
