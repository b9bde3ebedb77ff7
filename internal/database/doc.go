// Package database archives finished crawl reports in SQLite.
//
// Each run is stored twice: the full report as JSON in crawl_runs, and a
// per-page index (URL, status, content hash) in pages. The index lets the
// history command diff two runs of the same start URL without decoding
// whole reports.
//
// The archive uses modernc.org/sqlite, a CGO-free driver, in WAL mode.
// It is write-once history: crawls never resume from it.
package database
