// Package fetcher downloads pages for the crawler.
//
// A fetch is a single GET attempt bounded by a per-request timeout. There are
// no retries: a failed page is reported and the crawl moves on. Failures are
// classified as model.FetchError values (timeout, connection, http-status)
// so the crawl report can give a precise reason for every failed URL.
//
// NewHTTPClient builds the shared client. It can route traffic through a
// SOCKS5 proxy and injects configured cookies and headers into every request.
package fetcher
