package model

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"time"
)

// Default crawl job values. These match the CLI defaults so that a job built
// programmatically behaves exactly like `sitedigest crawl <url>`.
const (
	// DefaultMaxDepth is the number of link hops followed from the seed.
	DefaultMaxDepth = 3

	// DefaultMaxPages is the ceiling on initiated fetches per job.
	DefaultMaxPages = 1000

	// DefaultConcurrency is the number of fetches allowed in flight.
	DefaultConcurrency = 3

	// DefaultDelay is the minimum interval between two requests to one host.
	DefaultDelay = 250 * time.Millisecond

	// DefaultTimeout bounds a single fetch, including reading the body.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies sitedigest in HTTP requests.
	DefaultUserAgent = "sitedigest/1.0 (+https://github.com/nao1215/sitedigest)"
)

// Job validation errors. Every one of them is a configuration error: the crawl
// is rejected before any request is made.
var (
	// ErrInvalidStartURL is returned when the start URL is not an absolute http(s) URL.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http or https URL")

	// ErrInvalidMaxDepth is returned when max depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when max pages is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidConcurrency is returned when concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidDelay is returned when the per-host delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")
)

// ExtractOptions toggles what the content extractor produces for a page.
type ExtractOptions struct {
	// CleanHTML isolates the main content (readability-style) before serializing.
	CleanHTML bool `json:"clean_html" yaml:"cleanHtml"`

	// StripJS removes <script> and <noscript> elements.
	StripJS bool `json:"strip_js" yaml:"stripJs"`

	// StripCSS removes <style> elements and stylesheet links.
	StripCSS bool `json:"strip_css" yaml:"stripCss"`

	// StripComments removes HTML comments.
	StripComments bool `json:"strip_comments" yaml:"stripComments"`

	// ExtractHeadings collects h1-h6 as structured headings.
	ExtractHeadings bool `json:"extract_headings" yaml:"extractHeadings"`

	// IncludeCode collects <pre>/<code> blocks.
	IncludeCode bool `json:"include_code" yaml:"includeCode"`

	// IncludeImages collects image URLs.
	IncludeImages bool `json:"include_images" yaml:"includeImages"`

	// IncludePDFs extracts text from PDF documents instead of skipping them.
	IncludePDFs bool `json:"include_pdfs" yaml:"includePdfs"`

	// IgnoreEPUBs skips EPUB documents.
	IgnoreEPUBs bool `json:"ignore_epubs" yaml:"ignoreEpubs"`
}

// DefaultExtractOptions returns the extraction toggles used when none are given.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		CleanHTML:       true,
		StripJS:         true,
		StripCSS:        true,
		StripComments:   true,
		ExtractHeadings: true,
		IncludeCode:     true,
		IncludeImages:   false,
		IncludePDFs:     true,
		IgnoreEPUBs:     true,
	}
}

// CrawlJob is the immutable configuration of a single crawl.
//
// A CrawlJob is a plain value: the scheduler takes a copy when the job is
// submitted and clones the reference-typed fields, so changing the caller's
// value afterwards has no effect on a running crawl.
type CrawlJob struct {
	// StartURL is the seed of the crawl (depth 0).
	StartURL string `json:"start_url"`

	// MaxDepth is the maximum number of link hops from the seed.
	MaxDepth int `json:"max_depth"`

	// MaxPages is a hard ceiling on initiated fetches.
	MaxPages int `json:"max_pages"`

	// Concurrency is the maximum number of fetches in flight.
	Concurrency int `json:"concurrency"`

	// Delay is the minimum interval between requests to the same host.
	Delay time.Duration `json:"delay"`

	// Timeout aborts a single fetch that takes longer than this.
	Timeout time.Duration `json:"timeout"`

	// UserAgent is sent with every request and used for robots.txt matching.
	UserAgent string `json:"user_agent"`

	// IncludePattern, when set, is a regular expression every followed link must match.
	IncludePattern string `json:"include_pattern,omitempty"`

	// ExcludePattern, when set, is a regular expression no followed link may match.
	ExcludePattern string `json:"exclude_pattern,omitempty"`

	// RestrictPath limits the crawl to descendants of the start URL's path.
	RestrictPath bool `json:"restrict_path"`

	// FollowLinks allows leaving the start URL's host.
	FollowLinks bool `json:"follow_links"`

	// RespectRobots enables robots.txt compliance.
	RespectRobots bool `json:"respect_robots"`

	// Extract holds the content-extraction toggles.
	Extract ExtractOptions `json:"extract"`

	// Headers are extra request headers sent with every fetch.
	Headers map[string]string `json:"-"`

	// Cookie is sent verbatim as the Cookie header.
	Cookie string `json:"-"`

	// MaxBodySize limits how many bytes of a response body are read.
	MaxBodySize int64 `json:"max_body_size"`

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string `json:"proxy_address,omitempty"`
}

// NewCrawlJob returns a job for startURL with every other field at its default.
func NewCrawlJob(startURL string) CrawlJob {
	return CrawlJob{
		StartURL:    startURL,
		MaxDepth:    DefaultMaxDepth,
		MaxPages:    DefaultMaxPages,
		Concurrency: DefaultConcurrency,
		Delay:       DefaultDelay,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		Extract:     DefaultExtractOptions(),
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Clone returns a deep copy of the job.
func (j CrawlJob) Clone() CrawlJob {
	cp := j
	if j.Headers != nil {
		cp.Headers = maps.Clone(j.Headers)
	}
	return cp
}

// Seed parses the start URL. It is the single place that decides whether a
// start URL is acceptable.
func (j CrawlJob) Seed() (*url.URL, error) {
	u, err := url.Parse(j.StartURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStartURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidStartURL
	}
	return u, nil
}

// Validate checks the numeric limits and the start URL.
// Pattern syntax is validated by the link filter, which owns the compiled form.
func (j CrawlJob) Validate() error {
	if _, err := j.Seed(); err != nil {
		return err
	}
	if j.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if j.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if j.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if j.Delay < 0 {
		return ErrInvalidDelay
	}
	if j.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if j.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
