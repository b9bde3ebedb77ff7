package model

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"
)

// PageStatus is the outcome of a single fetch attempt.
type PageStatus string

const (
	// StatusOK means the page was fetched and its content extracted.
	StatusOK PageStatus = "ok"

	// StatusFailed means the fetch or the extraction failed; Error holds the reason.
	StatusFailed PageStatus = "failed"
)

// ContentKind is the closed set of content types the extractor understands.
type ContentKind string

const (
	// KindHTML is text/html or application/xhtml+xml.
	KindHTML ContentKind = "html"

	// KindPDF is application/pdf.
	KindPDF ContentKind = "pdf"

	// KindEPUB is application/epub+zip.
	KindEPUB ContentKind = "epub"

	// KindOther is anything else; it is reported as unsupported.
	KindOther ContentKind = "other"
)

// FrontierEntry is a URL waiting to be fetched.
type FrontierEntry struct {
	// URL is the canonical URL. It keys the visited set and the report.
	URL string

	// FetchURL is the URL as discovered, without its fragment. It is the
	// one requested, so /docs/ is not fetched as /docs.
	FetchURL string

	// Depth is the number of link hops from the seed. The seed has depth 0.
	Depth int

	// DiscoveredFrom is the canonical URL of the page that linked here.
	// Empty for the seed.
	DiscoveredFrom string
}

// Target returns the URL to request: FetchURL, or URL when FetchURL is empty.
func (e FrontierEntry) Target() string {
	if e.FetchURL != "" {
		return e.FetchURL
	}
	return e.URL
}

// Heading is an h1-h6 element.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// CodeBlock is a <pre> or standalone <code> element.
type CodeBlock struct {
	// Language comes from a language-* or lang-* class, if any.
	Language string `json:"language,omitempty"`
	Code     string `json:"code"`
}

// Image is an <img> reference resolved against the page URL.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// PageResult is the outcome of one attempted fetch. It is immutable once the
// worker hands it to the scheduler.
type PageResult struct {
	// URL is the canonical URL that was requested.
	URL string `json:"url"`

	// Depth is the link distance from the seed.
	Depth int `json:"depth"`

	// DiscoveredFrom is the page that linked here; empty for the seed.
	DiscoveredFrom string `json:"discovered_from,omitempty"`

	// Status is ok or failed.
	Status PageStatus `json:"status"`

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Kind is the detected content kind.
	Kind ContentKind `json:"kind,omitempty"`

	// Title is the document title, when one exists.
	Title string `json:"title,omitempty"`

	// Content is the extracted, cleaned content.
	Content string `json:"content,omitempty"`

	// ContentHash is the SHA3-256 digest of Content, hex encoded.
	ContentHash string `json:"content_hash,omitempty"`

	// Links are the outbound links found on the page, resolved and without fragments.
	// They are recorded before any scope filtering.
	Links []string `json:"links,omitempty"`

	// Images are collected only when IncludeImages is set.
	Images []Image `json:"images,omitempty"`

	// Headings are collected only when ExtractHeadings is set.
	Headings []Heading `json:"headings,omitempty"`

	// CodeBlocks are collected only when IncludeCode is set.
	CodeBlocks []CodeBlock `json:"code_blocks,omitempty"`

	// Partial is true when part of the document could not be extracted
	// (for example a single unreadable PDF page).
	Partial bool `json:"partial,omitempty"`

	// Error is the failure reason when Status is failed.
	Error string `json:"error,omitempty"`

	// Elapsed is the wall time spent fetching and extracting.
	Elapsed time.Duration `json:"elapsed"`
}

// OK reports whether the page was fetched successfully.
func (p *PageResult) OK() bool {
	return p.Status == StatusOK
}

// ComputeHash sets ContentHash from Content. An empty content has no hash.
func (p *PageResult) ComputeHash() {
	if p.Content == "" {
		p.ContentHash = ""
		return
	}
	sum := sha3.Sum256([]byte(p.Content))
	p.ContentHash = hex.EncodeToString(sum[:])
}
