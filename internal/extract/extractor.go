package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/sitedigest/internal/fetcher"
	"github.com/nao1215/sitedigest/internal/model"
)

// ErrKindDisabled is returned for PDF or EPUB documents that the job's
// extract options turn off. The crawler records such pages as skipped.
var ErrKindDisabled = errors.New("content kind disabled by extract options")

// Content is what the extractor produces for one document.
type Content struct {
	// Title is the document title.
	Title string

	// Text is the extracted content. Depending on CleanHTML it is either
	// readable text or the stripped HTML markup.
	Text string

	// Links are the outbound page links, absolute, without fragments,
	// deduplicated in document order.
	Links []string

	// Images are collected when IncludeImages is set.
	Images []model.Image

	// Headings are collected when ExtractHeadings is set.
	Headings []model.Heading

	// CodeBlocks are collected when IncludeCode is set.
	CodeBlocks []model.CodeBlock

	// Partial is true when some part of the document could not be read.
	Partial bool
}

// Extractor turns a fetched response into Content.
//
// The extraction strategy is chosen from the closed set of content kinds;
// there is no plugin mechanism. An Extractor holds no per-document state and
// is safe for concurrent use.
type Extractor struct {
	opts   model.ExtractOptions
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor for the given toggles.
func New(opts model.ExtractOptions, options ...Option) *Extractor {
	e := &Extractor{
		opts:   opts,
		logger: slog.Default(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Extract dispatches on resp.Kind. Failures are *model.FetchError values of
// kind extraction or unsupported-content-type, or wrap ErrKindDisabled.
func (e *Extractor) Extract(ctx context.Context, resp *fetcher.Response) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch resp.Kind {
	case model.KindHTML:
		return e.extractHTML(resp)
	case model.KindPDF:
		if !e.opts.IncludePDFs {
			return nil, disabled("pdf")
		}
		return e.extractPDF(resp)
	case model.KindEPUB:
		if e.opts.IgnoreEPUBs {
			return nil, disabled("epub")
		}
		return e.extractEPUB(resp)
	default:
		return nil, &model.FetchError{
			Kind:        model.FetchUnsupportedContent,
			URL:         resp.URL.String(),
			ContentType: resp.ContentType,
		}
	}
}

// disabledError carries the kind that was turned off.
type disabledError struct {
	kind string
}

func (e *disabledError) Error() string {
	return e.kind + " documents are disabled"
}

func (e *disabledError) Unwrap() error {
	return ErrKindDisabled
}

func disabled(kind string) error {
	return &disabledError{kind: kind}
}

func extractionError(resp *fetcher.Response, err error) error {
	return &model.FetchError{
		Kind: model.FetchExtraction,
		URL:  resp.URL.String(),
		Err:  err,
	}
}
