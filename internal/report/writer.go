package report

import (
	"io"

	"github.com/nao1215/sitedigest/internal/model"
)

// Writer outputs a crawl report in one format.
type Writer interface {
	// Write outputs the full report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the summary, without per-page content.
	WriteSummary(summary *Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Format names an output format.
type Format string

const (
	// FormatText is the human-readable summary (default).
	FormatText Format = "text"
	// FormatJSON is the complete report as JSON.
	FormatJSON Format = "json"
	// FormatMarkdown is a Markdown document.
	FormatMarkdown Format = "markdown"
	// FormatDigest is the extracted content of every page in one XML document.
	FormatDigest Format = "digest"
)

// New returns the Writer for format. Unknown formats fall back to text.
func New(format Format, output io.Writer, version string) Writer {
	switch format {
	case FormatJSON:
		return NewFullJSONWriter(output, version, WithPrettyPrint())
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatDigest:
		return NewDigestWriter(output)
	default:
		return NewTextWriter(output)
	}
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
