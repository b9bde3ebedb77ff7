package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitedigest/internal/model"
)

// DigestWriter outputs the extracted text of every page as one XML document:
//
//	<source type="web_crawl" base_url="https://example.com/">
//	<page url="https://example.com/">
//	...text...
//	</page>
//	</source>
//
// Failed pages carry an <error> element instead of text and skipped URLs
// are listed as <skipped> elements. The format is meant to be pasted into
// an LLM prompt as a single context block.
type DigestWriter struct {
	baseWriter
}

// NewDigestWriter creates a DigestWriter that outputs to the given writer.
func NewDigestWriter(output io.Writer) *DigestWriter {
	return &DigestWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every page in completion order.
func (w *DigestWriter) Write(report *model.CrawlReport) (int, error) {
	cw := &countingWriter{w: bufio.NewWriter(w.output)}

	fmt.Fprintf(cw, `<source type="web_crawl" base_url="%s">`, escapeXML(report.StartURL))
	cw.writeString("\n")
	for i := range report.Pages {
		writeDigestPage(cw, &report.Pages[i])
	}
	for _, sk := range report.Skipped {
		fmt.Fprintf(cw, "<skipped url=\"%s\">%s</skipped>\n", escapeXML(sk.URL), escapeXML(sk.Reason))
	}
	cw.writeString("</source>\n")

	if err := cw.flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteSummary outputs a single self-closing element with the crawl counts.
func (w *DigestWriter) WriteSummary(summary *Summary) (int, error) {
	return fmt.Fprintf(w.output,
		"<source type=\"web_crawl\" base_url=\"%s\" pages_crawled=\"%d\" pages_failed=\"%d\" stop_reason=\"%s\"/>\n",
		escapeXML(summary.StartURL), summary.PagesCrawled, summary.PagesFailed, summary.StopReason)
}

func writeDigestPage(cw *countingWriter, p *model.PageResult) {
	fmt.Fprintf(cw, "<page url=\"%s\"", escapeXML(p.URL))
	if p.Title != "" {
		fmt.Fprintf(cw, " title=\"%s\"", escapeXML(p.Title))
	}
	if p.Kind != "" && p.Kind != model.KindHTML {
		fmt.Fprintf(cw, " kind=\"%s\"", p.Kind)
	}
	if p.Partial {
		cw.writeString(` partial="true"`)
	}
	cw.writeString(">\n")

	if p.OK() {
		cw.writeString(escapeXML(p.Content))
		cw.writeString("\n")
	} else {
		fmt.Fprintf(cw, "<error>%s</error>\n", escapeXML(p.Error))
	}
	cw.writeString("</page>\n")
}

// xmlEscaper escapes markup characters but keeps newlines, so page text stays readable.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// escapeXML escapes s for use in both attribute values and character data.
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// countingWriter remembers the first error and the number of bytes accepted.
type countingWriter struct {
	w   *bufio.Writer
	n   int
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += n
	c.err = err
	return n, err
}

func (c *countingWriter) writeString(s string) {
	_, _ = c.Write([]byte(s))
}

func (c *countingWriter) flush() error {
	if c.err != nil {
		return c.err
	}
	return c.w.Flush()
}
