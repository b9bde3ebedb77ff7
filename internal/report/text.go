package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitedigest/internal/model"
)

const ruleWidth = 70

// TextWriter outputs human-readable text for terminal display.
type TextWriter struct {
	baseWriter

	// showEmpty prints the failures and skipped sections even when empty.
	showEmpty bool

	// verbose adds the list of crawled pages.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithVerbose adds a per-page listing to full reports.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report summary, followed by every page when verbose.
func (w *TextWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder
	summary := NewSummary(report)

	w.writeSummary(&sb, summary)
	if w.verbose {
		w.writePages(&sb, report.Pages)
	}
	w.writeFooter(&sb, summary)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs the summary only.
func (w *TextWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder
	w.writeSummary(&sb, summary)
	w.writeFooter(&sb, summary)
	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeSummary(sb *strings.Builder, s *Summary) {
	w.writeHeader(sb, s)
	w.writeKinds(sb, s)
	w.writeFailures(sb, s)
	w.writeSkipped(sb, s)
}

func (w *TextWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                        SITEDIGEST CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Start URL:      %s\n", s.StartURL)
	fmt.Fprintf(sb, "Crawl Date:     %s\n", s.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:        %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(sb, "Pages Crawled:  %d (ok %d, failed %d)\n", s.PagesCrawled, s.PagesOK, s.PagesFailed)
	if s.PartialPages > 0 {
		fmt.Fprintf(sb, "Partial Pages:  %d\n", s.PartialPages)
	}
	fmt.Fprintf(sb, "Status:         %s\n", s.StatusText())
	sb.WriteString("\n")
}

func (w *TextWriter) writeKinds(sb *strings.Builder, s *Summary) {
	if len(s.Kinds) == 0 {
		return
	}
	writeSection(sb, "CONTENT")
	for _, k := range kindOrder {
		if n := s.Kinds[string(k)]; n > 0 {
			fmt.Fprintf(sb, "  %-6s %d\n", k, n)
		}
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeFailures(sb *strings.Builder, s *Summary) {
	if !s.HasFailures() && !w.showEmpty {
		return
	}
	writeSection(sb, "FAILED URLS")
	if !s.HasFailures() {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, f := range s.Failures {
		fmt.Fprintf(sb, "  [x] %s\n", f.URL)
		fmt.Fprintf(sb, "      %s\n", f.Reason)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeSkipped(sb *strings.Builder, s *Summary) {
	if len(s.Skipped) == 0 && !w.showEmpty {
		return
	}
	writeSection(sb, "SKIPPED URLS")
	if len(s.Skipped) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(sb, "  [-] %s (%s)\n", sk.URL, sk.Reason)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writePages(sb *strings.Builder, pages []model.PageResult) {
	writeSection(sb, "PAGES")
	for i := range pages {
		p := &pages[i]
		mark := "+"
		if !p.OK() {
			mark = "x"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", mark, p.URL)
		if p.Title != "" {
			fmt.Fprintf(sb, "      Title: %s\n", p.Title)
		}
		fmt.Fprintf(sb, "      Depth: %d  Kind: %s  Size: %d bytes\n", p.Depth, kindLabel(p.Kind), len(p.Content))
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeFooter(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(s.Headline())
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func kindLabel(k model.ContentKind) string {
	if k == "" {
		return "-"
	}
	return string(k)
}
