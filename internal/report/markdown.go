package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitedigest/internal/model"
)

// maxDetailsContent bounds the page text embedded in each <details> block.
const maxDetailsContent = 2000

// MarkdownWriter outputs reports as a GitHub-flavored Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary followed by a table of pages and their content.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := NewSummary(report)

	w.writeSummary(md, summary)
	w.writePages(md, report.Pages)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the summary sections only.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeSummary(md, summary)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s *Summary) {
	w.writeHeader(md, s)
	w.writeContent(md, s)
	w.writeFailures(md, s)
	w.writeSkipped(md, s)
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + s.StartURL + "`"},
			{"Crawl Date", s.DateCrawled.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
			{"Pages Crawled", strconv.Itoa(s.PagesCrawled)},
			{"Pages OK", strconv.Itoa(s.PagesOK)},
			{"Pages Failed", strconv.Itoa(s.PagesFailed)},
			{"Status", w.statusText(s)},
		},
	})
	md.PlainText("")
	w.writeAlert(md, s)
}

func (w *MarkdownWriter) statusText(s *Summary) string {
	switch {
	case s.Canceled():
		return "⚠️ " + s.StatusText()
	case s.HasFailures():
		return "✅ " + s.StatusText() + " with failures"
	default:
		return "✅ " + s.StatusText()
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Canceled():
		md.Warningf("The crawl was canceled after %d page(s). Results are partial.", s.PagesCrawled)
	case s.PagesCrawled > 0 && s.PagesOK == 0:
		md.Cautionf("Every one of the %d crawled page(s) failed.", s.PagesCrawled)
	case s.HasFailures():
		md.Importantf("%d of %d page(s) failed.", s.PagesFailed, s.PagesCrawled)
	case s.PartialPages > 0:
		md.Note(strconv.Itoa(s.PartialPages) + " page(s) were only partially extracted.")
	default:
		md.Tip("All crawled pages were extracted.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeContent(md *markdown.Markdown, s *Summary) {
	if len(s.Kinds) == 0 {
		return
	}
	md.H2("Content")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Extracted Content Kinds"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, 0, len(kindOrder))
	for _, k := range kindOrder {
		n := s.Kinds[string(k)]
		if n == 0 {
			continue
		}
		chart.LabelAndIntValue(string(k), uint64(n))
		rows = append(rows, []string{string(k), strconv.Itoa(n)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *Summary) {
	md.H2("Failed URLs")
	md.PlainText("")
	if !s.HasFailures() {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Failures))
	for i, f := range s.Failures {
		rows[i] = []string{f.URL, truncateString(f.Reason, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, s *Summary) {
	if len(s.Skipped) == 0 {
		return
	}
	md.H2("Skipped URLs")
	md.PlainText("")
	items := make([]string, len(s.Skipped))
	for i, sk := range s.Skipped {
		items[i] = sk.URL + " (" + sk.Reason + ")"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []model.PageResult) {
	md.H2("Pages")
	md.PlainText("")
	if len(pages) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(pages))
	for i := range pages {
		p := &pages[i]
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			p.URL,
			strconv.Itoa(p.Depth),
			string(p.Status),
			kindLabel(p.Kind),
			truncateString(title, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Status", "Kind", "Title"},
		Rows:   rows,
	})
	md.PlainText("")

	for i := range pages {
		p := &pages[i]
		if !p.OK() || p.Content == "" {
			continue
		}
		md.Details(p.URL, truncateString(p.Content, maxDetailsContent))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitedigest](https://github.com/nao1215/sitedigest)*")
}

// truncateString shortens s to at most maxLen runes, ending with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
