package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nao1215/sitedigest/internal/fetcher"
)

// errNoPDFText is returned when no page of a PDF yields any text.
var errNoPDFText = errors.New("no text could be extracted from pdf")

// pageErrorMarker is written in place of a page whose text could not be read.
const pageErrorMarker = "[page %d: text extraction failed]"

// extractPDF reads text page by page in page order. A page that fails is
// replaced by a marker and flags the content as partial; the remaining pages
// are still read.
func (e *Extractor) extractPDF(resp *fetcher.Response) (*Content, error) {
	reader, err := openPDF(resp.Body)
	if err != nil {
		return nil, extractionError(resp, fmt.Errorf("open pdf: %w", err))
	}

	c := &Content{Title: pdfTitle(reader)}

	pages := make([]string, 0, reader.NumPage())
	extracted := 0
	for i := 1; i <= reader.NumPage(); i++ {
		text, err := pdfPageText(reader, i)
		if err != nil {
			e.logger.Debug("pdf page failed",
				"url", resp.URL.String(),
				"page", i,
				"error", err,
			)
			c.Partial = true
			pages = append(pages, fmt.Sprintf(pageErrorMarker, i))
			continue
		}
		if text = normalizeText(text); text != "" {
			extracted++
			pages = append(pages, text)
		}
	}

	if extracted == 0 {
		return nil, extractionError(resp, errNoPDFText)
	}
	c.Text = strings.Join(pages, "\n\n")
	return c, nil
}

// openPDF wraps pdf.NewReader, which panics on some malformed input.
func openPDF(body []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(body), int64(len(body)))
}

// pdfPageText extracts one page, turning library panics into errors.
func pdfPageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed page: %v", rec)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// pdfTitle reads the document information dictionary title, if any.
func pdfTitle(r *pdf.Reader) (title string) {
	defer func() {
		if recover() != nil {
			title = ""
		}
	}()
	return collapseSpace(r.Trailer().Key("Info").Key("Title").Text())
}
