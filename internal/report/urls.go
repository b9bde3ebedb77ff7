package report

import (
	"bufio"
	"io"

	"github.com/nao1215/sitedigest/internal/model"
)

// WriteURLList writes every processed URL, one per line, in completion order.
// Only URLs that produced a page result are listed; skipped URLs are not.
func WriteURLList(output io.Writer, report *model.CrawlReport) (int, error) {
	bw := bufio.NewWriter(output)
	var total int
	for _, u := range report.ProcessedURLs() {
		n, err := bw.WriteString(u + "\n")
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}
