// Package report renders crawl reports.
//
// Writers exist for four formats:
//   - TextWriter: a human-readable summary for the terminal
//   - JSONWriter and FullJSONWriter: the complete report for tooling
//   - MarkdownWriter: a document with tables and a content chart
//   - DigestWriter: the extracted text of every page as one XML block
//
// Every writer implements Writer, so they can be combined with MultiWriter.
// WriteURLList produces the plain list of processed URLs.
package report
