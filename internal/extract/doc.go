// Package extract turns fetched documents into text, links and structure.
//
// Three document kinds are supported:
//   - HTML, parsed with goquery; main content is isolated with go-trafilatura
//   - PDF, read page by page with github.com/ledongthuc/pdf
//   - EPUB, read chapter by chapter in spine order
//
// Anything else is reported as an unsupported content type.
package extract
