package fetcher

import (
	"bytes"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/sitedigest/internal/model"
)

// epubMagic is the mandatory first entry of an EPUB container: a stored file
// named "mimetype" whose content starts at offset 30 of the zip.
var epubMagic = []byte("mimetypeapplication/epub+zip")

// DetectKind decides the content kind from, in order, the Content-Type
// header, the URL extension and the body's first bytes. Generic types such as
// application/octet-stream defer to the later checks.
func DetectKind(contentType string, u *url.URL, body []byte) model.ContentKind {
	if kind, ok := kindFromMediaType(contentType); ok {
		return kind
	}
	if u != nil {
		if kind, ok := kindFromExtension(u.Path); ok {
			return kind
		}
	}
	if len(body) == 0 {
		return model.KindOther
	}
	if len(body) > 30 && bytes.HasPrefix(body[30:], epubMagic) {
		return model.KindEPUB
	}
	kind, _ := kindFromMediaType(http.DetectContentType(body))
	return kind
}

func kindFromMediaType(contentType string) (model.ContentKind, bool) {
	if contentType == "" {
		return model.KindOther, false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return model.KindHTML, true
	case "application/pdf", "application/x-pdf":
		return model.KindPDF, true
	case "application/epub+zip":
		return model.KindEPUB, true
	case "application/octet-stream", "binary/octet-stream", "application/zip", "application/x-zip-compressed":
		return model.KindOther, false
	default:
		return model.KindOther, true
	}
}

func kindFromExtension(p string) (model.ContentKind, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm", ".xhtml":
		return model.KindHTML, true
	case ".pdf":
		return model.KindPDF, true
	case ".epub":
		return model.KindEPUB, true
	default:
		return model.KindOther, false
	}
}
