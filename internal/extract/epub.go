package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/sitedigest/internal/fetcher"
)

// maxChapterBytes bounds a single decompressed chapter.
const maxChapterBytes = 16 * 1024 * 1024

var (
	errNoRootfile   = errors.New("epub container has no rootfile")
	errEmptySpine   = errors.New("epub spine is empty")
	errNoEPUBText   = errors.New("no text could be extracted from epub")
	errMissingEntry = errors.New("epub entry not found")
)

// container is META-INF/container.xml.
type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// packageDoc is the OPF package document.
type packageDoc struct {
	Title    string `xml:"metadata>title"`
	Manifest []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// extractEPUB concatenates chapter text in spine order. Chapters that cannot
// be read mark the content partial, like unreadable PDF pages.
func (e *Extractor) extractEPUB(resp *fetcher.Response) (*Content, error) {
	zr, err := zip.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
	if err != nil {
		return nil, extractionError(resp, fmt.Errorf("open epub: %w", err))
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var c container
	if err := decodeXML(files, "META-INF/container.xml", &c); err != nil {
		return nil, extractionError(resp, err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, extractionError(resp, errNoRootfile)
	}
	opfPath := c.Rootfiles[0].FullPath

	var pkg packageDoc
	if err := decodeXML(files, opfPath, &pkg); err != nil {
		return nil, extractionError(resp, err)
	}
	if len(pkg.Spine) == 0 {
		return nil, extractionError(resp, errEmptySpine)
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
	}

	out := &Content{Title: collapseSpace(pkg.Title)}
	opfDir := path.Dir(opfPath)
	var chapters []string
	for i, ref := range pkg.Spine {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			out.Partial = true
			continue
		}
		text, err := chapterText(files, resolveEntry(opfDir, href))
		if err != nil {
			e.logger.Debug("epub chapter failed",
				"url", resp.URL.String(),
				"chapter", i+1,
				"error", err,
			)
			out.Partial = true
			continue
		}
		if text != "" {
			chapters = append(chapters, text)
		}
	}

	if len(chapters) == 0 {
		return nil, extractionError(resp, errNoEPUBText)
	}
	out.Text = strings.Join(chapters, "\n\n")
	return out, nil
}

// resolveEntry turns an OPF-relative href into a zip entry name.
func resolveEntry(dir, href string) string {
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if dir == "." {
		return path.Clean(href)
	}
	return path.Join(dir, href)
}

func openEntry(files map[string]*zip.File, name string) (io.ReadCloser, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissingEntry, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return rc, nil
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	rc, err := openEntry(files, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := xml.NewDecoder(io.LimitReader(rc, maxChapterBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func chapterText(files map[string]*zip.File, name string) (string, error) {
	rc, err := openEntry(files, name)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	doc, err := html.Parse(io.LimitReader(rc, maxChapterBytes))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	return renderText(doc), nil
}
