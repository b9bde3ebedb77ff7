package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/nao1215/sitedigest/internal/fetcher"
	"github.com/nao1215/sitedigest/internal/frontier"
	"github.com/nao1215/sitedigest/internal/model"
)

// boilerplateSelectors are removed before the fallback text extraction.
const boilerplateSelectors = "nav, header, footer, aside, form, [role=navigation], [role=banner], [role=contentinfo]"

// extractHTML parses an HTML document once and derives everything from it.
// Links, headings, code blocks and images are read before any stripping so
// the toggles never hide links from the crawler.
func (e *Extractor) extractHTML(resp *fetcher.Response) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, extractionError(resp, fmt.Errorf("parse html: %w", err))
	}

	base := documentBase(doc, resp.FinalURL)

	c := &Content{
		Title: pageTitle(doc),
		Links: collectLinks(doc, base),
	}
	if e.opts.ExtractHeadings {
		c.Headings = collectHeadings(doc)
	}
	if e.opts.IncludeCode {
		c.CodeBlocks = collectCode(doc)
	}
	if e.opts.IncludeImages {
		c.Images = collectImages(doc, base)
	}

	e.strip(doc)

	if e.opts.CleanHTML {
		c.Text = e.mainText(resp, doc)
		return c, nil
	}

	markup, err := bodyMarkup(doc)
	if err != nil {
		return nil, extractionError(resp, fmt.Errorf("serialize html: %w", err))
	}
	c.Text = markup
	return c, nil
}

// strip removes scripts, styles and comments according to the toggles.
func (e *Extractor) strip(doc *goquery.Document) {
	if e.opts.StripJS {
		doc.Find("script, noscript").Remove()
	}
	if e.opts.StripCSS {
		doc.Find(`style, link[rel~="stylesheet"]`).Remove()
		doc.Find("[style]").RemoveAttr("style")
	}
	if e.opts.StripComments {
		for _, n := range doc.Nodes {
			removeComments(n)
		}
	}
}

// mainText isolates the main content with trafilatura and falls back to a
// boilerplate-stripped body when trafilatura finds nothing.
func (e *Extractor) mainText(resp *fetcher.Response, doc *goquery.Document) string {
	result, err := trafilatura.Extract(bytes.NewReader(resp.Body), trafilatura.Options{
		OriginalURL: resp.FinalURL,
	})
	if err == nil && result != nil {
		if text := normalizeText(result.ContentText); text != "" {
			return text
		}
	}
	if err != nil {
		e.logger.Debug("main content extraction failed, using fallback",
			"url", resp.URL.String(),
			"error", err,
		)
	}

	doc.Find(boilerplateSelectors).Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	var parts []string
	for _, n := range body.Nodes {
		if text := renderText(n); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// pageTitle prefers <title> and falls back to og:title, then the first h1.
func pageTitle(doc *goquery.Document) string {
	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = collapseSpace(og); og != "" {
			return og
		}
	}
	return collapseSpace(doc.Find("h1").First().Text())
}

// documentBase honors a <base href> element.
func documentBase(doc *goquery.Document, pageURL *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return pageURL
	}
	if resolved, ok := frontier.Resolve(pageURL, href); ok {
		return resolved
	}
	return pageURL
}

// collectLinks returns every distinct a[href] and area[href] target.
func collectLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, ok := frontier.Resolve(base, href)
		if !ok {
			return
		}
		link := u.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

func collectHeadings(doc *goquery.Document) []model.Heading {
	var headings []model.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text == "" {
			return
		}
		level, err := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		if err != nil {
			return
		}
		headings = append(headings, model.Heading{Level: level, Text: text})
	})
	return headings
}

// collectCode returns <pre> blocks and <code> elements outside <pre>.
func collectCode(doc *goquery.Document) []model.CodeBlock {
	var blocks []model.CodeBlock
	doc.Find("pre, code").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		if name == "code" && s.ParentsFiltered("pre").Length() > 0 {
			return
		}
		code := strings.Trim(s.Text(), "\n")
		if strings.TrimSpace(code) == "" {
			return
		}
		lang := codeLanguage(s)
		if lang == "" && name == "pre" {
			lang = codeLanguage(s.Find("code").First())
		}
		blocks = append(blocks, model.CodeBlock{Language: lang, Code: code})
	})
	return blocks
}

// codeLanguage reads a language-* or lang-* class.
func codeLanguage(s *goquery.Selection) string {
	class, ok := s.Attr("class")
	if !ok {
		return ""
	}
	for _, c := range strings.Fields(class) {
		for _, prefix := range []string{"language-", "lang-"} {
			if lang, found := strings.CutPrefix(c, prefix); found && lang != "" {
				return lang
			}
		}
	}
	return ""
}

func collectImages(doc *goquery.Document, base *url.URL) []model.Image {
	seen := make(map[string]bool)
	var images []model.Image
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		u, ok := frontier.Resolve(base, src)
		if !ok {
			return
		}
		link := u.String()
		if seen[link] {
			return
		}
		seen[link] = true
		alt, _ := s.Attr("alt")
		images = append(images, model.Image{URL: link, Alt: collapseSpace(alt)})
	})
	return images
}

// bodyMarkup serializes the (stripped) body, or the whole document when
// there is no body element.
func bodyMarkup(doc *goquery.Document) (string, error) {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		markup, err := goquery.OuterHtml(doc.Selection)
		return strings.TrimSpace(markup), err
	}
	markup, err := body.Html()
	return strings.TrimSpace(markup), err
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}
