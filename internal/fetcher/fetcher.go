package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitedigest/internal/model"
)

// acceptHeader advertises the content kinds the extractor understands.
const acceptHeader = "text/html,application/xhtml+xml,application/pdf,application/epub+zip;q=0.9,*/*;q=0.5"

// Response is a successfully received 2xx response.
type Response struct {
	// URL is the URL that was requested.
	URL *url.URL

	// FinalURL is the URL after redirects. Relative links resolve against it.
	FinalURL *url.URL

	// StatusCode is the HTTP status.
	StatusCode int

	// ContentType is the raw Content-Type header.
	ContentType string

	// Kind is the detected content kind.
	Kind model.ContentKind

	// Body is the response body, at most MaxBodySize bytes.
	// HTML bodies have been transcoded to UTF-8.
	Body []byte

	// Truncated is true when the body was cut at MaxBodySize.
	Truncated bool
}

// ErrRedirectBlocked is wrapped by a RedirectGate error that refuses a hop.
// The fetch then fails with a FetchRedirect error.
var ErrRedirectBlocked = errors.New("redirect blocked")

// RedirectGate is called before every redirect hop with the hop's target.
// A non-nil error stops the fetch.
type RedirectGate func(ctx context.Context, target *url.URL) error

// Fetcher performs single-attempt GET requests and classifies failures.
// It is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	timeout      time.Duration
	maxBodySize  int64
	redirectGate RedirectGate
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithTimeout sets the per-request deadline, covering the body read.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets how many body bytes are read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithRedirectGate makes every redirect hop pass gate before it is requested.
func WithRedirectGate(gate RedirectGate) Option {
	return func(f *Fetcher) {
		f.redirectGate = gate
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher using client.
func New(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		userAgent:   model.DefaultUserAgent,
		timeout:     model.DefaultTimeout,
		maxBodySize: model.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client = f.gatedClient(client)
	return f
}

// gatedClient returns a copy of client whose redirect policy also runs the
// redirect gate. client itself is shared with robots.txt requests and is
// left untouched.
func (f *Fetcher) gatedClient(client *http.Client) *http.Client {
	if f.redirectGate == nil || client == nil {
		return client
	}
	gated := *client
	next := client.CheckRedirect
	gated.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if next != nil {
			if err := next(req, via); err != nil {
				return err
			}
		} else if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return f.redirectGate(req.Context(), req.URL)
	}
	return &gated
}

// Fetch GETs u once. Every failure is a *model.FetchError; when the parent
// context is canceled the FetchError wraps ctx.Err() so callers can tell an
// aborted crawl from a slow server.
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, &model.FetchError{Kind: model.FetchConnection, URL: u.String(), Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &model.FetchError{
			Kind:       model.FetchHTTPStatus,
			URL:        u.String(),
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, f.classify(ctx, u, err)
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
		f.logger.Debug("response body truncated",
			"url", u.String(),
			"limit", f.maxBodySize,
		)
	}

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	contentType := resp.Header.Get("Content-Type")
	kind := DetectKind(contentType, finalURL, body)

	if kind == model.KindHTML {
		body = toUTF8(body, contentType)
	}

	return &Response{
		URL:         u,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Kind:        kind,
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// classify maps a transport or read error to a FetchError kind.
func (f *Fetcher) classify(parent context.Context, u *url.URL, err error) *model.FetchError {
	fe := &model.FetchError{Kind: model.FetchConnection, URL: u.String(), Err: err}

	if parentErr := parent.Err(); parentErr != nil {
		fe.Err = fmt.Errorf("%w: %w", parentErr, err)
		return fe
	}

	if errors.Is(err, ErrRedirectBlocked) {
		fe.Kind = model.FetchRedirect
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			fe.Err = urlErr.Err
		}
		return fe
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		fe.Kind = model.FetchTimeout
		fe.Err = fmt.Errorf("no response within %s", f.timeout)
	}
	return fe
}

// toUTF8 transcodes an HTML body using the Content-Type charset, a <meta>
// declaration or a BOM. The body is returned unchanged when detection fails.
func toUTF8(body []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}
