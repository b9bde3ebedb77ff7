package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitedigest/internal/linkfilter"
	"github.com/nao1215/sitedigest/internal/model"
)

// testSite is an in-memory website. Page bodies may contain {{base}}, which
// is replaced with the server's base URL when served.
type testSite struct {
	srv     *httptest.Server
	pages   map[string]string
	latency time.Duration

	mu        sync.Mutex
	hits      map[string]int
	times     []time.Time
	active    int
	maxActive int
}

func newTestSite(t *testing.T, pages map[string]string) *testSite {
	t.Helper()
	return newSlowTestSite(t, pages, 0)
}

func newSlowTestSite(t *testing.T, pages map[string]string, latency time.Duration) *testSite {
	t.Helper()

	s := &testSite{pages: pages, latency: latency, hits: make(map[string]int)}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *testSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.times = append(s.times, time.Now())
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path == "/robots.txt" {
		w.Header().Set("Content-Type", "text/plain")
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	_, _ = w.Write([]byte(strings.ReplaceAll(body, "{{base}}", s.srv.URL)))
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) pageHits() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.hits))
	for p, n := range s.hits {
		if p != "/robots.txt" {
			out[p] = n
		}
	}
	return out
}

// links renders an HTML page linking to hrefs.
func links(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>t</title></head><body><main><p>Some page text for extraction.</p>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">%s</a> `, h, h)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func testJob(startURL string) model.CrawlJob {
	job := model.NewCrawlJob(startURL)
	job.Delay = 0
	job.Timeout = 5 * time.Second
	return job
}

func crawledPaths(t *testing.T, r *model.CrawlReport, base string) []string {
	t.Helper()
	paths := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		paths = append(paths, strings.TrimPrefix(p.URL, base))
	}
	sort.Strings(paths)
	return paths
}

// TestSubmit tests basic crawling.
func TestSubmit(t *testing.T) {
	t.Parallel()

	t.Run("crawls single page", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/": `<html><head><title>Test</title></head><body><p>Hello</p><a href="/next">next</a></body></html>`,
		})
		job := testJob(site.srv.URL)
		job.MaxDepth = 0

		report, err := New().Submit(context.Background(), job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.PagesCrawled != 1 {
			t.Fatalf("expected 1 page, got %d", report.PagesCrawled)
		}
		p := report.Pages[0]
		if p.Title != "Test" || p.Status != model.StatusOK || p.Kind != model.KindHTML {
			t.Errorf("unexpected page: %+v", p)
		}
		if p.ContentHash == "" || p.Content == "" {
			t.Error("expected content and hash")
		}
		if report.StartURL != site.srv.URL+"/" {
			t.Errorf("StartURL = %q, want canonical seed", report.StartURL)
		}
		if report.State != model.StateComplete || report.StopReason != model.StopFrontierExhausted {
			t.Errorf("state = %q reason = %q", report.State, report.StopReason)
		}
		if site.hitCount("/next") != 0 {
			t.Error("depth 0 must not follow links")
		}
	})

	t.Run("respects max depth", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":  links("/a"),
			"/a": links("/b"),
			"/b": links("/c"),
			"/c": links("/d"),
		})
		job := testJob(site.srv.URL)
		job.MaxDepth = 2

		report, err := New().Submit(context.Background(), job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"/", "/a", "/b"}
		if got := crawledPaths(t, report, site.srv.URL); !slices.Equal(got, want) {
			t.Errorf("crawled %v, want %v", got, want)
		}
		for _, p := range report.Pages {
			if p.Depth > job.MaxDepth {
				t.Errorf("page %s has depth %d > %d", p.URL, p.Depth, job.MaxDepth)
			}
		}
		if site.hitCount("/c") != 0 {
			t.Error("/c is beyond max depth and must not be fetched")
		}
	})

	t.Run("records depth and discovered from", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":  links("/a"),
			"/a": links("/b"),
			"/b": links(),
		})
		report, err := New().Submit(context.Background(), testJob(site.srv.URL))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range report.Pages {
			if strings.HasSuffix(p.URL, "/b") {
				if p.Depth != 2 || p.DiscoveredFrom != site.srv.URL+"/a" {
					t.Errorf("page b: depth=%d from=%q", p.Depth, p.DiscoveredFrom)
				}
			}
		}
	})
}

// TestSubmitPageBudget tests that max pages bounds initiated fetches.
func TestSubmitPageBudget(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var hrefs []string
	for i := range 20 {
		p := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, p)
		pages[p] = links("/", "/p0", "/p19")
	}
	pages["/"] = links(hrefs...)

	for _, concurrency := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			t.Parallel()

			site := newTestSite(t, pages)
			job := testJob(site.srv.URL)
			job.MaxPages = 5
			job.Concurrency = concurrency

			report, err := New().Submit(context.Background(), job)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			total := 0
			for _, n := range site.pageHits() {
				total += n
			}
			if total > job.MaxPages {
				t.Errorf("server saw %d page requests, budget is %d", total, job.MaxPages)
			}
			if report.PagesCrawled != job.MaxPages {
				t.Errorf("PagesCrawled = %d, want %d", report.PagesCrawled, job.MaxPages)
			}
			if report.StopReason != model.StopPageBudget {
				t.Errorf("StopReason = %q, want page-budget", report.StopReason)
			}
		})
	}
}

// TestSubmitNoDuplicateFetches tests canonical deduplication on a cyclic graph.
func TestSubmitNoDuplicateFetches(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":  links("/a", "/a/", "/a#top", "{{base}}/a", "/b", "./b", "/"),
		"/a": links("/", "/b", "/a"),
		"/b": links("/a", "/", "/b#x"),
	})
	job := testJob(site.srv.URL)
	job.Concurrency = 4

	report, err := New().Submit(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for path, n := range site.pageHits() {
		if n != 1 {
			t.Errorf("%s fetched %d times, want 1", path, n)
		}
	}
	seen := map[string]bool{}
	for _, p := range report.Pages {
		if seen[p.URL] {
			t.Errorf("duplicate page result for %s", p.URL)
		}
		seen[p.URL] = true
	}
	if report.PagesCrawled != 3 {
		t.Errorf("PagesCrawled = %d, want 3", report.PagesCrawled)
	}
}

// TestSubmitScope tests robots, path restriction and host scope.
func TestSubmitScope(t *testing.T) {
	t.Parallel()

	t.Run("robots disallowed pages are never fetched", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/robots.txt":     "User-agent: *\nDisallow: /private\n",
			"/":               links("/public", "/private/secret"),
			"/public":         links(),
			"/private/secret": links(),
		})
		job := testJob(site.srv.URL)
		job.RespectRobots = true

		report, err := New().Submit(context.Background(), job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.hitCount("/private/secret") != 0 {
			t.Error("robots-disallowed page was fetched")
		}
		if site.hitCount("/robots.txt") != 1 {
			t.Errorf("robots.txt fetched %d times, want 1", site.hitCount("/robots.txt"))
		}
		if len(report.Skipped) != 1 || !strings.HasSuffix(report.Skipped[0].URL, "/private/secret") {
			t.Errorf("Skipped = %+v", report.Skipped)
		}
		if report.PagesFailed != 0 {
			t.Errorf("robots denial must not count as failure, got %d failures", report.PagesFailed)
		}
	})

	t.Run("robots ignored when disabled", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/robots.txt": "User-agent: *\nDisallow: /\n",
			"/":           links("/a"),
			"/a":          links(),
		})
		report, err := New().Submit(context.Background(), testJob(site.srv.URL))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.PagesCrawled != 2 || site.hitCount("/robots.txt") != 0 {
			t.Errorf("PagesCrawled = %d robots hits = %d", report.PagesCrawled, site.hitCount("/robots.txt"))
		}
	})

	t.Run("path restriction", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/docs/":      links("/docs/intro", "/blog", "/docs2/x", "/"),
			"/docs/intro": links("/docs/api"),
			"/docs/api":   links(),
			"/blog":       links(),
			"/docs2/x":    links(),
			"/":           links(),
		})
		job := testJob(site.srv.URL + "/docs/")
		job.RestrictPath = true

		report, err := New().Submit(context.Background(), job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/docs", "/docs/api", "/docs/intro"}
		if got := crawledPaths(t, report, site.srv.URL); !slices.Equal(got, want) {
			t.Errorf("crawled %v, want %v", got, want)
		}
	})

	t.Run("external hosts are never fetched", func(t *testing.T) {
		t.Parallel()

		other := newTestSite(t, map[string]string{"/": links()})
		site := newTestSite(t, map[string]string{
			"/":  links(other.srv.URL+"/", "/a"),
			"/a": links(),
		})

		report, err := New().Submit(context.Background(), testJob(site.srv.URL))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(other.pageHits()); n != 0 {
			t.Errorf("external host received %d requests", n)
		}
		if report.PagesCrawled != 2 {
			t.Errorf("PagesCrawled = %d, want 2", report.PagesCrawled)
		}
	})

	t.Run("follow links leaves the host", func(t *testing.T) {
		t.Parallel()

		other := newTestSite(t, map[string]string{"/": links()})
		site := newTestSite(t, map[string]string{
			"/": links(other.srv.URL + "/"),
		})
		job := testJob(site.srv.URL)
		job.FollowLinks = true

		if _, err := New().Submit(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if other.hitCount("/") != 1 {
			t.Errorf("external host hits = %d, want 1", other.hitCount("/"))
		}
	})

	t.Run("include and exclude", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/docs":           links("/docs/intro", "/docs/old/intro", "/blog/post"),
			"/docs/intro":     links(),
			"/docs/old/intro": links(),
			"/blog/post":      links(),
		})
		job := testJob(site.srv.URL + "/docs")
		job.IncludePattern = ".*/docs/"
		job.ExcludePattern = ".*/old/"

		report, err := New().Submit(context.Background(), job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"/docs", "/docs/intro"}
		if got := crawledPaths(t, report, site.srv.URL); !slices.Equal(got, want) {
			t.Errorf("crawled %v, want %v", got, want)
		}
	})
}

// TestSubmitFailures tests that page failures are reported, not fatal.
func TestSubmitFailures(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":  links("/a", "/missing", "/b"),
		"/a": links(),
		"/b": links(),
	})

	report, err := New().Submit(context.Background(), testJob(site.srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.PagesCrawled != 4 || report.PagesOK != 3 || report.PagesFailed != 1 {
		t.Errorf("crawled/ok/failed = %d/%d/%d, want 4/3/1", report.PagesCrawled, report.PagesOK, report.PagesFailed)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("Failures = %+v", report.Failures)
	}
	f := report.Failures[0]
	if !strings.HasSuffix(f.URL, "/missing") || !strings.Contains(f.Reason, "404") {
		t.Errorf("failure = %+v, want /missing with 404", f)
	}
	for _, p := range report.Pages {
		if strings.HasSuffix(p.URL, "/missing") && p.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want 404", p.StatusCode)
		}
	}
}

// TestSubmitPoliteness tests the concurrency bound and per-host spacing.
func TestSubmitPoliteness(t *testing.T) {
	t.Parallel()

	t.Run("concurrency bound", func(t *testing.T) {
		t.Parallel()

		pages := map[string]string{}
		var hrefs []string
		for i := range 12 {
			p := fmt.Sprintf("/p%d", i)
			hrefs = append(hrefs, p)
			pages[p] = links()
		}
		pages["/"] = links(hrefs...)

		site := newSlowTestSite(t, pages, 30*time.Millisecond)
		job := testJob(site.srv.URL)
		job.Concurrency = 3

		if _, err := New().Submit(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		site.mu.Lock()
		defer site.mu.Unlock()
		if site.maxActive > job.Concurrency {
			t.Errorf("max concurrent requests = %d, want <= %d", site.maxActive, job.Concurrency)
		}
	})

	t.Run("per host delay", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]string{
			"/":  links("/a", "/b", "/c"),
			"/a": links(),
			"/b": links(),
			"/c": links(),
		})
		job := testJob(site.srv.URL)
		job.Delay = 80 * time.Millisecond
		job.Concurrency = 4

		if _, err := New().Submit(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		site.mu.Lock()
		times := slices.Clone(site.times)
		site.mu.Unlock()
		slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

		const slack = 10 * time.Millisecond
		for i := 1; i < len(times); i++ {
			if gap := times[i].Sub(times[i-1]); gap < job.Delay-slack {
				t.Errorf("requests %d and %d are %v apart, want >= %v", i-1, i, gap, job.Delay)
			}
		}
	})
}

// TestSubmitProgress tests progress events.
func TestSubmitProgress(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":  links("/a", "/b", "/missing"),
		"/a": links(),
		"/b": links(),
	})
	job := testJob(site.srv.URL)
	job.MaxPages = 10
	job.Concurrency = 2

	var events []model.ProgressEvent
	c := New(WithProgress(func(ev model.ProgressEvent) {
		events = append(events, ev)
	}))
	report, err := c.Submit(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != report.PagesCrawled {
		t.Fatalf("got %d events, want %d", len(events), report.PagesCrawled)
	}
	prev := 0.0
	for i, ev := range events {
		if ev.Completed != i+1 {
			t.Errorf("event %d Completed = %d", i, ev.Completed)
		}
		if ev.Ratio() < prev {
			t.Errorf("ratio decreased at event %d", i)
		}
		prev = ev.Ratio()
		if ev.MaxPages != job.MaxPages {
			t.Errorf("MaxPages = %d, want %d", ev.MaxPages, job.MaxPages)
		}
	}
}

// TestSubmitDeterminism tests that reruns against an unchanged site crawl the same URL set.
func TestSubmitDeterminism(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/":   links("/a", "/b", "/c"),
		"/a":  links("/a1", "/a2", "/b"),
		"/b":  links("/b1", "/missing"),
		"/c":  links("/a1", "/c1"),
		"/a1": links("/"),
		"/a2": links(),
		"/b1": links("/c1"),
		"/c1": links(),
	}

	run := func() *model.CrawlReport {
		site := newTestSite(t, pages)
		job := testJob(site.srv.URL)
		job.Concurrency = 3
		report, err := New().Submit(context.Background(), job)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return report
	}

	first, second := run(), run()

	// Each run uses its own server, so compare paths rather than full URLs.
	paths := func(r *model.CrawlReport) []string {
		var out []string
		for _, p := range r.Pages {
			i := strings.Index(p.URL[len("http://"):], "/")
			out = append(out, p.URL[len("http://")+i:])
		}
		sort.Strings(out)
		return out
	}
	if !slices.Equal(paths(first), paths(second)) {
		t.Errorf("runs differ:\n%v\n%v", paths(first), paths(second))
	}
	if first.PagesCrawled != second.PagesCrawled || first.PagesFailed != second.PagesFailed {
		t.Errorf("counts differ: %d/%d vs %d/%d",
			first.PagesCrawled, first.PagesFailed, second.PagesCrawled, second.PagesFailed)
	}
}

// TestSubmitCancel tests that cancellation returns a partial report.
func TestSubmitCancel(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var hrefs []string
	for i := range 50 {
		p := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, p)
		pages[p] = links()
	}
	pages["/"] = links(hrefs...)

	site := newSlowTestSite(t, pages, 50*time.Millisecond)
	job := testJob(site.srv.URL)
	job.Concurrency = 2

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, err := New().Submit(ctx, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.StopReason != model.StopCanceled {
		t.Errorf("StopReason = %q, want canceled", report.StopReason)
	}
	if report.PagesCrawled == 0 || report.PagesCrawled >= 51 {
		t.Errorf("PagesCrawled = %d, want a partial crawl", report.PagesCrawled)
	}
	if report.PagesFailed != 0 {
		t.Errorf("abandoned fetches must not be failures, got %+v", report.Failures)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

// TestSubmitConfigErrors tests that configuration errors fail before any request.
func TestSubmitConfigErrors(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{"/": links()})

	tests := []struct {
		name    string
		mutate  func(*model.CrawlJob)
		wantErr error
	}{
		{name: "bad include", mutate: func(j *model.CrawlJob) { j.IncludePattern = "(" }, wantErr: linkfilter.ErrInvalidPattern},
		{name: "bad exclude", mutate: func(j *model.CrawlJob) { j.ExcludePattern = "[" }, wantErr: linkfilter.ErrInvalidPattern},
		{name: "bad start url", mutate: func(j *model.CrawlJob) { j.StartURL = "not a url" }, wantErr: model.ErrInvalidStartURL},
		{name: "zero pages", mutate: func(j *model.CrawlJob) { j.MaxPages = 0 }, wantErr: model.ErrInvalidMaxPages},
		{name: "zero concurrency", mutate: func(j *model.CrawlJob) { j.Concurrency = 0 }, wantErr: model.ErrInvalidConcurrency},
		{name: "zero body size", mutate: func(j *model.CrawlJob) { j.MaxBodySize = 0 }, wantErr: model.ErrInvalidMaxBodySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := testJob(site.srv.URL)
			tt.mutate(&job)

			report, err := New().Submit(context.Background(), job)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if report != nil {
				t.Error("expected no report on configuration error")
			}
		})
	}

	if n := len(site.pageHits()); n != 0 {
		t.Errorf("configuration errors caused %d requests", n)
	}
}

// TestSubmitTrailingSlash tests that links are fetched as discovered and
// that patterns see the trailing slash.
func TestSubmitTrailingSlash(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]string{
		"/":         links("/docs/", "/blog/"),
		"/docs/":    links("/docs/api"),
		"/docs/api": links("/docs/"),
		"/blog/":    links(),
	})
	job := testJob(site.srv.URL + "/")
	job.IncludePattern = ".*/docs/"

	report, err := New().Submit(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"/", "/docs", "/docs/api"}
	if got := crawledPaths(t, report, site.srv.URL); !slices.Equal(got, want) {
		t.Errorf("crawled %v, want %v", got, want)
	}
	if report.PagesFailed != 0 {
		t.Errorf("PagesFailed = %d, failures %v", report.PagesFailed, report.Failures)
	}
	if n := site.hitCount("/docs"); n != 0 {
		t.Errorf("/docs requested %d times, want the discovered /docs/ only", n)
	}
	if n := site.hitCount("/blog/"); n != 0 {
		t.Errorf("/blog/ requested %d times despite the include pattern", n)
	}
}

// redirectSite answers /x with a 301 to /x/ for every directory page, and
// records when each request arrived.
type redirectSite struct {
	srv *httptest.Server

	mu    sync.Mutex
	paths []string
	times []time.Time
}

func newRedirectSite(t *testing.T, external string) *redirectSite {
	t.Helper()

	s := &redirectSite{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.times = append(s.times, time.Now())
		s.mu.Unlock()

		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(links("/a/", "/b", "/away")))
		case "/a", "/b":
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
		case "/away":
			http.Redirect(w, r, external, http.StatusFound)
		case "/a/", "/b/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(links()))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

// TestSubmitRedirects tests that redirect hops respect the per-host delay
// and the host scope.
func TestSubmitRedirects(t *testing.T) {
	t.Parallel()

	// Same server, different host name: out of scope without FollowLinks.
	other := newTestSite(t, map[string]string{"/": links()})
	external := strings.Replace(other.srv.URL, "127.0.0.1", "localhost", 1) + "/"
	site := newRedirectSite(t, external)

	job := testJob(site.srv.URL + "/")
	job.Delay = 100 * time.Millisecond
	job.Concurrency = 1

	report, err := New().Submit(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	site.mu.Lock()
	paths := slices.Clone(site.paths)
	times := slices.Clone(site.times)
	site.mu.Unlock()

	if slices.Contains(paths, "/a") {
		t.Errorf("/a/ was requested as /a: %v", paths)
	}
	if !slices.Contains(paths, "/b/") {
		t.Errorf("redirect from /b was not followed: %v", paths)
	}

	const slack = 10 * time.Millisecond
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < job.Delay-slack {
			t.Errorf("%s and %s are %v apart, want >= %v", paths[i-1], paths[i], gap, job.Delay)
		}
	}

	if n := len(other.pageHits()); n != 0 {
		t.Errorf("redirect left the host scope: %d requests to the other host", n)
	}
	var blocked bool
	for _, f := range report.Failures {
		if strings.HasSuffix(f.URL, "/away") && strings.Contains(f.Reason, "redirect blocked") {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("expected /away to fail with a blocked redirect, failures %v", report.Failures)
	}
}
