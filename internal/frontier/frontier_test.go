package frontier

import (
	"errors"
	"net/url"
	"strconv"
	"testing"

	"github.com/nao1215/sitedigest/internal/model"
)

// TestCanonicalizeString tests URL canonicalization.
func TestCanonicalizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases scheme and host", in: "HTTP://Example.COM/Docs", want: "http://example.com/Docs"},
		{name: "empty path becomes root", in: "https://example.com", want: "https://example.com/"},
		{name: "drops fragment", in: "https://example.com/a#intro", want: "https://example.com/a"},
		{name: "drops trailing slash", in: "https://example.com/docs/", want: "https://example.com/docs"},
		{name: "keeps root slash", in: "https://example.com/", want: "https://example.com/"},
		{name: "strips http default port", in: "http://example.com:80/a", want: "http://example.com/a"},
		{name: "strips https default port", in: "https://example.com:443/a", want: "https://example.com/a"},
		{name: "keeps non default port", in: "http://example.com:8080/a", want: "http://example.com:8080/a"},
		{name: "keeps https port on http", in: "http://example.com:443/a", want: "http://example.com:443/a"},
		{name: "keeps query verbatim", in: "https://example.com/s?b=2&a=1", want: "https://example.com/s?b=2&a=1"},
		{name: "drops user info", in: "https://user:pw@example.com/a", want: "https://example.com/a"},
		{name: "ipv6 host", in: "http://[::1]:80/a/", want: "http://[::1]/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CanonicalizeString(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanonicalizeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("relative url is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := CanonicalizeString("/docs")
		if !errors.Is(err, ErrNotAbsolute) {
			t.Errorf("expected ErrNotAbsolute, got %v", err)
		}
	})

	t.Run("equivalent forms collapse", func(t *testing.T) {
		t.Parallel()

		forms := []string{
			"https://example.com/docs",
			"https://EXAMPLE.com/docs/",
			"https://example.com:443/docs#top",
		}
		want, _ := CanonicalizeString(forms[0])
		for _, f := range forms[1:] {
			got, err := CanonicalizeString(f)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("%q canonicalized to %q, want %q", f, got, want)
			}
		}
	})
}

// TestResolve tests link resolution.
func TestResolve(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://example.com/docs/guide/")

	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{name: "relative", href: "intro", want: "https://example.com/docs/guide/intro", wantOK: true},
		{name: "parent", href: "../api", want: "https://example.com/docs/api", wantOK: true},
		{name: "absolute path", href: "/about", want: "https://example.com/about", wantOK: true},
		{name: "absolute url", href: "https://other.org/x", want: "https://other.org/x", wantOK: true},
		{name: "fragment dropped", href: "page#section", want: "https://example.com/docs/guide/page", wantOK: true},
		{name: "whitespace trimmed", href: "  next  ", want: "https://example.com/docs/guide/next", wantOK: true},
		{name: "anchor only", href: "#top", wantOK: false},
		{name: "empty", href: "", wantOK: false},
		{name: "mailto", href: "mailto:a@example.com", wantOK: false},
		{name: "javascript", href: "JavaScript:void(0)", wantOK: false},
		{name: "tel", href: "tel:+123", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Resolve(base, tt.href)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.href, ok, tt.wantOK)
			}
			if ok && got.String() != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.href, got.String(), tt.want)
			}
		})
	}
}

// TestFrontier tests FIFO order and deduplication.
func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("admits each url once", func(t *testing.T) {
		t.Parallel()

		f := New()
		if !f.Admit(model.FrontierEntry{URL: "https://example.com/"}) {
			t.Fatal("expected first admit to succeed")
		}
		if f.Admit(model.FrontierEntry{URL: "https://example.com/", Depth: 1}) {
			t.Error("expected duplicate admit to fail")
		}
		if f.Admitted() != 1 || f.Len() != 1 {
			t.Errorf("admitted=%d len=%d, want 1 and 1", f.Admitted(), f.Len())
		}
	})

	t.Run("seen survives dequeue", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Admit(model.FrontierEntry{URL: "https://example.com/a"})
		if _, ok := f.Next(); !ok {
			t.Fatal("expected an entry")
		}
		if !f.Seen("https://example.com/a") {
			t.Error("expected dequeued url to stay seen")
		}
		if f.Admit(model.FrontierEntry{URL: "https://example.com/a"}) {
			t.Error("expected re-admit after dequeue to fail")
		}
	})

	t.Run("fifo order keeps depth non decreasing", func(t *testing.T) {
		t.Parallel()

		f := New()
		f.Admit(model.FrontierEntry{URL: "u0", Depth: 0})
		f.Admit(model.FrontierEntry{URL: "u1", Depth: 1})
		f.Admit(model.FrontierEntry{URL: "u2", Depth: 1})

		prevDepth := -1
		var order []string
		for {
			e, ok := f.Next()
			if !ok {
				break
			}
			if e.Depth < prevDepth {
				t.Errorf("depth went from %d to %d", prevDepth, e.Depth)
			}
			prevDepth = e.Depth
			order = append(order, e.URL)
			if e.URL == "u1" {
				f.Admit(model.FrontierEntry{URL: "u3", Depth: 2})
			}
		}

		want := []string{"u0", "u1", "u2", "u3"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
			}
		}
	})

	t.Run("compacts after many dequeues", func(t *testing.T) {
		t.Parallel()

		f := New()
		for i := range 3000 {
			f.Admit(model.FrontierEntry{URL: "https://example.com/p" + strconv.Itoa(i)})
		}
		for range 2500 {
			if _, ok := f.Next(); !ok {
				t.Fatal("frontier ran dry early")
			}
		}
		if f.Len() != 500 {
			t.Errorf("Len() = %d, want 500", f.Len())
		}
		e, ok := f.Next()
		if !ok || e.URL != "https://example.com/p2500" {
			t.Errorf("unexpected entry after compaction: %+v", e)
		}
	})
}
