package frontier

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotAbsolute is returned when a URL has no scheme or host.
var ErrNotAbsolute = errors.New("url is not absolute")

// defaultPorts maps schemes to the port that is implied when none is given.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Canonicalize returns the canonical string form of u, the key of the visited set.
//
// Two URLs that differ only in the following are the same page:
//   - scheme or host letter case
//   - an explicit default port (:80 for http, :443 for https)
//   - the fragment
//   - an empty path versus "/"
//   - a trailing slash on a non-root path
//   - user info
//
// The query string is kept verbatim: ?a=1&b=2 and ?b=2&a=1 may be different pages.
func Canonicalize(u *url.URL) string {
	cu := *u
	cu.Scheme = strings.ToLower(cu.Scheme)
	cu.Host = canonicalHost(cu.Scheme, cu.Host)
	cu.Fragment = ""
	cu.RawFragment = ""
	cu.User = nil

	cu.Path = trimPath(cu.Path)
	if cu.RawPath != "" {
		cu.RawPath = trimPath(cu.RawPath)
	}

	return cu.String()
}

// CanonicalizeString parses raw and canonicalizes it.
func CanonicalizeString(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("canonicalize %q: %w", raw, ErrNotAbsolute)
	}
	return Canonicalize(u), nil
}

// Resolve turns href, as found on the page at base, into an absolute URL
// without a fragment. It returns false for references that never name a page:
// empty hrefs, same-page anchors, and mailto:, javascript:, tel: and data: links.
func Resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "javascript:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return nil, false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, true
}

// canonicalHost lowercases host and drops the port when it is the scheme default.
func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)

	i := strings.LastIndexByte(host, ':')
	if i < 0 || strings.HasSuffix(host, "]") {
		return host
	}
	if port, ok := defaultPorts[scheme]; ok && host[i+1:] == port {
		return host[:i]
	}
	return host
}

// trimPath maps "" to "/" and drops trailing slashes from any other path.
func trimPath(p string) string {
	if p == "" {
		return "/"
	}
	if trimmed := strings.TrimRight(p, "/"); trimmed != "" {
		return trimmed
	}
	return "/"
}
