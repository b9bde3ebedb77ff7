package linkfilter

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/nao1215/sitedigest/internal/model"
)

// ErrInvalidPattern is returned when an include or exclude pattern does not compile.
var ErrInvalidPattern = errors.New("invalid url pattern")

// Rule names the check that rejected a link. It is used in debug logs only.
type Rule string

const (
	// RuleAccepted means no rule rejected the link.
	RuleAccepted Rule = ""

	// RuleScheme rejects anything that is not http or https.
	RuleScheme Rule = "scheme"

	// RuleDomain rejects links to another host.
	RuleDomain Rule = "domain"

	// RulePath rejects links outside the start URL's path.
	RulePath Rule = "path"

	// RuleInclude rejects links that do not match the include pattern.
	RuleInclude Rule = "include"

	// RuleExclude rejects links that match the exclude pattern.
	RuleExclude Rule = "exclude"

	// RuleFileType rejects .epub and .pdf links disabled by the extract options.
	RuleFileType Rule = "file-type"
)

// Filter is a compiled, read-only scope predicate. It is safe for concurrent use.
//
// Both patterns use Go's RE2 syntax and are matched against the full URL as
// discovered, without its fragment, so "^https://example\.com/docs/" and
// ".*/docs/" both match a link to /docs/. Trailing slashes are kept: the
// canonical form only keys the visited set.
type Filter struct {
	host        string
	pathPrefix  string
	restrict    bool
	followLinks bool
	include     *regexp.Regexp
	exclude     *regexp.Regexp
	skipEPUB    bool
	skipPDF     bool
}

// New compiles the scope rules of job. A pattern that does not compile is a
// configuration error and is reported before the crawl starts.
func New(job model.CrawlJob) (*Filter, error) {
	seed, err := job.Seed()
	if err != nil {
		return nil, err
	}

	f := &Filter{
		host:        strings.ToLower(seed.Hostname()),
		pathPrefix:  canonicalPath(seed),
		restrict:    job.RestrictPath,
		followLinks: job.FollowLinks,
		skipEPUB:    job.Extract.IgnoreEPUBs,
		skipPDF:     !job.Extract.IncludePDFs,
	}

	if job.IncludePattern != "" {
		if f.include, err = regexp.Compile(job.IncludePattern); err != nil {
			return nil, fmt.Errorf("%w: include %q: %w", ErrInvalidPattern, job.IncludePattern, err)
		}
	}
	if job.ExcludePattern != "" {
		if f.exclude, err = regexp.Compile(job.ExcludePattern); err != nil {
			return nil, fmt.Errorf("%w: exclude %q: %w", ErrInvalidPattern, job.ExcludePattern, err)
		}
	}
	return f, nil
}

// Accept reports whether u is in scope.
func (f *Filter) Accept(u *url.URL) bool {
	return f.Evaluate(u) == RuleAccepted
}

// Evaluate runs the rules in order and returns the first one that rejects u,
// or RuleAccepted.
func (f *Filter) Evaluate(u *url.URL) Rule {
	if rule := f.EvaluateScope(u); rule != RuleAccepted {
		return rule
	}

	p := canonicalPath(u)
	if f.restrict && !isDescendant(f.pathPrefix, p) {
		return RulePath
	}

	if f.include != nil || f.exclude != nil {
		full := matchTarget(u)
		if f.include != nil && !f.include.MatchString(full) {
			return RuleInclude
		}
		if f.exclude != nil && f.exclude.MatchString(full) {
			return RuleExclude
		}
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".epub":
		if f.skipEPUB {
			return RuleFileType
		}
	case ".pdf":
		if f.skipPDF {
			return RuleFileType
		}
	}

	return RuleAccepted
}

// EvaluateScope runs only the scheme and domain rules. Redirect targets are
// held to these: a redirect may not leave the crawl's hosts, but it may land
// on a URL the patterns would not have queued.
func (f *Filter) EvaluateScope(u *url.URL) Rule {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return RuleScheme
	}
	if !f.followLinks && !strings.EqualFold(u.Hostname(), f.host) {
		return RuleDomain
	}
	return RuleAccepted
}

// matchTarget is the string the include and exclude patterns see.
func matchTarget(u *url.URL) string {
	cu := *u
	cu.Fragment = ""
	cu.RawFragment = ""
	return cu.String()
}

// canonicalPath returns the path of u the way the visited set stores it.
func canonicalPath(u *url.URL) string {
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return "/"
	}
	return p
}

// isDescendant reports whether p is prefix itself or lies below it.
// The comparison works on whole segments: /docs2 is not below /docs.
func isDescendant(prefix, p string) bool {
	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}
