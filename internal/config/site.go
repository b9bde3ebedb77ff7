package config

import (
	"maps"
	"time"

	"github.com/nao1215/sitedigest/internal/model"
)

// SiteConfig holds settings for one host.
// Zero values mean "not set" and leave the global setting in place.
type SiteConfig struct {
	// Cookie is sent verbatim as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the maximum crawl depth.
	Depth int `yaml:"depth,omitempty"`

	// MaxPages overrides the page budget.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Delay overrides the per-host request spacing ("500ms", "2s").
	Delay time.Duration `yaml:"delay,omitempty"`

	// IncludePattern is a regular expression every followed link must match.
	IncludePattern string `yaml:"include,omitempty"`

	// ExcludePattern is a regular expression no followed link may match.
	ExcludePattern string `yaml:"exclude,omitempty"`

	// RespectRobots enables robots.txt compliance for this host.
	RespectRobots *bool `yaml:"respectRobots,omitempty"`
}

// File represents the structure of the .sitedigest configuration file.
type File struct {
	// Sites maps a host ("docs.example.com" or "localhost:8080") to its settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every host unless the site section overrides it.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over the defaults.
// host may carry a port; when no section matches it exactly the port is
// dropped and the bare hostname is tried.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	site, ok := cf.Sites[host]
	if !ok {
		if i := lastColon(host); i >= 0 {
			site, ok = cf.Sites[host[:i]]
		}
	}
	if !ok {
		return cf.Defaults.clone()
	}
	return merge(cf.Defaults, site)
}

func merge(defaults, override SiteConfig) SiteConfig {
	result := defaults.clone()

	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if override.Depth != 0 {
		result.Depth = override.Depth
	}
	if override.MaxPages != 0 {
		result.MaxPages = override.MaxPages
	}
	if override.Delay != 0 {
		result.Delay = override.Delay
	}
	if len(override.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(override.Headers))
		}
		maps.Copy(result.Headers, override.Headers)
	}
	if override.IncludePattern != "" {
		result.IncludePattern = override.IncludePattern
	}
	if override.ExcludePattern != "" {
		result.ExcludePattern = override.ExcludePattern
	}
	if override.RespectRobots != nil {
		result.RespectRobots = override.RespectRobots
	}
	return result
}

func (s SiteConfig) clone() SiteConfig {
	if s.Headers != nil {
		s.Headers = maps.Clone(s.Headers)
	}
	return s
}

// apply writes the settings that are set onto job.
func (s SiteConfig) apply(job *model.CrawlJob) {
	if s.Cookie != "" {
		job.Cookie = s.Cookie
	}
	if len(s.Headers) > 0 {
		job.Headers = maps.Clone(s.Headers)
	}
	if s.Depth != 0 {
		job.MaxDepth = s.Depth
	}
	if s.MaxPages != 0 {
		job.MaxPages = s.MaxPages
	}
	if s.Delay != 0 {
		job.Delay = s.Delay
	}
	if s.IncludePattern != "" {
		job.IncludePattern = s.IncludePattern
	}
	if s.ExcludePattern != "" {
		job.ExcludePattern = s.ExcludePattern
	}
	if s.RespectRobots != nil {
		job.RespectRobots = *s.RespectRobots
	}
}

// lastColon returns the index of the port separator in host, or -1.
// IPv6 literals without a port ("[::1]") have none.
func lastColon(host string) int {
	for i := len(host) - 1; i >= 0; i-- {
		switch host[i] {
		case ':':
			return i
		case ']':
			return -1
		}
	}
	return -1
}
