package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitedigest/internal/linkfilter"
	"github.com/nao1215/sitedigest/internal/model"
	"github.com/nao1215/sitedigest/internal/report"
)

const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitedigest"

	// DefaultBatchSize is the number of start URLs crawled at the same time
	// when several are given on the command line.
	DefaultBatchSize = 2
)

// Config holds all options of a sitedigest invocation.
// It is populated from CLI flags and the optional configuration file and
// turned into one model.CrawlJob per start URL by JobFor.
type Config struct {
	// StartURLs are the seeds to crawl. Each one is an independent job.
	StartURLs []string

	// MaxDepth is the maximum number of link hops from the start URL.
	MaxDepth int

	// MaxPages caps the number of fetches started per job.
	MaxPages int

	// Concurrency is the maximum number of fetches in flight per job.
	Concurrency int

	// Delay is the minimum interval between two requests to the same host.
	Delay time.Duration

	// Timeout aborts a single fetch.
	Timeout time.Duration

	// MaxTime, when positive, aborts the whole run after this long.
	// The reports gathered so far are still written.
	MaxTime time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// IncludePattern and ExcludePattern are regular expressions applied to
	// every discovered link.
	IncludePattern string
	ExcludePattern string

	// RestrictPath keeps the crawl below the start URL's path.
	RestrictPath bool

	// FollowLinks allows the crawl to leave the start URL's host.
	FollowLinks bool

	// RespectRobots enables robots.txt compliance.
	RespectRobots bool

	// Extract holds the content-extraction toggles.
	Extract model.ExtractOptions

	// MaxBodySize limits how many bytes of a response are read.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of start URLs crawled concurrently.
	BatchSize int

	// ConfigFilePath is an explicit path to the configuration file.
	// When empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the per-host settings loaded from the config file.
	SiteConfigs *File

	// JSONReport, MarkdownReport and DigestReport select the report format.
	// They are mutually exclusive; the default is plain text.
	JSONReport     bool
	MarkdownReport bool
	DigestReport   bool

	// ReportFile is the output path for the report. Stdout when empty.
	ReportFile string

	// URLsFile, when set, receives the list of processed URLs.
	URLsFile string

	// DBDir is the directory holding the report archive.
	DBDir string

	// SaveToDB stores finished reports in the archive.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:    model.DefaultMaxDepth,
		MaxPages:    model.DefaultMaxPages,
		Concurrency: model.DefaultConcurrency,
		Delay:       model.DefaultDelay,
		Timeout:     model.DefaultTimeout,
		UserAgent:   model.DefaultUserAgent,
		Extract:     model.DefaultExtractOptions(),
		MaxBodySize: model.DefaultMaxBodySize,
		BatchSize:   DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for sitedigest.
// On Linux: ~/.local/share/sitedigest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitedigest.
// On Linux: ~/.config/sitedigest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and every job it produces, so that all
// configuration errors surface before the first request.
// It returns the first error found.
func (c *Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrNoStartURL
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.formatCount() > 1 {
		return ErrConflictingReportFormats
	}
	if c.MaxTime < 0 {
		return ErrInvalidMaxTime
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	for _, raw := range c.StartURLs {
		job := c.JobFor(raw)
		if err := job.Validate(); err != nil {
			return fmt.Errorf("%s: %w", raw, err)
		}
		if _, err := linkfilter.New(job); err != nil {
			return fmt.Errorf("%s: %w", raw, err)
		}
	}
	return nil
}

// ReportFormat returns the selected report format.
func (c *Config) ReportFormat() report.Format {
	switch {
	case c.JSONReport:
		return report.FormatJSON
	case c.MarkdownReport:
		return report.FormatMarkdown
	case c.DigestReport:
		return report.FormatDigest
	default:
		return report.FormatText
	}
}

func (c *Config) formatCount() int {
	n := 0
	for _, set := range []bool{c.JSONReport, c.MarkdownReport, c.DigestReport} {
		if set {
			n++
		}
	}
	return n
}

// JobFor builds the crawl job for startURL: global settings first, then the
// defaults section of the config file, then the matching site section.
func (c *Config) JobFor(startURL string) model.CrawlJob {
	job := model.NewCrawlJob(startURL)
	job.MaxDepth = c.MaxDepth
	job.MaxPages = c.MaxPages
	job.Concurrency = c.Concurrency
	job.Delay = c.Delay
	job.Timeout = c.Timeout
	job.UserAgent = c.UserAgent
	job.IncludePattern = c.IncludePattern
	job.ExcludePattern = c.ExcludePattern
	job.RestrictPath = c.RestrictPath
	job.FollowLinks = c.FollowLinks
	job.RespectRobots = c.RespectRobots
	job.Extract = c.Extract
	job.ProxyAddress = c.ProxyAddress
	if c.MaxBodySize > 0 {
		job.MaxBodySize = c.MaxBodySize
	}

	if c.SiteConfigs == nil {
		return job
	}
	site := c.SiteConfigs.GetSiteConfig(siteKey(startURL))
	site.apply(&job)
	return job
}

// siteKey returns the host of raw, or raw itself when it does not parse.
func siteKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Host)
}
