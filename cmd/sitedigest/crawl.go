package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitedigest/internal/config"
	"github.com/nao1215/sitedigest/internal/crawler"
	"github.com/nao1215/sitedigest/internal/database"
	"github.com/nao1215/sitedigest/internal/model"
	"github.com/nao1215/sitedigest/internal/pipeline"
	"github.com/nao1215/sitedigest/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url> [url...]",
		Short: "Crawl websites and extract their content",
		Long: `Crawl fetches pages breadth-first from each start URL and extracts their content.

Links are followed up to --depth hops from the start URL, on the start URL's
host only unless --follow-links is set. No more than --max-pages pages are
fetched per start URL, at most --concurrency at a time, and requests to the
same host are spaced by --delay.

Pages that fail are listed in the report with the reason. Press Ctrl+C (or
set --max-time) to stop early; the pages crawled so far are still reported.

Examples:
  # Crawl a documentation site and print a summary
  sitedigest crawl https://docs.example.com/

  # Stay under /guide/ and write every page's text as one XML digest
  sitedigest crawl --restrict-path --digest -o guide.xml https://docs.example.com/guide/

  # Full JSON report plus the list of processed URLs
  sitedigest crawl --json -o report.json --urls-file urls.txt https://example.com/

  # Crawl two sites side by side
  sitedigest crawl -b 2 https://a.example.com/ https://b.example.com/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Scope and limits
	f.IntP("depth", "d", model.DefaultMaxDepth, "Maximum number of link hops from the start URL")
	f.IntP("max-pages", "p", model.DefaultMaxPages, "Maximum number of pages fetched per start URL")
	f.IntP("concurrency", "n", model.DefaultConcurrency, "Maximum number of fetches in flight")
	f.Duration("delay", model.DefaultDelay, "Minimum interval between requests to the same host")
	f.DurationP("timeout", "t", model.DefaultTimeout, "Timeout for a single fetch")
	f.Duration("max-time", 0, "Stop the whole crawl after this duration (0 = no limit)")
	f.String("user-agent", model.DefaultUserAgent, "User-Agent header sent with every request")
	f.String("include", "", "Only follow links whose URL matches this regular expression")
	f.String("exclude", "", "Never follow links whose URL matches this regular expression")
	f.Bool("restrict-path", false, "Only follow links below the start URL's path")
	f.Bool("follow-links", false, "Follow links to other hosts")
	f.Bool("respect-robots", false, "Obey robots.txt")
	f.Int64("max-body-size", model.DefaultMaxBodySize, "Maximum response body size in bytes")
	f.String("proxy", "", "SOCKS5 proxy address (host:port)")

	// Extraction
	defaults := model.DefaultExtractOptions()
	f.Bool("clean-html", defaults.CleanHTML, "Keep only the main content of HTML pages")
	f.Bool("strip-js", defaults.StripJS, "Remove scripts")
	f.Bool("strip-css", defaults.StripCSS, "Remove styles")
	f.Bool("strip-comments", defaults.StripComments, "Remove HTML comments")
	f.Bool("headings", defaults.ExtractHeadings, "Collect h1-h6 headings")
	f.Bool("code", defaults.IncludeCode, "Collect code blocks")
	f.Bool("images", defaults.IncludeImages, "Collect image URLs")
	f.Bool("pdfs", defaults.IncludePDFs, "Extract text from PDF documents")
	f.Bool("ignore-epubs", defaults.IgnoreEPUBs, "Skip EPUB documents")

	// Batch and configuration
	f.IntP("batch", "b", config.DefaultBatchSize, "Number of start URLs crawled at the same time")
	f.StringP("config", "c", "", "Configuration file path (default: .sitedigest in current or home directory)")

	// Output
	f.BoolP("json", "j", false, "Output the full report as JSON")
	f.BoolP("markdown", "m", false, "Output a Markdown report")
	f.BoolP("digest", "x", false, "Output the content of every page as one XML digest")
	f.Bool("summary", false, "Output only the summary, without page content")
	f.StringP("output", "o", "", "Write the report to this file (creates directories if needed)")
	f.String("urls-file", "", "Write the list of processed URLs to this file")
	f.Bool("progress", true, "Show a progress bar on stderr")
	f.Bool("no-save", false, "Do not store the report in the history database")
	f.String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)
	slog.SetDefault(logger)

	showProgress, err := cmd.Flags().GetBool("progress")
	if err != nil {
		return err
	}
	summaryOnly, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing in-flight pages")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.MaxTime > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, cfg.MaxTime)
		defer timeoutCancel()
	}

	return runCrawl(ctx, cfg, crawlOptions{
		out:          cmd.OutOrStdout(),
		errOut:       cmd.ErrOrStderr(),
		logger:       logger,
		showProgress: showProgress,
		summaryOnly:  summaryOnly,
	})
}

// flagReader reads flags and keeps the first lookup error.
type flagReader struct {
	cmd *cobra.Command
	err error
}

func (r *flagReader) boolean(name string) bool {
	v, err := r.cmd.Flags().GetBool(name)
	r.keep(err)
	return v
}

func (r *flagReader) integer(name string) int {
	v, err := r.cmd.Flags().GetInt(name)
	r.keep(err)
	return v
}

func (r *flagReader) int64(name string) int64 {
	v, err := r.cmd.Flags().GetInt64(name)
	r.keep(err)
	return v
}

func (r *flagReader) duration(name string) time.Duration {
	v, err := r.cmd.Flags().GetDuration(name)
	r.keep(err)
	return v
}

func (r *flagReader) str(name string) string {
	v, err := r.cmd.Flags().GetString(name)
	r.keep(err)
	return v
}

func (r *flagReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	r := &flagReader{cmd: cmd}

	cfg.StartURLs = args
	cfg.MaxDepth = r.integer("depth")
	cfg.MaxPages = r.integer("max-pages")
	cfg.Concurrency = r.integer("concurrency")
	cfg.Delay = r.duration("delay")
	cfg.Timeout = r.duration("timeout")
	cfg.MaxTime = r.duration("max-time")
	cfg.UserAgent = r.str("user-agent")
	cfg.IncludePattern = r.str("include")
	cfg.ExcludePattern = r.str("exclude")
	cfg.RestrictPath = r.boolean("restrict-path")
	cfg.FollowLinks = r.boolean("follow-links")
	cfg.RespectRobots = r.boolean("respect-robots")
	cfg.MaxBodySize = r.int64("max-body-size")
	cfg.ProxyAddress = r.str("proxy")

	cfg.Extract = model.ExtractOptions{
		CleanHTML:       r.boolean("clean-html"),
		StripJS:         r.boolean("strip-js"),
		StripCSS:        r.boolean("strip-css"),
		StripComments:   r.boolean("strip-comments"),
		ExtractHeadings: r.boolean("headings"),
		IncludeCode:     r.boolean("code"),
		IncludeImages:   r.boolean("images"),
		IncludePDFs:     r.boolean("pdfs"),
		IgnoreEPUBs:     r.boolean("ignore-epubs"),
	}

	cfg.BatchSize = r.integer("batch")
	cfg.ConfigFilePath = r.str("config")
	cfg.JSONReport = r.boolean("json")
	cfg.MarkdownReport = r.boolean("markdown")
	cfg.DigestReport = r.boolean("digest")
	cfg.ReportFile = r.str("output")
	cfg.URLsFile = r.str("urls-file")
	cfg.SaveToDB = !r.boolean("no-save")
	cfg.DBDir = r.str("db-dir")
	cfg.Verbose = getVerboseFlag(cmd)
	if r.err != nil {
		return nil, r.err
	}

	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = file
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	return cfg, nil
}

type crawlOptions struct {
	out          io.Writer
	errOut       io.Writer
	logger       *slog.Logger
	showProgress bool
	summaryOnly  bool

	// crawlerOpts are appended to the options of every crawler.
	crawlerOpts []crawler.Option
}

// runCrawl crawls every start URL of cfg and writes the reports.
func runCrawl(ctx context.Context, cfg *config.Config, opts crawlOptions) error {
	logger := opts.logger

	var archive *database.Archive
	if cfg.SaveToDB {
		var err error
		archive, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer archive.Close()
		logger.Debug("database opened", "path", archive.Path())
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, opts.out)
	if err != nil {
		return err
	}
	defer closeOutput()

	var urlsOut io.Writer
	if cfg.URLsFile != "" {
		var closeURLs func()
		urlsOut, closeURLs, err = openOutput(cfg.URLsFile, nil)
		if err != nil {
			return err
		}
		defer closeURLs()
	}

	writer := report.New(cfg.ReportFormat(), output, getVersion())
	if cfg.ReportFormat() == report.FormatText {
		writer = report.NewTextWriter(output, report.WithVerbose(cfg.Verbose))
	}

	crawlerOpts := append([]crawler.Option{crawler.WithLogger(logger)}, opts.crawlerOpts...)
	var submitter pipeline.Submitter = crawler.New(crawlerOpts...)
	if opts.showProgress {
		bar := newProgressBar(opts.errOut)
		defer bar.stop()
		submitter = bar.submitter(crawlerOpts...)
	}

	var outMu, urlsMu sync.Mutex
	newPipeline := func() *pipeline.Pipeline {
		p := pipeline.New(
			pipeline.WithLogger(logger),
			pipeline.WithContinueOnError(true),
		)
		p.AddSteps(
			pipeline.NewCrawlStep(submitter, pipeline.WithCrawlLogger(logger)),
			pipeline.NewReportStep(writer,
				pipeline.WithSummaryOnly(opts.summaryOnly),
				pipeline.WithOutputLock(&outMu),
			),
		)
		if urlsOut != nil {
			p.AddStep(pipeline.NewURLListStep(urlsOut, &urlsMu))
		}
		if archive != nil {
			p.AddStep(pipeline.NewArchiveStep(archive, pipeline.WithArchiveLogger(logger)))
		}
		return p
	}

	jobs := make([]model.CrawlJob, len(cfg.StartURLs))
	for i, u := range cfg.StartURLs {
		jobs[i] = cfg.JobFor(u)
	}

	logger.Info("starting crawl",
		"start_urls", cfg.StartURLs,
		"batch_size", cfg.BatchSize,
		"save_to_db", cfg.SaveToDB,
	)

	runs := make([]*pipeline.Run, len(jobs))
	if len(jobs) > 1 && cfg.BatchSize > 1 {
		bp := pipeline.NewBatchProcessor(newPipeline,
			pipeline.WithConcurrency(cfg.BatchSize),
			pipeline.WithBatchLogger(logger),
		)
		err = bp.ProcessBatchWithCallback(ctx, jobs, func(run *pipeline.Run, index int) {
			runs[index] = run
		})
	} else {
		err = runSequential(ctx, jobs, runs, newPipeline)
	}

	return crawlResult(runs, err)
}

func runSequential(ctx context.Context, jobs []model.CrawlJob, runs []*pipeline.Run, newPipeline func() *pipeline.Pipeline) error {
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		run := pipeline.NewRun(job)
		_ = newPipeline().Execute(ctx, run) //nolint:errcheck // recorded in run.Err
		runs[i] = run
	}
	return nil
}

// crawlResult turns the runs of a crawl into the command's error.
// Canceled crawls that produced a report are not errors.
func crawlResult(runs []*pipeline.Run, batchErr error) error {
	var errs []error
	produced := false
	for _, run := range runs {
		if run == nil {
			continue
		}
		if run.Report != nil {
			produced = true
		}
		if run.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", run.Job.StartURL, run.Err))
		}
	}
	if batchErr != nil && !produced {
		errs = append(errs, batchErr)
	}
	return errors.Join(errs...)
}

// openOutput opens path for writing, or returns fallback when path is empty.
// Reports may contain cookies or private content, so files are created 0600.
func openOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
