package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitedigest/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "sitedigest.db"

// timeLayout stores timestamps in UTC with fixed-width fractions so that
// started_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Archive stores finished crawl reports so runs against the same start URL
// can be listed and compared. A run is never resumed from the archive.
type Archive struct {
	db     *sql.DB
	dbPath string
}

// Options configures Archive behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*Archive, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		}
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	a := &Archive{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := a.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return a, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.dbPath
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables() error {
	schema := `
	-- One row per finished crawl job
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		stop_reason TEXT NOT NULL,
		pages_crawled INTEGER NOT NULL,
		pages_ok INTEGER NOT NULL,
		pages_failed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON crawl_runs(start_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON crawl_runs(started_at);

	-- Per-page index of each run, used to diff runs without decoding reports
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER,
		kind TEXT,
		title TEXT,
		content_hash TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`
	_, err := a.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores report and its pages in one transaction and returns the run ID.
func (a *Archive) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	if report == nil {
		return 0, errors.New("nil report")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (start_url, started_at, elapsed_ms, stop_reason,
		pages_crawled, pages_ok, pages_failed, skipped, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.StartURL,
		report.StartedAt.UTC().Format(timeLayout),
		report.Elapsed.Milliseconds(),
		string(report.StopReason),
		report.PagesCrawled,
		report.PagesOK,
		report.PagesFailed,
		len(report.Skipped),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, url, depth, status, status_code, kind, title, content_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range report.Pages {
		if _, err := stmt.ExecContext(ctx, runID,
			p.URL, p.Depth, string(p.Status), p.StatusCode, string(p.Kind), p.Title, p.ContentHash,
		); err != nil {
			return 0, fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// RunSummary is the metadata of one archived run.
type RunSummary struct {
	ID           int64
	StartURL     string
	StartedAt    time.Time
	Elapsed      time.Duration
	StopReason   model.StopReason
	PagesCrawled int
	PagesOK      int
	PagesFailed  int
	Skipped      int
}

// History returns the runs of startURL, newest first.
// An empty startURL lists the runs of every start URL.
func (a *Archive) History(ctx context.Context, startURL string) ([]RunSummary, error) {
	query := `
	SELECT id, start_url, started_at, elapsed_ms, stop_reason,
		pages_crawled, pages_ok, pages_failed, skipped
	FROM crawl_runs
	`
	var args []any
	if startURL != "" {
		query += " WHERE start_url = ?"
		args = append(args, startURL)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r         RunSummary
			startedAt string
			elapsedMS int64
			reason    string
		)
		if err := rows.Scan(&r.ID, &r.StartURL, &startedAt, &elapsedMS, &reason,
			&r.PagesCrawled, &r.PagesOK, &r.PagesFailed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(startedAt)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.StopReason = model.StopReason(reason)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StartURLs returns every archived start URL in lexical order.
func (a *Archive) StartURLs(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT DISTINCT start_url FROM crawl_runs ORDER BY start_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list start urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan start url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Latest returns the newest report for startURL, or nil when there is none.
func (a *Archive) Latest(ctx context.Context, startURL string) (*model.CrawlReport, error) {
	return a.loadReport(ctx, `
	SELECT report_json FROM crawl_runs
	WHERE start_url = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`, startURL)
}

// ReportByID returns the report of run id, or nil when there is none.
func (a *Archive) ReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	return a.loadReport(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id)
}

func (a *Archive) loadReport(ctx context.Context, query string, arg any) (*model.CrawlReport, error) {
	var reportJSON string
	err := a.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// RunDiff lists how the page set of a newer run differs from an older one.
type RunDiff struct {
	OldRunID int64 `json:"old_run_id"`
	NewRunID int64 `json:"new_run_id"`

	// Added are URLs crawled only in the newer run.
	Added []string `json:"added"`
	// Removed are URLs crawled only in the older run.
	Removed []string `json:"removed"`
	// Changed are URLs whose content hash or status differs.
	Changed []string `json:"changed"`
	// Unchanged counts URLs present in both runs with identical content.
	Unchanged int `json:"unchanged"`
}

// Identical reports whether both runs crawled the same pages with the same content.
func (d *RunDiff) Identical() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

type pageKey struct {
	status string
	hash   string
}

// Diff compares the pages of two runs.
func (a *Archive) Diff(ctx context.Context, oldID, newID int64) (*RunDiff, error) {
	older, err := a.pageIndex(ctx, oldID)
	if err != nil {
		return nil, err
	}
	newer, err := a.pageIndex(ctx, newID)
	if err != nil {
		return nil, err
	}

	diff := &RunDiff{OldRunID: oldID, NewRunID: newID}
	for u, nk := range newer {
		ok, found := older[u]
		switch {
		case !found:
			diff.Added = append(diff.Added, u)
		case ok != nk:
			diff.Changed = append(diff.Changed, u)
		default:
			diff.Unchanged++
		}
	}
	for u := range older {
		if _, found := newer[u]; !found {
			diff.Removed = append(diff.Removed, u)
		}
	}
	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.Sort(diff.Changed)
	return diff, nil
}

func (a *Archive) pageIndex(ctx context.Context, runID int64) (map[string]pageKey, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT url, status, COALESCE(content_hash, '') FROM pages WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages of run %d: %w", runID, err)
	}
	defer rows.Close()

	index := make(map[string]pageKey)
	for rows.Next() {
		var u string
		var k pageKey
		if err := rows.Scan(&u, &k.status, &k.hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		index[u] = k
	}
	return index, rows.Err()
}

// timestampFormats are tried in order when reading a stored timestamp.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
