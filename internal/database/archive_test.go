package database

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/sitedigest/internal/model"
)

// setupTestDB creates a temporary archive for testing.
func setupTestDB(t *testing.T) *Archive {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testReport(start string, startedAt time.Time, pages ...model.PageResult) *model.CrawlReport {
	r := &model.CrawlReport{
		StartURL:   start,
		State:      model.StateComplete,
		StopReason: model.StopFrontierExhausted,
		StartedAt:  startedAt,
		Elapsed:    1500 * time.Millisecond,
		Pages:      pages,
		Skipped:    []model.Skip{{URL: start + "private", Reason: "disallowed by robots.txt"}},
	}
	for _, p := range pages {
		r.PagesCrawled++
		if p.OK() {
			r.PagesOK++
		} else {
			r.PagesFailed++
			r.Failures = append(r.Failures, model.Failure{URL: p.URL, Reason: p.Error})
		}
	}
	return r
}

func okPage(url, content string) model.PageResult {
	p := model.PageResult{URL: url, Status: model.StatusOK, StatusCode: 200, Kind: model.KindHTML, Content: content}
	p.ComputeHash()
	return p
}

func failedPage(url string) model.PageResult {
	return model.PageResult{URL: url, Status: model.StatusFailed, StatusCode: 404, Error: "HTTP 404 Not Found"}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := db.SaveReport(context.Background(), testReport("https://example.com/", time.Now())); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.History(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after reopen, got %d", len(runs))
		}
	})
}

// TestSaveReport tests storing and loading reports.
func TestSaveReport(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()
		started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		report := testReport("https://example.com/", started,
			okPage("https://example.com/", "home"),
			failedPage("https://example.com/missing"),
		)

		id, err := db.SaveReport(ctx, report)
		if err != nil {
			t.Fatalf("failed to save report: %v", err)
		}

		got, err := db.ReportByID(ctx, id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected report")
		}
		if got.PagesCrawled != 2 || got.PagesFailed != 1 || len(got.Pages) != 2 {
			t.Errorf("unexpected report: %+v", got)
		}
		if got.Failures[0].Reason != "HTTP 404 Not Found" {
			t.Errorf("failure reason = %q", got.Failures[0].Reason)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
		}
	})

	t.Run("nil report", func(t *testing.T) {
		t.Parallel()

		if _, err := setupTestDB(t).SaveReport(context.Background(), nil); err == nil {
			t.Error("expected error for nil report")
		}
	})

	t.Run("missing report is nil without error", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		got, err := db.ReportByID(context.Background(), 42)
		if err != nil || got != nil {
			t.Errorf("ReportByID = %v, %v; want nil, nil", got, err)
		}
		latest, err := db.Latest(context.Background(), "https://nowhere.example/")
		if err != nil || latest != nil {
			t.Errorf("Latest = %v, %v; want nil, nil", latest, err)
		}
	})
}

// TestHistory tests listing runs.
func TestHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, start := range []string{"https://a.example/", "https://b.example/", "https://a.example/"} {
		r := testReport(start, base.Add(time.Duration(i)*time.Hour), okPage(start, "x"))
		if _, err := db.SaveReport(ctx, r); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
	}

	runs, err := db.History(ctx, "https://a.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("expected newest run first")
	}
	r := runs[0]
	if r.PagesCrawled != 1 || r.PagesOK != 1 || r.Skipped != 1 || r.Elapsed != 1500*time.Millisecond {
		t.Errorf("unexpected summary: %+v", r)
	}
	if r.StopReason != model.StopFrontierExhausted {
		t.Errorf("StopReason = %q", r.StopReason)
	}

	all, err := db.History(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs in total, got %d", len(all))
	}

	urls, err := db.StartURLs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(urls, []string{"https://a.example/", "https://b.example/"}) {
		t.Errorf("StartURLs = %v", urls)
	}

	latest, err := db.Latest(ctx, "https://a.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !latest.StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("Latest returned run from %v", latest.StartedAt)
	}
}

// TestDiff tests comparing the page sets of two runs.
func TestDiff(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	start := "https://example.com/"

	oldID, err := db.SaveReport(ctx, testReport(start, time.Now(),
		okPage(start, "home"),
		okPage(start+"a", "a v1"),
		okPage(start+"gone", "gone"),
		okPage(start+"b", "b"),
	))
	if err != nil {
		t.Fatalf("failed to save report: %v", err)
	}
	newID, err := db.SaveReport(ctx, testReport(start, time.Now(),
		okPage(start, "home"),
		okPage(start+"a", "a v2"),
		failedPage(start+"b"),
		okPage(start+"new", "new"),
	))
	if err != nil {
		t.Fatalf("failed to save report: %v", err)
	}

	diff, err := db.Diff(ctx, oldID, newID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(diff.Added, []string{start + "new"}) {
		t.Errorf("Added = %v", diff.Added)
	}
	if !slices.Equal(diff.Removed, []string{start + "gone"}) {
		t.Errorf("Removed = %v", diff.Removed)
	}
	if !slices.Equal(diff.Changed, []string{start + "a", start + "b"}) {
		t.Errorf("Changed = %v", diff.Changed)
	}
	if diff.Unchanged != 1 || diff.Identical() {
		t.Errorf("Unchanged = %d Identical = %v", diff.Unchanged, diff.Identical())
	}

	same, err := db.Diff(ctx, newID, newID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !same.Identical() || same.Unchanged != 4 {
		t.Errorf("self diff = %+v", same)
	}
}

// TestParseTimestamp tests the supported timestamp formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"2026-01-02T03:04:05.123456789Z", "2026-01-02T03:04:05Z", "2026-01-02 03:04:05"} {
		if parseTimestamp(s).IsZero() {
			t.Errorf("parseTimestamp(%q) returned zero time", s)
		}
	}
	if !parseTimestamp("yesterday").IsZero() {
		t.Error("expected zero time for unparseable input")
	}
}
