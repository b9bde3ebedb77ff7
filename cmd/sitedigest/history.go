package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitedigest/internal/config"
	"github.com/nao1215/sitedigest/internal/database"
	"github.com/nao1215/sitedigest/internal/frontier"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List archived crawls and compare them",
		Long: `History shows the crawls stored in the history database.

Without arguments every archived start URL and every run is listed.
With a start URL only the runs of that URL are listed; --diff compares the
pages of its latest two runs and reports added, removed and changed URLs.

Examples:
  # List every archived run
  sitedigest history

  # List the runs of one site
  sitedigest history https://docs.example.com/

  # What changed since the previous crawl?
  sitedigest history --diff https://docs.example.com/

  # Compare the latest run with run 3, as JSON
  sitedigest history --diff --with-run-id 3 --json https://docs.example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("diff", false, "Compare the latest two runs of the start URL")
	cmd.Flags().Int64P("with-run-id", "i", 0, "Compare the latest run with this run instead of the previous one")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	showDiff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	if (showDiff || withRunID != 0) && len(args) == 0 {
		return errors.New("a start URL is required to compare runs")
	}

	archive, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer archive.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		return listAllRuns(ctx, out, archive)
	}

	startURL, runs, err := lookupRuns(ctx, archive, args[0])
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no archived crawls of %s", args[0])
	}

	if !showDiff && withRunID == 0 {
		fmt.Fprintf(out, "Crawl history of %s\n", startURL)
		renderRuns(out, runs, false)
		return nil
	}

	newID := runs[0].ID
	oldID := withRunID
	if oldID == 0 {
		if len(runs) < 2 {
			return fmt.Errorf("only one archived crawl of %s; crawl it again to compare", startURL)
		}
		oldID = runs[1].ID
	}
	if oldID == newID {
		return errors.New("cannot compare a run with itself")
	}

	diff, err := archive.Diff(ctx, oldID, newID)
	if err != nil {
		return fmt.Errorf("failed to compare runs: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}
	printDiff(out, startURL, diff)
	return nil
}

// lookupRuns returns the runs of raw, trying it as given and then canonicalized.
func lookupRuns(ctx context.Context, archive *database.Archive, raw string) (string, []database.RunSummary, error) {
	candidates := []string{raw}
	if canonical, err := frontier.CanonicalizeString(raw); err == nil && canonical != raw {
		candidates = append(candidates, canonical)
	}
	for _, u := range candidates {
		runs, err := archive.History(ctx, u)
		if err != nil {
			return "", nil, err
		}
		if len(runs) > 0 {
			return u, runs, nil
		}
	}
	return raw, nil, nil
}

func listAllRuns(ctx context.Context, out io.Writer, archive *database.Archive) error {
	urls, err := archive.StartURLs(ctx)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		fmt.Fprintln(out, "No crawls archived yet. Run 'sitedigest crawl <url>' first.")
		return nil
	}

	fmt.Fprintf(out, "Archived start URLs (%d):\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  %s\n", u)
	}
	fmt.Fprintln(out)

	runs, err := archive.History(ctx, "")
	if err != nil {
		return err
	}
	renderRuns(out, runs, true)
	return nil
}

func renderRuns(out io.Writer, runs []database.RunSummary, withURL bool) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)

	header := table.Row{"ID", "Date", "Pages", "OK", "Failed", "Skipped", "Stop", "Elapsed"}
	if withURL {
		header = append(header, "Start URL")
	}
	t.AppendHeader(header)

	for _, r := range runs {
		row := table.Row{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.PagesCrawled,
			r.PagesOK,
			r.PagesFailed,
			r.Skipped,
			string(r.StopReason),
			r.Elapsed.String(),
		}
		if withURL {
			row = append(row, r.StartURL)
		}
		t.AppendRow(row)
	}
	t.Render()
}

func printDiff(out io.Writer, startURL string, diff *database.RunDiff) {
	fmt.Fprintf(out, "Comparing run %d with run %d of %s\n\n", diff.NewRunID, diff.OldRunID, startURL)
	if diff.Identical() {
		fmt.Fprintf(out, "The runs are identical (%d pages unchanged).\n", diff.Unchanged)
		return
	}

	section := func(title, marker string, urls []string) {
		if len(urls) == 0 {
			return
		}
		fmt.Fprintf(out, "%s (%d):\n", title, len(urls))
		for _, u := range urls {
			fmt.Fprintf(out, "  %s %s\n", marker, u)
		}
		fmt.Fprintln(out)
	}
	section("Added", "+", diff.Added)
	section("Removed", "-", diff.Removed)
	section("Changed", "~", diff.Changed)
	fmt.Fprintf(out, "Unchanged: %d\n", diff.Unchanged)
}
