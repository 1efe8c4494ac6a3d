/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The history command prints past upload runs recorded with --db.
//
// Example usage:
//
//	mirrorup history --db=mirrorup.db --limit=5
//	mirrorup history --db=mirrorup.db --run=<id> --style=markdown
package cmd

import (
	"fmt"
	"io"

	"github.com/seckatie/mirrorup/internal/core"
	"github.com/seckatie/mirrorup/internal/core/db"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past uploads or print the links of one",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runHistory(cmd); err != nil {
			log.Fatalf("History failed: %v", err)
		}
	},
}

// runHistory is the main function for the history command.
func runHistory(cmd *cobra.Command) error {
	database, err := historyDB(cmd)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.WithField("err", err).Warn("failed to close database")
		}
	}()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to read --limit: %w", err)
	}
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return fmt.Errorf("failed to read --run: %w", err)
	}
	styleName, err := cmd.Flags().GetString("style")
	if err != nil {
		return fmt.Errorf("failed to read --style: %w", err)
	}

	out := cmd.OutOrStdout()
	if runID == "" {
		return printRuns(out, database, limit)
	}

	run, err := database.GetRun(runID)
	if err != nil {
		return err
	}
	style := core.Style(run.Style)
	if styleName != "" {
		if style, err = core.ParseStyle(styleName); err != nil {
			return err
		}
	}
	links, err := database.ListLinks(run.ID)
	if err != nil {
		return err
	}
	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	entries, faults := core.Aggregate(urls)
	for _, f := range faults {
		log.WithField("err", f).Warn("Dropping stored link")
	}
	fmt.Fprintln(out, core.Format(entries, style))
	return nil
}

func printRuns(out io.Writer, database *db.DB, limit int) error {
	runs, err := database.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No uploads recorded.")
		return nil
	}
	for _, r := range runs {
		status := "finished"
		if r.FinishedAt == "" {
			status = "interrupted"
		}
		fmt.Fprintf(out, "%s  %s  %2d link(s)  %-11s  %s\n", r.ID, r.StartedAt, r.LinkCount, status, r.Input)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", core.DefaultHistoryLimit, "Number of runs to list (0 = all)")
	historyCmd.Flags().String("run", "", "Print the links of this run")
	historyCmd.Flags().String("style", "", "Output style for --run (defaults to the style the run used)")
}
