package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tweetcollector/pkg/database"
	"tweetcollector/pkg/models"
	"tweetcollector/pkg/storage"
	"tweetcollector/pkg/ui"
)

var (
	runsLimit  int
	runsDBFlag string
	countsFlag string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded collection runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "Show a run and the outcome of every user",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Print the per-day count table",
	Long: `Print the count table as CSV: one row per user, one column per run date,
each cell the number of entries collected for that user that day.`,
	Args: cobra.NoArgs,
	RunE: runCounts,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(countsCmd)

	runsCmd.PersistentFlags().StringVar(&runsDBFlag, "db", "", "database DSN (default tweets.db)")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "number of runs to show (0 shows all)")
	countsCmd.Flags().StringVar(&countsFlag, "counts", "", "count table CSV (default tweet_count.csv)")
}

func openRunsStore(ctx context.Context) (*database.DB, error) {
	flags := map[string]interface{}{}
	if runsDBFlag != "" {
		flags["db"] = runsDBFlag
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if _, err := initLogger(cfg); err != nil {
		return nil, err
	}
	return openStore(ctx, cfg)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openRunsStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.PrintInfo("Runs", "none recorded yet")
		return nil
	}

	fmt.Printf("%-38s %-12s %-20s %-10s %-9s %s\n", "RUN", "DATE", "STARTED", "ELAPSED", "SUCCEEDED", "FAILED")
	for _, r := range runs {
		fmt.Printf("%-38s %-12s %-20s %-10s %-9d %d\n",
			r.RunID, r.Date, formatTime(r.StartedAt), r.Elapsed.Round(time.Second), r.Succeeded, r.Failed)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openRunsStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRun(ctx, args[0])
	if database.IsNotFound(err) {
		return fmt.Errorf("no run with id %s", args[0])
	}
	if err != nil {
		return err
	}
	outcomes, err := db.RunOutcomes(ctx, run.RunID)
	if err != nil {
		return err
	}

	summary := &models.RunSummary{
		RunID:     run.RunID,
		Date:      run.Date,
		StartedAt: run.StartedAt,
		Elapsed:   run.Elapsed,
		Succeeded: run.Succeeded,
		Failed:    run.Failed,
		Counts:    make(map[int64]int, len(outcomes)),
		Outcomes:  make(map[int64]*models.Outcome, len(outcomes)),
	}
	for i := range outcomes {
		o := &outcomes[i]
		summary.Outcomes[o.UserID] = o
		summary.Counts[o.UserID] = o.Count
	}

	fmt.Println(ui.RenderRunSummary(summary, len(outcomes)))
	return nil
}

func runCounts(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if countsFlag != "" {
		flags["counts"] = countsFlag
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	table, err := storage.LoadCountTable(cfg.Output.CountTable)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout)
}
