package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tweetcollector/pkg/checkpoint"
	"tweetcollector/pkg/collector"
	"tweetcollector/pkg/models"
	"tweetcollector/pkg/storage"
	"tweetcollector/pkg/timeline"
	tw "tweetcollector/pkg/twitter"
	"tweetcollector/pkg/ui"
	"tweetcollector/pkg/ui/tui"
)

var (
	dbPath            string
	countsPath        string
	language          string
	accountName       string
	pageSize          int
	continueThreshold int
	strictPages       bool
	resumeRun         bool
	useTUI            bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect new timeline entries for every cohort member",
	Long: `Collect new timeline entries for every user in the cohort.

Each user is fetched from the newest entry back to the highest id already
stored, filtered by language and written in a single transaction. Per-user
failures never stop the run. After the run the per-user counts are added to
the count table under today's date.

Progress is checkpointed after every user. With --resume a run interrupted
earlier the same day continues where it stopped.`,
	Example: `  # Collect with the default settings
  tweetcollector collect

  # Keep every language and use a specific stored account
  tweetcollector collect --language "" --account research

  # Resume an interrupted run with a live monitor
  tweetcollector collect --resume --tui`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&dbPath, "db", "", "database DSN (default tweets.db)")
	collectCmd.Flags().StringVar(&countsPath, "counts", "", "count table CSV (default tweet_count.csv)")
	collectCmd.Flags().StringVar(&language, "language", "en", "keep only entries in this language, empty keeps all")
	collectCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	collectCmd.Flags().IntVar(&pageSize, "page-size", 0, "entries requested per page (max 200)")
	collectCmd.Flags().IntVar(&continueThreshold, "continue-threshold", 0, "first-page length that triggers fetching older pages")
	collectCmd.Flags().BoolVar(&strictPages, "strict-pages", false, "only fetch older pages when the first page is full")
	collectCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume today's interrupted run from its checkpoint")
	collectCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live monitor instead of console logs")
}

func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{}
	if dbPath != "" {
		flags["db"] = dbPath
	}
	if countsPath != "" {
		flags["counts"] = countsPath
	}
	if cmd.Flags().Changed("language") {
		flags["language"] = language
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if continueThreshold > 0 {
		flags["continue-threshold"] = continueThreshold
	}
	if cmd.Flags().Changed("strict-pages") {
		flags["strict-pages"] = strictPages
	}
	if cmd.Flags().Changed("resume") {
		flags["resume"] = resumeRun
	}
	if useTUI {
		flags["quiet"] = true
	}
	return flags
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(collectFlags(cmd))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := initLogger(cfg)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cohort, err := db.Cohort(ctx)
	if err != nil {
		return err
	}
	if len(cohort) == 0 {
		ui.PrintWarning("The cohort is empty", "add users with 'tweetcollector cohort add'")
		return nil
	}

	table, err := storage.LoadCountTable(cfg.Output.CountTable)
	if err != nil {
		return err
	}

	var monitor *tui.Monitor
	var clientOpts []tw.Option
	if useTUI {
		monitor = tui.NewMonitor()
		clientOpts = append(clientOpts, tw.WithWaitHook(monitor.RateLimited))
	}

	client, err := newClient(cfg, log, clientOpts...)
	if err != nil {
		return err
	}
	paginator := timeline.NewPaginator(client, timeline.OptionsFromConfig(cfg.Collection), log)

	opts := []collector.Option{
		collector.WithLanguage(cfg.Collection.Language),
		collector.WithCountTable(table),
		collector.WithCheckpoints(func(date string) (*checkpoint.Manager, error) {
			return checkpoint.NewManager(cfg.Output.CheckpointDir, date, log)
		}, cfg.Collection.Resume),
		collector.WithLogger(log),
	}
	if monitor != nil {
		opts = append(opts, collector.WithObserver(monitor))
	}
	c := collector.New(paginator, db, opts...)

	if !useTUI {
		ui.PrintInfo("Cohort", fmt.Sprintf("%d users", len(cohort)))
		ui.PrintInfo("Database", cfg.Database.DSN)
		ui.PrintInfo("Count table", table.Path())
	}

	var summary *models.RunSummary
	if monitor != nil {
		summary, err = runWithMonitor(ctx, c, cohort, monitor)
	} else {
		summary, err = c.Run(ctx, cohort)
	}

	ui.PrintRunSummary(summary)
	if err != nil {
		return fmt.Errorf("run finished but bookkeeping failed: %w", err)
	}
	ui.PrintSuccess("Collection complete")
	return nil
}

type runResult struct {
	summary *models.RunSummary
	err     error
}

// runWithMonitor runs the collection in the background while the monitor
// owns the terminal. Closing the monitor does not stop the run.
func runWithMonitor(ctx context.Context, c *collector.Collector, cohort []models.CohortMember, monitor *tui.Monitor) (*models.RunSummary, error) {
	done := make(chan runResult, 1)
	go func() {
		summary, err := c.Run(ctx, cohort)
		done <- runResult{summary, err}
	}()

	if err := monitor.Run(); err != nil {
		ui.PrintWarning("Monitor failed", err)
	}
	if monitor.Detached() {
		ui.PrintInfo("Monitor closed", "waiting for the run to finish")
	}

	res := <-done
	return res.summary, res.err
}
