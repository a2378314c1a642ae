package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tweetcollector/pkg/config"
	"tweetcollector/pkg/logger"
	"tweetcollector/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// plainOutput names commands whose stdout is meant for other programs
var plainOutput = map[string]bool{
	"version": true,
	"help":    true,
	"counts":  true,
	"show":    true,
}

var rootCmd = &cobra.Command{
	Use:   "tweetcollector",
	Short: "Collect the timelines of a fixed cohort of Twitter users",
	Long: `tweetcollector walks the timeline of every user in a cohort, stores each
new entry in a relational database and records how many entries every user
produced per day.

A run is incremental: only entries newer than the highest id already stored
for a user are requested. Users whose accounts are protected or gone are
skipped; users that fail on a connection error are retried once at the end
of the run.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !quiet && !plainOutput[cmd.Name()] {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./tweetcollector.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress console logs and the logo")

	rootCmd.SetVersionTemplate(`tweetcollector {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the global flags with extra command flags and loads the
// configuration from every source
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{}
	for k, v := range extra {
		flags[k] = v
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet {
		flags["quiet"] = true
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	return cfg, nil
}

// initLogger installs the global logger for cfg and returns it
func initLogger(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return logger.GetLogger(), nil
}
