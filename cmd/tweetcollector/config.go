package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tweetcollector/pkg/auth"
	"tweetcollector/pkg/config"
	"tweetcollector/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tweetcollector configuration files.

Configuration is loaded from:
  - Command line flags (highest priority)
  - Environment variables (TWEETCOLLECTOR_*)
  - Configuration file (YAML or TOML)
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every available option.

The file is created as 'tweetcollector.yaml' in the current directory unless
another path is given with --config. A path ending in .toml is written as TOML.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# tweetcollector configuration
#
# Every option can also be set with an environment variable prefixed with
# TWEETCOLLECTOR_, for example TWEETCOLLECTOR_DB_DSN or TWEETCOLLECTOR_LANGUAGE.

# OAuth1 credentials. Prefer 'tweetcollector auth login' over storing them here.
twitter:
  consumer_key: ""
  consumer_secret: ""
  access_token: ""
  access_secret: ""
  # Name of a stored account to use instead of the values above
  account: ""

rate_limit:
  # Timeline requests allowed per window
  requests_per_window: 900
  window: 15m
  # Wait used when the API reports exhaustion without a reset time
  fallback_wait: 15m
  request_timeout: 30s

collection:
  # Entries requested per page, at most 200
  page_size: 200
  # Older pages are fetched when the first page has at least this many entries
  continue_threshold: 100
  # Only fetch older pages when the first page is full
  strict_full_pages: false
  # Keep only entries in this language; empty keeps every language
  language: "en"
  # Resume an interrupted run from today's checkpoint
  resume: false

database:
  driver: "sqlite3"
  dsn: "tweets.db"
  max_open_conns: 1

output:
  # Per-user per-day counts
  count_table: "tweet_count.csv"
  # Empty uses the user data directory
  checkpoint_dir: ""

logging:
  # debug, info, warn or error
  level: "info"
  file: ""
  no_color: false
  quiet: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "tweetcollector.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to overwrite)", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
	} else if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("write configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store credentials with 'tweetcollector auth login'")
	fmt.Println("2. Add users with 'tweetcollector cohort add'")
	fmt.Println("3. Run 'tweetcollector collect'")
	return nil
}

// maskedConfig returns a copy of cfg with the OAuth secrets masked
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	if cfg.HasCredentials() {
		masked := auth.SanitizeAccount(&auth.Account{
			ConsumerKey:    cfg.Twitter.ConsumerKey,
			ConsumerSecret: cfg.Twitter.ConsumerSecret,
			AccessToken:    cfg.Twitter.AccessToken,
			AccessSecret:   cfg.Twitter.AccessSecret,
		})
		display.Twitter.ConsumerKey = masked.ConsumerKey
		display.Twitter.ConsumerSecret = masked.ConsumerSecret
		display.Twitter.AccessToken = masked.AccessToken
		display.Twitter.AccessSecret = masked.AccessSecret
	} else {
		for _, s := range []*string{
			&display.Twitter.ConsumerKey, &display.Twitter.ConsumerSecret,
			&display.Twitter.AccessToken, &display.Twitter.AccessSecret,
		} {
			if *s != "" {
				*s = "***"
			}
		}
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("format configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	var warnings []string
	if cfg.Twitter.Account == "" && !cfg.HasCredentials() {
		manager, err := auth.NewManager()
		if err == nil {
			if _, err := manager.RetrieveDefault(); err != nil {
				warnings = append(warnings, "no Twitter credentials configured or stored")
			}
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if dir := filepath.Dir(cfg.Output.CountTable); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot create count table directory: %v", err))
		}
	}

	for _, w := range warnings {
		ui.PrintWarning(w)
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
