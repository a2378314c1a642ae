package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tweetcollector/pkg/ui"
)

var (
	cohortFile     string
	followersLimit int
	cohortDBFlag   string
)

var cohortCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Manage the set of users to collect",
	Long: `Manage the cohort: the fixed set of users whose timelines are collected.

Users are identified by their numeric Twitter user id. A user that already
has stored entries is part of the cohort even without being added here.`,
}

var cohortAddCmd = &cobra.Command{
	Use:   "add [user_id...]",
	Short: "Add users by id",
	Example: `  # Add two users
  tweetcollector cohort add 783214 6253282

  # Add every id in a file, one per line
  tweetcollector cohort add --file ids.txt`,
	RunE: runCohortAdd,
}

var cohortListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cohort members with their watermark and stored entries",
	Args:  cobra.NoArgs,
	RunE:  runCohortList,
}

var cohortFollowersCmd = &cobra.Command{
	Use:   "followers <user_id>",
	Short: "Add the followers of a user to the cohort",
	Long: `Fetch the follower ids of a seed user and add them to the cohort.

Requests share the same rate limiting as collection.`,
	Args: cobra.ExactArgs(1),
	RunE: runCohortFollowers,
}

func init() {
	rootCmd.AddCommand(cohortCmd)
	cohortCmd.AddCommand(cohortAddCmd)
	cohortCmd.AddCommand(cohortListCmd)
	cohortCmd.AddCommand(cohortFollowersCmd)

	cohortCmd.PersistentFlags().StringVar(&cohortDBFlag, "db", "", "database DSN (default tweets.db)")
	cohortAddCmd.Flags().StringVarP(&cohortFile, "file", "f", "", "read user ids from a file, one per line")
	cohortFollowersCmd.Flags().IntVar(&followersLimit, "limit", 0, "add at most this many followers (0 adds all)")
}

func cohortFlags() map[string]interface{} {
	flags := map[string]interface{}{}
	if cohortDBFlag != "" {
		flags["db"] = cohortDBFlag
	}
	return flags
}

// parseUserIDs parses positive decimal user ids
func parseUserIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readIDFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func runCohortAdd(cmd *cobra.Command, args []string) error {
	values := args
	if cohortFile != "" {
		lines, err := readIDFile(cohortFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", cohortFile, err)
		}
		values = append(values, lines...)
	}

	ids, err := parseUserIDs(values)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no user ids given")
	}

	ctx := context.Background()
	cfg, err := loadConfig(cohortFlags())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if _, err := initLogger(cfg); err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	added, err := db.AddUsers(ctx, ids)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Added %d users (%d already present)", added, len(ids)-added))
	return nil
}

func runCohortList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(cohortFlags())
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if _, err := initLogger(cfg); err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.PrintInfo("Cohort", "empty")
		return nil
	}

	fmt.Printf("%-20s %-20s %s\n", "USER", "WATERMARK", "ENTRIES")
	for _, u := range users {
		fmt.Printf("%-20d %-20d %d\n", u.UserID, u.Watermark, u.Tweets)
	}
	fmt.Println()
	ui.PrintInfo("Users", strconv.Itoa(len(users)))
	return nil
}

func runCohortFollowers(cmd *cobra.Command, args []string) error {
	ids, err := parseUserIDs(args)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("a user id is required")
	}
	seed := ids[0]

	ctx := context.Background()
	cfg, err := loadConfig(cohortFlags())
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

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	followers, err := client.FollowerIDs(ctx, seed, followersLimit)
	if err != nil {
		if len(followers) == 0 {
			return fmt.Errorf("fetch followers of %d: %w", seed, err)
		}
		ui.PrintWarning("Follower listing stopped early", err)
	}

	added, err := db.AddUsers(ctx, followers)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Fetched %d followers of %d, added %d new users", len(followers), seed, added))
	return nil
}
