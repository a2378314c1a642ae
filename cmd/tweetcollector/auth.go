package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tweetcollector/pkg/auth"
	"tweetcollector/pkg/ui"
)

var stdin = bufio.NewReader(os.Stdin)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Twitter API credentials",
	Long: `Manage stored Twitter API credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

Credentials in TWEETCOLLECTOR_* environment variables are used as well but
cannot be changed from here.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an account's OAuth keys and tokens",
	Long: `Store the four OAuth values of a Twitter developer app under a name.

You will be prompted for the API key and secret and the access token and
secret. Secrets are not echoed.`,
	Example: `  # Store the default account
  tweetcollector auth login

  # Store a second account
  tweetcollector auth login research`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked secrets",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain where to find the keys and tokens",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteKeyGuide(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}

	auth.WriteKeyGuide(os.Stdout)
	fmt.Println()

	name := auth.DefaultAccountName
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	} else {
		fmt.Printf("Account name [%s]: ", auth.DefaultAccountName)
		input, err := readLine()
		if err != nil {
			return err
		}
		if input != "" {
			name = input
		}
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Account '%s' already exists. Replace it? (y/N): ", name)
		input, _ := readLine()
		if !strings.HasPrefix(strings.ToLower(input), "y") {
			return nil
		}
	}

	account := &auth.Account{Name: name}
	prompts := []struct {
		label string
		dest  *string
	}{
		{"API key (consumer key)", &account.ConsumerKey},
		{"API key secret (consumer secret)", &account.ConsumerSecret},
		{"Access token", &account.AccessToken},
		{"Access token secret", &account.AccessSecret},
	}
	for _, p := range prompts {
		fmt.Printf("%s: ", p.label)
		value, err := readSecret()
		if err != nil {
			return fmt.Errorf("read %s: %w", strings.ToLower(p.label), err)
		}
		*p.dest = value
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))
	if name != auth.DefaultAccountName {
		fmt.Printf("\nUse it with:\n  tweetcollector collect --account %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return fmt.Errorf("remove account %q: %w", args[0], err)
	}
	ui.PrintSuccess(fmt.Sprintf("Account removed: %s", args[0]))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("Accounts", "none stored, run 'tweetcollector auth login'")
		return nil
	}

	fmt.Printf("%-16s %-14s %-14s %-20s\n", "NAME", "CONSUMER KEY", "ACCESS TOKEN", "MODIFIED")
	for _, a := range accounts {
		s := auth.SanitizeAccount(a)
		fmt.Printf("%-16s %-14s %-14s %-20s\n", s.Name, s.ConsumerKey, s.AccessToken, formatTime(s.LastModified))
	}
	return nil
}

func readLine() (string, error) {
	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads a value without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	return readLine()
}
