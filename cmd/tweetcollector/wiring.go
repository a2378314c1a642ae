package main

import (
	"context"
	"fmt"
	"time"

	"tweetcollector/pkg/auth"
	"tweetcollector/pkg/config"
	"tweetcollector/pkg/database"
	"tweetcollector/pkg/logger"
	tw "tweetcollector/pkg/twitter"
)

// resolveCredentials picks OAuth credentials in this order: a named stored
// account, credentials from config or environment, the default stored
// account
func resolveCredentials(cfg *config.Config, log logger.Logger) (tw.Credentials, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return tw.Credentials{}, fmt.Errorf("initialize credential manager: %w", err)
	}

	var account *auth.Account
	switch {
	case cfg.Twitter.Account != "":
		account, err = manager.Retrieve(cfg.Twitter.Account)
		if err != nil {
			return tw.Credentials{}, fmt.Errorf("account %q: %w", cfg.Twitter.Account, err)
		}
	case cfg.HasCredentials():
		log.Debug("Using credentials from configuration")
		return tw.Credentials{
			ConsumerKey:    cfg.Twitter.ConsumerKey,
			ConsumerSecret: cfg.Twitter.ConsumerSecret,
			AccessToken:    cfg.Twitter.AccessToken,
			AccessSecret:   cfg.Twitter.AccessSecret,
		}, nil
	default:
		account, err = manager.RetrieveDefault()
		if err != nil {
			return tw.Credentials{}, fmt.Errorf("no Twitter credentials found, run 'tweetcollector auth login': %w", err)
		}
	}

	log.WithField("account", account.Name).Info("Using stored credentials")
	return tw.Credentials{
		ConsumerKey:    account.ConsumerKey,
		ConsumerSecret: account.ConsumerSecret,
		AccessToken:    account.AccessToken,
		AccessSecret:   account.AccessSecret,
	}, nil
}

// newClient builds a signed, rate-limited API client
func newClient(cfg *config.Config, log logger.Logger, opts ...tw.Option) (*tw.Client, error) {
	creds, err := resolveCredentials(cfg, log)
	if err != nil {
		return nil, err
	}
	httpClient := tw.NewOAuthHTTPClient(creds, cfg.RateLimit.RequestTimeout)
	opts = append([]tw.Option{tw.WithLogger(log)}, opts...)
	return tw.NewClient(httpClient, cfg.RateLimit, opts...), nil
}

// openStore opens the database and makes sure the schema exists
func openStore(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
