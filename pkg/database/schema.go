package database

import (
	"context"
	"fmt"
)

// Table names
const (
	TableTweets   = "tweets"
	TableUsers    = "users"
	TableRuns     = "collection_runs"
	TableOutcomes = "collection_outcomes"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tweets (
		tweet_id   INTEGER PRIMARY KEY,
		created_at INTEGER,
		text       TEXT,
		user_id    INTEGER NOT NULL,
		is_retweet INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tweets_user_id ON tweets (user_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id   INTEGER PRIMARY KEY,
		watermark INTEGER NULL,
		added_at  INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS collection_runs (
		run_id     TEXT PRIMARY KEY,
		run_date   TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		succeeded  INTEGER NOT NULL,
		failed     INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS collection_outcomes (
		run_id       TEXT NOT NULL REFERENCES collection_runs (run_id) ON DELETE CASCADE,
		user_id      INTEGER NOT NULL,
		state        TEXT NOT NULL,
		count        INTEGER NOT NULL,
		failure_kind TEXT NOT NULL,
		error        TEXT,
		PRIMARY KEY (run_id, user_id)
	)`,
}

// EnsureSchema creates any missing tables. Existing tables are left as they
// are.
func (db *DB) EnsureSchema(ctx context.Context) error {
	return db.WithTransaction(ctx, func(tx *Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
