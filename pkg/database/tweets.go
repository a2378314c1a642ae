package database

import (
	"context"
	"fmt"
	"time"

	"tweetcollector/pkg/models"
)

// UserStat is a cohort member with the number of stored entries
type UserStat struct {
	UserID    int64
	Watermark int64
	Tweets    int
}

// cohortQuery lists every known user: those added to the users table and
// those that only appear in tweets. The watermark is the larger of the
// recorded watermark and the highest stored tweet id.
const cohortQuery = `
	WITH ids AS (
		SELECT user_id FROM users
		UNION
		SELECT user_id FROM tweets
	)
	SELECT
		ids.user_id,
		MAX(
			COALESCE((SELECT watermark FROM users WHERE users.user_id = ids.user_id), 0),
			COALESCE((SELECT MAX(tweet_id) FROM tweets WHERE tweets.user_id = ids.user_id), 0)
		),
		(SELECT COUNT(*) FROM tweets WHERE tweets.user_id = ids.user_id)
	FROM ids
	ORDER BY ids.user_id
`

// Cohort reads the users to collect, once, at the start of a run
func (db *DB) Cohort(ctx context.Context) ([]models.CohortMember, error) {
	stats, err := db.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	cohort := make([]models.CohortMember, len(stats))
	for i, s := range stats {
		cohort[i] = models.CohortMember{UserID: s.UserID, Watermark: s.Watermark}
	}
	return cohort, nil
}

// ListUsers returns every known user with its watermark and stored count
func (db *DB) ListUsers(ctx context.Context) ([]UserStat, error) {
	rows, err := db.QueryContext(ctx, cohortQuery)
	if err != nil {
		return nil, fmt.Errorf("query cohort: %w", err)
	}
	defer rows.Close()

	var stats []UserStat
	for rows.Next() {
		var s UserStat
		if err := rows.Scan(&s.UserID, &s.Watermark, &s.Tweets); err != nil {
			return nil, fmt.Errorf("scan cohort row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// AddUsers registers user ids for collection. Ids that are already present
// are ignored. It returns how many were new.
func (db *DB) AddUsers(ctx context.Context, userIDs []int64) (int, error) {
	added := 0
	err := db.WithTransaction(ctx, func(tx *Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO users (user_id, watermark, added_at) VALUES (?, NULL, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().Unix()
		for _, id := range userIDs {
			res, err := stmt.ExecContext(ctx, id, now)
			if err != nil {
				return fmt.Errorf("add user %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// SaveTimeline writes a user's entries and advances the user's watermark in
// one transaction. Either every row is stored or none is. newestID is the
// newest id fetched for the user, which may be above every stored row when
// entries were filtered out. The watermark never moves backwards.
func (db *DB) SaveTimeline(ctx context.Context, userID int64, tweets []models.Tweet, newestID int64) error {
	watermark := newestID
	for _, t := range tweets {
		if t.ID > watermark {
			watermark = t.ID
		}
	}
	if len(tweets) == 0 && watermark == 0 {
		return nil
	}

	return db.WithTransaction(ctx, func(tx *Tx) error {
		if len(tweets) > 0 {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO tweets (tweet_id, created_at, text, user_id, is_retweet)
				VALUES (?, ?, ?, ?, ?)
			`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, t := range tweets {
				var created int64
				if !t.CreatedAt.IsZero() {
					created = t.CreatedAt.Unix()
				}
				if _, err := stmt.ExecContext(ctx, t.ID, created, t.Text, userID, t.IsRetweet); err != nil {
					if IsDuplicate(err) {
						return fmt.Errorf("insert tweet %d for user %d: %w: %v", t.ID, userID, ErrDuplicate, err)
					}
					return fmt.Errorf("insert tweet %d for user %d: %w", t.ID, userID, err)
				}
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, watermark, added_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE
			SET watermark = MAX(COALESCE(users.watermark, 0), excluded.watermark)
		`, userID, watermark, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("advance watermark for user %d: %w", userID, err)
		}
		return nil
	})
}

// TweetIDs returns the stored ids for a user, newest first
func (db *DB) TweetIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT tweet_id FROM tweets WHERE user_id = ? ORDER BY tweet_id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountTweets returns the number of stored entries across all users
func (db *DB) CountTweets(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&n)
	return n, err
}

// GetTweet retrieves one stored entry
func (db *DB) GetTweet(ctx context.Context, id int64) (*models.Tweet, error) {
	var (
		t       models.Tweet
		created int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT tweet_id, created_at, text, user_id, is_retweet
		FROM tweets
		WHERE tweet_id = ?
	`, id).Scan(&t.ID, &created, &t.Text, &t.UserID, &t.IsRetweet)
	if IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if created != 0 {
		t.CreatedAt = time.Unix(created, 0).UTC()
	}
	return &t, nil
}
