package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	errs "tweetcollector/pkg/errors"
	"tweetcollector/pkg/models"
)

// RunRecord is a stored collection run
type RunRecord struct {
	RunID     string
	Date      string
	StartedAt time.Time
	Elapsed   time.Duration
	Succeeded int
	Failed    int
}

// RecordRun stores a run summary and its per-user outcomes. Recording a run
// id again replaces the earlier record and all of its outcomes, so a resumed
// run can be written over the run it continues.
func (db *DB) RecordRun(ctx context.Context, summary *models.RunSummary) error {
	return db.WithTransaction(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO collection_runs (run_id, run_date, started_at, elapsed_ms, succeeded, failed)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id) DO UPDATE SET
				run_date   = excluded.run_date,
				started_at = excluded.started_at,
				elapsed_ms = excluded.elapsed_ms,
				succeeded  = excluded.succeeded,
				failed     = excluded.failed
		`,
			summary.RunID,
			summary.Date,
			summary.StartedAt.Unix(),
			summary.Elapsed.Milliseconds(),
			summary.Succeeded,
			summary.Failed,
		)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", summary.RunID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM collection_outcomes WHERE run_id = ?`, summary.RunID); err != nil {
			return fmt.Errorf("clear outcomes of run %s: %w", summary.RunID, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO collection_outcomes (run_id, user_id, state, count, failure_kind, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range summary.Outcomes {
			if _, err := stmt.ExecContext(ctx,
				summary.RunID,
				o.UserID,
				o.State.String(),
				o.Count,
				o.Kind.String(),
				o.Err,
			); err != nil {
				return fmt.Errorf("insert outcome for user %d: %w", o.UserID, err)
			}
		}
		return nil
	})
}

// GetRun retrieves a run by id
func (db *DB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var (
		r         RunRecord
		started   int64
		elapsedMS int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT run_id, run_date, started_at, elapsed_ms, succeeded, failed
		FROM collection_runs
		WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.Date, &started, &elapsedMS, &r.Succeeded, &r.Failed)
	if IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(started, 0).UTC()
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &r, nil
}

// RunOutcomes returns the outcomes stored for a run, ordered by user id
func (db *DB) RunOutcomes(ctx context.Context, runID string) ([]models.Outcome, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, state, count, failure_kind, COALESCE(error, '')
		FROM collection_outcomes
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Outcome
	for rows.Next() {
		var (
			o           models.Outcome
			state, kind string
		)
		if err := rows.Scan(&o.UserID, &state, &o.Count, &kind, &o.Err); err != nil {
			return nil, err
		}
		o.State = models.ParseState(state)
		o.Kind = errs.ParseFailureKind(kind)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ListRuns returns the most recent runs first, at most limit of them. A
// limit of zero or less returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT run_id, run_date, started_at, elapsed_ms, succeeded, failed
		FROM collection_runs
		ORDER BY started_at DESC, run_id
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r         RunRecord
			started   int64
			elapsedMS int64
		)
		if err := rows.Scan(&r.RunID, &r.Date, &started, &elapsedMS, &r.Succeeded, &r.Failed); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
