package remotestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS journey_progress (
    user_id            TEXT        NOT NULL,
    journey_id         TEXT        NOT NULL,
    current_step_index INTEGER     NOT NULL DEFAULT 0,
    completed_steps    TEXT[]      NOT NULL DEFAULT '{}',
    last_updated       TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, journey_id)
)`

// PostgresRows is the production RowStore.
type PostgresRows struct {
	db *pgxpool.Pool
}

func NewPostgresRows(db *pgxpool.Pool) *PostgresRows {
	return &PostgresRows{db: db}
}

// EnsureSchema creates the journey_progress table when missing.
func (r *PostgresRows) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure journey_progress: %w", err)
	}
	return nil
}

func (r *PostgresRows) Select(ctx context.Context, userID, journeyID string) (Row, error) {
	const q = `SELECT current_step_index, completed_steps, last_updated
	           FROM journey_progress WHERE user_id=$1 AND journey_id=$2`
	out := Row{UserID: userID, JourneyID: journeyID}
	var last time.Time
	err := r.db.QueryRow(ctx, q, userID, journeyID).Scan(&out.CurrentStepIndex, &out.CompletedSteps, &last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("select progress: %w", err)
	}
	if out.CompletedSteps == nil {
		out.CompletedSteps = []string{}
	}
	out.LastUpdated = FormatTime(last.UnixMilli())
	return out, nil
}

// Upsert writes row; the last write wins on (user_id, journey_id).
func (r *PostgresRows) Upsert(ctx context.Context, row Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	ms, _ := ParseTime(row.LastUpdated)
	completed := row.CompletedSteps
	if completed == nil {
		completed = []string{}
	}
	const q = `
INSERT INTO journey_progress (user_id, journey_id, current_step_index, completed_steps, last_updated, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, journey_id)
DO UPDATE SET
  current_step_index = EXCLUDED.current_step_index,
  completed_steps    = EXCLUDED.completed_steps,
  last_updated       = EXCLUDED.last_updated,
  updated_at         = EXCLUDED.updated_at`
	_, err := r.db.Exec(ctx, q,
		row.UserID, row.JourneyID, row.CurrentStepIndex, completed,
		time.UnixMilli(ms).UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}
