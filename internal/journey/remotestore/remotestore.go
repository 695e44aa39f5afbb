// Package remotestore reads and writes progress rows in an authenticated,
// per-user remote store keyed by (user_id, journey_id).
package remotestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey"
)

var (
	// ErrNotFound means no row exists for (user_id, journey_id).
	ErrNotFound = errors.New("progress not found")
	// ErrUnauthenticated means there is no current user.
	ErrUnauthenticated = errors.New("no authenticated user")
)

// timeLayout is ISO-8601 with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Row is one remote progress record.
type Row struct {
	UserID           string   `json:"user_id"`
	JourneyID        string   `json:"journey_id"`
	CurrentStepIndex int      `json:"current_step_index"`
	CompletedSteps   []string `json:"completed_steps"`
	LastUpdated      string   `json:"last_updated"`
}

// Validate checks the fields every backend relies on.
func (r Row) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.JourneyID) == "" {
		return errors.New("journey_id is required")
	}
	if r.CurrentStepIndex < 0 {
		return errors.New("current_step_index must be >= 0")
	}
	if _, err := ParseTime(r.LastUpdated); err != nil {
		return fmt.Errorf("last_updated: %w", err)
	}
	return nil
}

// RowStore is the backend contract: select at most one row, upsert on
// conflict of (user_id, journey_id).
type RowStore interface {
	// Select returns ErrNotFound when no row exists.
	Select(ctx context.Context, userID, journeyID string) (Row, error)
	Upsert(ctx context.Context, row Row) error
}

// UserFunc returns the current user id, or ok=false when nobody is signed in.
type UserFunc func(ctx context.Context) (userID string, ok bool)

// FormatTime renders epoch milliseconds as ISO-8601 UTC.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timeLayout)
}

// ParseTime parses an ISO-8601 timestamp into epoch milliseconds.
func ParseTime(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// Store adapts a RowStore to snapshots for the current user.
type Store struct {
	rows   RowStore
	user   UserFunc
	prefix string
	log    *zap.Logger
}

func New(rows RowStore, user UserFunc, prefix string, log *zap.Logger) *Store {
	if strings.TrimSpace(prefix) == "" {
		prefix = "journey"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{rows: rows, user: user, prefix: prefix, log: log}
}

// JourneyID returns the journey_id column value for a sequence.
func (s *Store) JourneyID(k journey.SequenceKey) string {
	return k.ID(s.prefix)
}

// Authenticated reports whether a current user is present.
func (s *Store) Authenticated(ctx context.Context) bool {
	_, ok := s.currentUser(ctx)
	return ok
}

func (s *Store) currentUser(ctx context.Context) (string, bool) {
	if s == nil || s.user == nil {
		return "", false
	}
	uid, ok := s.user(ctx)
	if !ok || strings.TrimSpace(uid) == "" {
		return "", false
	}
	return uid, true
}

// Load fetches the remote snapshot. Every failure, including a missing user
// or row, reports ok=false; the caller keeps its local state.
func (s *Store) Load(ctx context.Context, k journey.SequenceKey) (journey.Snapshot, bool) {
	uid, ok := s.currentUser(ctx)
	if !ok {
		return journey.Snapshot{}, false
	}
	journeyID := s.JourneyID(k)
	row, err := s.rows.Select(ctx, uid, journeyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Debug("no remote progress", zap.String("journey_id", journeyID))
		} else {
			s.log.Warn("remote progress load failed", zap.String("journey_id", journeyID), zap.Error(err))
		}
		return journey.Snapshot{}, false
	}
	ts, err := ParseTime(row.LastUpdated)
	if err != nil {
		s.log.Warn("remote progress has bad timestamp", zap.String("journey_id", journeyID), zap.Error(err))
		return journey.Snapshot{}, false
	}
	return journey.Snapshot{
		Key:              k,
		CurrentIndex:     row.CurrentStepIndex,
		CompletedItemIDs: row.CompletedSteps,
		LastUpdated:      ts,
	}, true
}

// Save upserts snap for the current user. It returns ErrUnauthenticated when
// nobody is signed in so callers do not record the write as done.
func (s *Store) Save(ctx context.Context, snap journey.Snapshot) error {
	uid, ok := s.currentUser(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	completed := snap.CompletedItemIDs
	if completed == nil {
		completed = []string{}
	}
	row := Row{
		UserID:           uid,
		JourneyID:        s.JourneyID(snap.Key),
		CurrentStepIndex: snap.CurrentIndex,
		CompletedSteps:   completed,
		LastUpdated:      FormatTime(snap.LastUpdated),
	}
	if err := s.rows.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert %s: %w", row.JourneyID, err)
	}
	return nil
}
