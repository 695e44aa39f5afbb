// Package localstore persists progress snapshots to a synchronous,
// always-available key-value store.
//
// Backends: in-memory (tests, ephemeral sessions), SQLite file (default for
// terminal consumers), Redis (shared device storage).
// Every failure is logged and swallowed: a broken local store degrades to
// "no prior state", never to a user-visible error.
package localstore

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey"
)

// DefaultPrefix namespaces keys when the caller does not supply one.
const DefaultPrefix = "journey"

// KV is a synchronous string-keyed store.
type KV interface {
	// Get returns ok=false when the key does not exist.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// record is the JSON shape written under each progress key.
type record struct {
	Topic          string   `json:"topic"`
	Company        string   `json:"company"`
	CurrentIndex   int      `json:"currentIndex"`
	CompletedItems []string `json:"completedItems"`
	LastUpdated    int64    `json:"lastUpdated"`
}

// Store adapts a KV to snapshot reads and writes.
type Store struct {
	kv     KV
	prefix string
	log    *zap.Logger
}

func New(kv KV, prefix string, log *zap.Logger) *Store {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, prefix: prefix, log: log}
}

// Key returns the progress key for a sequence.
func (s *Store) Key(k journey.SequenceKey) string {
	return k.ID(s.prefix)
}

// UnlockKey returns the key of the durable unlock flag for a sequence.
func (s *Store) UnlockKey(k journey.SequenceKey) string {
	return strings.Join([]string{s.prefix, "unlocked", k.Topic, k.Company}, "-")
}

// Load returns the stored snapshot. Missing, unreadable or malformed entries
// all report ok=false.
func (s *Store) Load(k journey.SequenceKey) (journey.Snapshot, bool) {
	key := s.Key(k)
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.log.Warn("local progress read failed", zap.String("key", key), zap.Error(err))
		return journey.Snapshot{}, false
	}
	if !ok {
		return journey.Snapshot{}, false
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Warn("local progress is malformed", zap.String("key", key), zap.Error(err))
		return journey.Snapshot{}, false
	}
	if rec.CurrentIndex < 0 {
		s.log.Warn("local progress has negative index", zap.String("key", key), zap.Int("index", rec.CurrentIndex))
		return journey.Snapshot{}, false
	}
	// Dashes in identifiers can make two sequences share a key.
	if rec.Topic != k.Topic || rec.Company != k.Company {
		s.log.Debug("local progress belongs to another sequence", zap.String("key", key))
		return journey.Snapshot{}, false
	}
	return journey.Snapshot{
		Key:              journey.SequenceKey{Topic: rec.Topic, Company: rec.Company},
		CurrentIndex:     rec.CurrentIndex,
		CompletedItemIDs: rec.CompletedItems,
		LastUpdated:      rec.LastUpdated,
	}, true
}

// Save writes snap under its sequence key.
func (s *Store) Save(snap journey.Snapshot) {
	completed := snap.CompletedItemIDs
	if completed == nil {
		completed = []string{}
	}
	b, err := json.Marshal(record{
		Topic:          snap.Key.Topic,
		Company:        snap.Key.Company,
		CurrentIndex:   snap.CurrentIndex,
		CompletedItems: completed,
		LastUpdated:    snap.LastUpdated,
	})
	if err != nil {
		s.log.Warn("local progress encode failed", zap.Error(err))
		return
	}
	key := s.Key(snap.Key)
	if err := s.kv.Set(key, string(b)); err != nil {
		s.log.Warn("local progress write failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes the stored snapshot for a sequence.
func (s *Store) Clear(k journey.SequenceKey) {
	key := s.Key(k)
	if err := s.kv.Remove(key); err != nil {
		s.log.Warn("local progress remove failed", zap.String("key", key), zap.Error(err))
	}
}

// IsUnlocked reports the durable unlock flag. Read errors count as locked.
func (s *Store) IsUnlocked(k journey.SequenceKey) bool {
	v, ok, err := s.kv.Get(s.UnlockKey(k))
	if err != nil {
		s.log.Warn("unlock flag read failed", zap.Error(err))
		return false
	}
	return ok && v == "true"
}

// MarkUnlocked sets the durable unlock flag.
func (s *Store) MarkUnlocked(k journey.SequenceKey) {
	if err := s.kv.Set(s.UnlockKey(k), "true"); err != nil {
		s.log.Warn("unlock flag write failed", zap.Error(err))
	}
}
