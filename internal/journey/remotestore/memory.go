package remotestore

import (
	"context"
	"sync"
)

// MemoryRows is a development-only RowStore.
// WARNING: not suitable for production, rows are lost on restart.
type MemoryRows struct {
	mu   sync.RWMutex
	rows map[string]Row
}

func NewMemoryRows() *MemoryRows {
	return &MemoryRows{rows: make(map[string]Row)}
}

func memoryKey(userID, journeyID string) string {
	return userID + "\x00" + journeyID
}

func (m *MemoryRows) Select(_ context.Context, userID, journeyID string) (Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[memoryKey(userID, journeyID)]
	if !ok {
		return Row{}, ErrNotFound
	}
	r.CompletedSteps = append([]string(nil), r.CompletedSteps...)
	return r, nil
}

func (m *MemoryRows) Upsert(_ context.Context, row Row) error {
	if err := row.Validate(); err != nil {
		return err
	}
	row.CompletedSteps = append([]string{}, row.CompletedSteps...)
	m.mu.Lock()
	m.rows[memoryKey(row.UserID, row.JourneyID)] = row
	m.mu.Unlock()
	return nil
}
