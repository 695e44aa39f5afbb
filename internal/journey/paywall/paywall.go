// Package paywall implements the purchase gate in front of locked items.
package paywall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey"
)

var (
	ErrPurchaseDeclined = errors.New("purchase declined")
	ErrUnlockInFlight   = errors.New("unlock already in progress")
)

// Status is the gate state.
type Status int

const (
	Locked Status = iota
	Unlocking
	Unlocked
)

func (s Status) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Purchase runs the payment flow. ok=false with a nil error is a decline.
type Purchase func(ctx context.Context) (ok bool, err error)

// MockPurchase succeeds after delay. It is the non-production purchase path.
func MockPurchase(delay time.Duration) Purchase {
	return func(ctx context.Context) (bool, error) {
		if delay <= 0 {
			return true, nil
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.C:
			return true, nil
		}
	}
}

// FlagStore holds the durable per-sequence unlock flag.
// localstore.Store satisfies it.
type FlagStore interface {
	IsUnlocked(k journey.SequenceKey) bool
	MarkUnlocked(k journey.SequenceKey)
}

// Gate is the Locked -> Unlocking -> Unlocked state machine for one
// sequence. Only a successful purchase persists anything.
type Gate struct {
	key   journey.SequenceKey
	flags FlagStore
	log   *zap.Logger

	mu     sync.Mutex
	status Status
}

func NewGate(key journey.SequenceKey, flags FlagStore, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{key: key, flags: flags, log: log}
}

// Mount reads the durable flag and reports whether the sequence was already
// unlocked on this device.
func (g *Gate) Mount() bool {
	if g.flags == nil || !g.flags.IsUnlocked(g.key) {
		return false
	}
	g.mu.Lock()
	g.status = Unlocked
	g.mu.Unlock()
	return true
}

func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Unlock runs purchase. On success the flag is persisted and the gate is
// Unlocked; on any failure it returns to Locked. Unlocking an already
// unlocked gate is a no-op.
func (g *Gate) Unlock(ctx context.Context, purchase Purchase) error {
	g.mu.Lock()
	switch g.status {
	case Unlocked:
		g.mu.Unlock()
		return nil
	case Unlocking:
		g.mu.Unlock()
		return ErrUnlockInFlight
	}
	g.status = Unlocking
	g.mu.Unlock()

	ok, err := runPurchase(ctx, purchase)
	if err == nil && !ok {
		err = ErrPurchaseDeclined
	}
	if err != nil {
		g.mu.Lock()
		g.status = Locked
		g.mu.Unlock()
		g.log.Info("unlock failed", zap.String("topic", g.key.Topic), zap.String("company", g.key.Company), zap.Error(err))
		return err
	}

	if g.flags != nil {
		g.flags.MarkUnlocked(g.key)
	}
	g.mu.Lock()
	g.status = Unlocked
	g.mu.Unlock()
	g.log.Info("sequence unlocked", zap.String("topic", g.key.Topic), zap.String("company", g.key.Company))
	return nil
}

// runPurchase converts a panicking payment callback into an error so the
// gate never stays in Unlocking.
func runPurchase(ctx context.Context, purchase Purchase) (ok bool, err error) {
	if purchase == nil {
		return false, ErrPurchaseDeclined
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("purchase panicked: %v", r)
		}
	}()
	ok, err = purchase(ctx)
	if err != nil {
		return false, fmt.Errorf("purchase: %w", err)
	}
	return ok, nil
}
