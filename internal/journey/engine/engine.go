// Package engine is the consumer-facing navigation-and-progress engine.
//
// It owns one State per mounted sequence, writes every change through to
// the local store, debounces remote writes, reconciles a single remote load
// against the local snapshot and drives the paywall gate.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey"
	"github.com/example/journey-platform/internal/journey/paywall"
	"github.com/example/journey-platform/internal/journey/syncer"
)

// LocalStore is the synchronous, always-available store.
// localstore.Store satisfies it.
type LocalStore interface {
	Load(k journey.SequenceKey) (journey.Snapshot, bool)
	Save(snap journey.Snapshot)
	IsUnlocked(k journey.SequenceKey) bool
	MarkUnlocked(k journey.SequenceKey)
}

type Config struct {
	Key          journey.SequenceKey
	Items        []journey.Item
	PaywallIndex *int
	// HasPremiumAccess is the session-scoped access flag.
	HasPremiumAccess bool

	// InitialIndex and InitialCompleted override the local snapshot. A
	// non-nil InitialIndex also skips the remote load.
	InitialIndex     *int
	InitialCompleted []string

	Local  LocalStore
	Remote syncer.Remote // nil disables remote sync
	// Purchase runs when UnlockPaywall is called. nil declines every purchase.
	Purchase paywall.Purchase

	Logger   *zap.Logger
	OnChange func(journey.State)

	Now       func() time.Time
	AfterFunc syncer.AfterFunc
	SaveDelay time.Duration
}

type Engine struct {
	key      journey.SequenceKey
	local    LocalStore
	remote   syncer.Remote
	purchase paywall.Purchase
	gate     *paywall.Gate
	debounce *syncer.Debouncer
	recon    *syncer.Reconciler
	log      *zap.Logger
	onChange func(journey.State)
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	loaded chan struct{}

	// latest is what deferred work reads; state is guarded by mu.
	latest atomic.Pointer[journey.State]

	mu     sync.Mutex
	state  journey.State
	closed bool
}

// New mounts a sequence. The engine lives until ctx is done or Close is
// called.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := journey.ValidateItems(cfg.Items, cfg.PaywallIndex); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("topic", cfg.Key.Topic), zap.String("company", cfg.Key.Company))
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	local := cfg.Local
	if local == nil {
		local = nopLocal{}
	}

	ectx, cancel := context.WithCancel(ctx)
	e := &Engine{
		key:      cfg.Key,
		local:    local,
		remote:   cfg.Remote,
		purchase: cfg.Purchase,
		log:      log,
		onChange: cfg.OnChange,
		now:      now,
		ctx:      ectx,
		cancel:   cancel,
		loaded:   make(chan struct{}),
	}

	st := journey.NewState(cfg.Items, cfg.PaywallIndex, cfg.HasPremiumAccess)
	if snap, ok := initialSnapshot(cfg, local, now); ok {
		st = st.Restore(snap)
	}

	e.gate = paywall.NewGate(cfg.Key, local, log)
	if e.gate.Mount() || st.HasPremiumAccess {
		st = st.WithPremiumAccess().SkipPaywallMarker()
	}

	e.recon = syncer.NewReconciler(st.LastUpdated)
	e.debounce = syncer.NewDebouncer(ectx, syncer.DebouncerConfig{
		Remote:    cfg.Remote,
		Latest:    e.latestSnapshot,
		Delay:     cfg.SaveDelay,
		AfterFunc: cfg.AfterFunc,
		Logger:    log,
	})

	e.state = st
	e.latest.Store(&st)
	local.Save(st.Snapshot(cfg.Key))

	if cfg.Remote != nil && cfg.InitialIndex == nil {
		go e.loadRemote()
	} else {
		close(e.loaded)
	}
	log.Debug("journey mounted",
		zap.Int("items", len(cfg.Items)),
		zap.Int("current_index", st.SafeIndex()),
		zap.Bool("premium", st.HasPremiumAccess))
	return e, nil
}

// initialSnapshot applies the precedence explicit > local > default.
func initialSnapshot(cfg Config, local LocalStore, now func() time.Time) (journey.Snapshot, bool) {
	snap, ok := local.Load(cfg.Key)
	if cfg.InitialIndex == nil && cfg.InitialCompleted == nil {
		return snap, ok
	}
	if cfg.InitialIndex != nil {
		snap.CurrentIndex = *cfg.InitialIndex
	}
	if cfg.InitialCompleted != nil {
		snap.CompletedItemIDs = cfg.InitialCompleted
	}
	snap.Key = cfg.Key
	snap.LastUpdated = now().UnixMilli()
	return snap, true
}

func (e *Engine) loadRemote() {
	defer close(e.loaded)
	snap, ok := e.remote.Load(e.ctx, e.key)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if !e.recon.Decide(snap, ok) {
		navigated := e.recon.Navigated()
		e.mu.Unlock()
		if ok {
			e.log.Debug("remote progress discarded",
				zap.Int64("remote_last_updated", snap.LastUpdated),
				zap.Bool("navigated", navigated))
		}
		return
	}
	next := e.state.Restore(snap)
	e.commitLocked(next, false)
	e.debounce.MarkSaved(snap.Fingerprint())
	e.mu.Unlock()

	e.log.Info("remote progress adopted",
		zap.Int("current_index", next.SafeIndex()),
		zap.Int("completed", next.Completed.Len()))
	e.changed(next)
}

// RemoteLoaded is closed once the remote load has been decided, or at once
// when no load was started.
func (e *Engine) RemoteLoaded() <-chan struct{} {
	return e.loaded
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

func (e *Engine) latestSnapshot() journey.Snapshot {
	return e.latest.Load().Snapshot(e.key)
}

// commitLocked installs next as the current state and writes it through.
// mu must be held.
func (e *Engine) commitLocked(next journey.State, notify bool) {
	wasComplete := e.state.IsComplete()
	e.state = next
	e.latest.Store(&next)
	snap := next.Snapshot(e.key)
	e.local.Save(snap)
	if notify {
		e.debounce.Notify(snap)
	}
	if !wasComplete && next.IsComplete() {
		e.log.Info("journey completed", zap.Int("items", len(next.Items)))
	}
}

func (e *Engine) changed(st journey.State) {
	if e.onChange != nil {
		e.onChange(st)
	}
}

// apply runs a transition under the lock. navigation sets the has-navigated
// guard before the transition, even when it turns out to be a no-op.
func (e *Engine) apply(navigation bool, fn func(journey.State, int64) (journey.State, bool)) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if navigation {
		e.recon.MarkNavigated()
	}
	next, ok := fn(e.state, e.nowMillis())
	if ok {
		e.commitLocked(next, true)
	}
	e.mu.Unlock()
	if ok {
		e.changed(next)
	}
	return ok
}

// Next advances one item. It reports whether the cursor moved.
func (e *Engine) Next() bool {
	return e.apply(true, journey.State.Advance)
}

func (e *Engine) Prev() bool {
	return e.apply(true, journey.State.Retreat)
}

func (e *Engine) GoTo(index int) bool {
	return e.apply(true, func(s journey.State, now int64) (journey.State, bool) {
		return s.GoTo(index, now)
	})
}

func (e *Engine) MarkComplete(id string) bool {
	return e.apply(false, func(s journey.State, now int64) (journey.State, bool) {
		return s.MarkComplete(id, now)
	})
}

func (e *Engine) Pause() bool {
	return e.apply(false, func(s journey.State, _ int64) (journey.State, bool) {
		return s.SetPaused(true)
	})
}

func (e *Engine) Resume() bool {
	return e.apply(false, func(s journey.State, _ int64) (journey.State, bool) {
		return s.SetPaused(false)
	})
}

// UnlockPaywall runs the purchase and, on success, grants access and steps
// past the paywall. Without a paywall, or with access already held, it does
// nothing.
func (e *Engine) UnlockPaywall(ctx context.Context) error {
	st := e.State()
	if !st.HasPaywall || st.HasPremiumAccess {
		return nil
	}
	if err := e.gate.Unlock(ctx, e.purchase); err != nil {
		return err
	}
	e.apply(true, func(s journey.State, now int64) (journey.State, bool) {
		if s.HasPremiumAccess {
			return s, false
		}
		return s.GrantAccess(now), true
	})
	return nil
}

// SaveProgressNow writes the current state locally and remotely without
// waiting for the debounce window. extraID, when non-empty, is marked
// complete first and, like navigation, wins over a remote snapshot that is
// still loading. Only the remote write can fail.
func (e *Engine) SaveProgressNow(ctx context.Context, extraID string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	changed := false
	if extraID != "" {
		if next, ok := e.state.MarkComplete(extraID, e.nowMillis()); ok {
			e.recon.MarkNavigated()
			e.commitLocked(next, false)
			changed = true
		}
	}
	st := e.state
	snap := st.Snapshot(e.key)
	if !changed {
		e.local.Save(snap)
	}
	e.mu.Unlock()

	if changed {
		e.changed(st)
	}
	return e.debounce.Flush(ctx, snap)
}

// State returns a copy of the current state.
func (e *Engine) State() journey.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) CurrentItem() (journey.Item, bool) {
	return e.State().CurrentItem()
}

// Progress is the completion percentage.
func (e *Engine) Progress() int {
	return e.State().ProgressPercent()
}

func (e *Engine) CanGoNext() bool   { return e.State().CanAdvance() }
func (e *Engine) CanGoPrev() bool   { return e.State().CanRetreat() }
func (e *Engine) IsFirstItem() bool { return e.State().IsFirstItem() }
func (e *Engine) IsLastItem() bool  { return e.State().IsLastItem() }
func (e *Engine) IsAtPaywall() bool { return e.State().IsAtPaywall() }

// Gate reports the purchase status of the sequence, not the cursor: Locked
// means locked territory exists and has not been bought, whether or not the
// cursor has reached it (use IsAtPaywall for that). A sequence without a
// paywall, or with session-scoped premium access, is Unlocked.
func (e *Engine) Gate() paywall.Status {
	st := e.State()
	if !st.HasPaywall || st.HasPremiumAccess {
		return paywall.Unlocked
	}
	return e.gate.Status()
}

// SyncPending reports whether a debounced remote write is armed.
func (e *Engine) SyncPending() bool {
	return e.debounce.Pending()
}

// Close unmounts the engine: the armed remote write is cancelled and late
// remote results are ignored. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.debounce.Stop()
	e.cancel()
}

type nopLocal struct{}

func (nopLocal) Load(journey.SequenceKey) (journey.Snapshot, bool) { return journey.Snapshot{}, false }
func (nopLocal) Save(journey.Snapshot)                              {}
func (nopLocal) IsUnlocked(journey.SequenceKey) bool                { return false }
func (nopLocal) MarkUnlocked(journey.SequenceKey)                   {}
