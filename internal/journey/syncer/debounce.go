package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey"
)

// DefaultDelay is the quiet period before a remote write.
const DefaultDelay = time.Second

const defaultSaveTimeout = 10 * time.Second

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests swap in a manual scheduler.
type AfterFunc func(d time.Duration, f func()) Timer

// RealAfterFunc is AfterFunc backed by time.AfterFunc.
func RealAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type DebouncerConfig struct {
	Remote Remote
	// Latest returns the current snapshot. It is read when the timer fires,
	// never captured when the timer is armed.
	Latest      func() journey.Snapshot
	Delay       time.Duration
	AfterFunc   AfterFunc
	SaveTimeout time.Duration
	Logger      *zap.Logger
}

// Debouncer coalesces bursts of changes into one remote write per quiet
// period. A superseded timer never writes, even if it already fired and is
// waiting on the lock.
type Debouncer struct {
	ctx         context.Context
	remote      Remote
	latest      func() journey.Snapshot
	delay       time.Duration
	after       AfterFunc
	saveTimeout time.Duration
	log         *zap.Logger

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	saved   string
	stopped bool
}

// NewDebouncer returns a debouncer whose writes run under ctx.
func NewDebouncer(ctx context.Context, cfg DebouncerConfig) *Debouncer {
	d := &Debouncer{
		ctx:         ctx,
		remote:      cfg.Remote,
		latest:      cfg.Latest,
		delay:       cfg.Delay,
		after:       cfg.AfterFunc,
		saveTimeout: cfg.SaveTimeout,
		log:         cfg.Logger,
	}
	if d.delay <= 0 {
		d.delay = DefaultDelay
	}
	if d.after == nil {
		d.after = RealAfterFunc
	}
	if d.saveTimeout <= 0 {
		d.saveTimeout = defaultSaveTimeout
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// Notify reports a state change. Any armed timer is cancelled; a new one is
// armed only when snap differs from the last successful write.
func (d *Debouncer) Notify(snap journey.Snapshot) {
	if d.remote == nil || !d.remote.Authenticated(d.ctx) {
		return
	}
	fp := snap.Fingerprint()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.cancelLocked()
	if fp == d.saved {
		return
	}
	gen := d.gen
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

// MarkSaved records fp as already present remotely, e.g. after adopting a
// remote snapshot.
func (d *Debouncer) MarkSaved(fp string) {
	d.mu.Lock()
	d.saved = fp
	d.mu.Unlock()
}

// Pending reports whether a write is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	if !d.remote.Authenticated(d.ctx) {
		return
	}
	snap := d.latest()
	if err := d.save(d.ctx, snap); err != nil {
		d.log.Warn("debounced progress save failed", zap.Error(err))
	}
}

// Flush cancels any armed timer and writes snap now. Without an
// authenticated user it does nothing.
func (d *Debouncer) Flush(ctx context.Context, snap journey.Snapshot) error {
	d.mu.Lock()
	d.cancelLocked()
	d.mu.Unlock()

	if d.remote == nil || !d.remote.Authenticated(ctx) {
		return nil
	}
	return d.save(ctx, snap)
}

// Stop cancels the armed timer and disables further scheduling.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()
}

func (d *Debouncer) save(ctx context.Context, snap journey.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, d.saveTimeout)
	defer cancel()
	if err := d.remote.Save(ctx, snap); err != nil {
		return err
	}
	d.mu.Lock()
	d.saved = snap.Fingerprint()
	d.mu.Unlock()
	d.log.Debug("progress saved remotely",
		zap.Int("current_index", snap.CurrentIndex),
		zap.Int("completed", len(snap.CompletedItemIDs)))
	return nil
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
