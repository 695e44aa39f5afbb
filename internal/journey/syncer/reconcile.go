// Package syncer keeps the remote store in step with the in-memory state:
// the one-shot load on mount and the debounced write after every change.
package syncer

import (
	"context"
	"sync"

	"github.com/example/journey-platform/internal/journey"
)

// Remote is the authenticated store the syncer talks to.
// remotestore.Store satisfies it.
type Remote interface {
	Authenticated(ctx context.Context) bool
	Load(ctx context.Context, k journey.SequenceKey) (journey.Snapshot, bool)
	Save(ctx context.Context, snap journey.Snapshot) error
}

// ShouldAdopt reports whether a remote snapshot replaces the local one: it
// must be strictly newer and the user must not have navigated yet.
func ShouldAdopt(localLastUpdated int64, remote journey.Snapshot, hasNavigated bool) bool {
	return !hasNavigated && remote.LastUpdated > localLastUpdated
}

// Reconciler decides the fate of the single remote load of a session.
type Reconciler struct {
	mu        sync.Mutex
	baseline  int64
	navigated bool
	decided   bool
}

// NewReconciler captures the local lastUpdated at load time.
func NewReconciler(localLastUpdated int64) *Reconciler {
	return &Reconciler{baseline: localLastUpdated}
}

// MarkNavigated sets the has-navigated guard. It must be called before the
// navigation operation returns.
func (r *Reconciler) MarkNavigated() {
	r.mu.Lock()
	r.navigated = true
	r.mu.Unlock()
}

func (r *Reconciler) Navigated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.navigated
}

// Decide consumes the remote load result. Only the first call can return
// true; ok=false means the load produced nothing.
func (r *Reconciler) Decide(remote journey.Snapshot, ok bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decided {
		return false
	}
	r.decided = true
	return ok && ShouldAdopt(r.baseline, remote, r.navigated)
}
