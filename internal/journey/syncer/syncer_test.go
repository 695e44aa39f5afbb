package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/journey-platform/internal/journey"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) active() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeScheduler) fireAll() {
	for _, t := range s.active() {
		t.fired = true
		t.f()
	}
}

type fakeRemote struct {
	mu     sync.Mutex
	authed bool
	err    error
	saves  []journey.Snapshot
}

func (r *fakeRemote) Authenticated(context.Context) bool { return r.authed }

func (r *fakeRemote) Load(context.Context, journey.SequenceKey) (journey.Snapshot, bool) {
	return journey.Snapshot{}, false
}

func (r *fakeRemote) Save(_ context.Context, snap journey.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, snap)
	return nil
}

func (r *fakeRemote) saved() []journey.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journey.Snapshot(nil), r.saves...)
}

type latestHolder struct {
	mu   sync.Mutex
	snap journey.Snapshot
}

func (h *latestHolder) set(s journey.Snapshot) {
	h.mu.Lock()
	h.snap = s
	h.mu.Unlock()
}

func (h *latestHolder) get() journey.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

func newTestDebouncer(remote *fakeRemote) (*Debouncer, *fakeScheduler, *latestHolder) {
	sched := &fakeScheduler{}
	latest := &latestHolder{}
	d := NewDebouncer(context.Background(), DebouncerConfig{
		Remote:    remote,
		Latest:    latest.get,
		AfterFunc: sched.AfterFunc,
	})
	return d, sched, latest
}

func snapAt(i int, completed ...string) journey.Snapshot {
	return journey.Snapshot{CurrentIndex: i, CompletedItemIDs: completed, LastUpdated: int64(1000 + i)}
}

func TestDebouncer_BurstProducesOneWriteWithLastState(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, latest := newTestDebouncer(remote)

	var last journey.Snapshot
	for i := 1; i <= 5; i++ {
		last = snapAt(i, "a")
		latest.set(last)
		d.Notify(last)
	}
	if n := len(sched.active()); n != 1 {
		t.Fatalf("expected exactly one armed timer, got %d", n)
	}
	if sched.active()[0].d != DefaultDelay {
		t.Fatalf("expected delay %v, got %v", DefaultDelay, sched.active()[0].d)
	}

	sched.fireAll()
	saves := remote.saved()
	if len(saves) != 1 {
		t.Fatalf("expected 1 write, got %d", len(saves))
	}
	if saves[0].Fingerprint() != last.Fingerprint() {
		t.Fatalf("expected last fingerprint %s, got %s", last.Fingerprint(), saves[0].Fingerprint())
	}
}

func TestDebouncer_SupersededTimerNeverWrites(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, latest := newTestDebouncer(remote)

	latest.set(snapAt(1))
	d.Notify(snapAt(1))
	first := sched.active()[0]
	latest.set(snapAt(2))
	d.Notify(snapAt(2))

	// A timer whose callback was already running when it got replaced.
	first.f()
	if n := len(remote.saved()); n != 0 {
		t.Fatalf("superseded timer wrote %d times", n)
	}
	sched.fireAll()
	if n := len(remote.saved()); n != 1 {
		t.Fatalf("expected 1 write, got %d", n)
	}
}

func TestDebouncer_ReadsLatestAtFireTime(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, latest := newTestDebouncer(remote)

	d.Notify(snapAt(1))
	latest.set(snapAt(3, "x"))
	sched.fireAll()

	saves := remote.saved()
	if len(saves) != 1 || saves[0].CurrentIndex != 3 {
		t.Fatalf("expected the state current at fire time, got %+v", saves)
	}
}

func TestDebouncer_UnchangedFingerprintDoesNotArm(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, latest := newTestDebouncer(remote)

	s := snapAt(2, "a")
	latest.set(s)
	d.Notify(s)
	sched.fireAll()

	// Same progress, newer timestamp.
	s.LastUpdated += 50
	d.Notify(s)
	if n := len(sched.active()); n != 0 {
		t.Fatalf("expected no timer for an already saved fingerprint, got %d", n)
	}
}

func TestDebouncer_FailureRetriesOnNextChange(t *testing.T) {
	remote := &fakeRemote{authed: true, err: errors.New("offline")}
	d, sched, latest := newTestDebouncer(remote)

	s := snapAt(1)
	latest.set(s)
	d.Notify(s)
	sched.fireAll()

	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()

	// Same fingerprint re-arms because the failed write was never recorded.
	d.Notify(s)
	if n := len(sched.active()); n != 1 {
		t.Fatalf("expected a retry timer, got %d", n)
	}
	sched.fireAll()
	if n := len(remote.saved()); n != 1 {
		t.Fatalf("expected 1 successful write, got %d", n)
	}
}

func TestDebouncer_UnauthenticatedIsNoop(t *testing.T) {
	remote := &fakeRemote{authed: false}
	d, sched, _ := newTestDebouncer(remote)

	d.Notify(snapAt(1))
	if len(sched.timers) != 0 {
		t.Fatal("expected no timers without a user")
	}
	if err := d.Flush(context.Background(), snapAt(1)); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(remote.saved()) != 0 {
		t.Fatal("expected no writes without a user")
	}
}

func TestDebouncer_FlushCancelsArmedTimer(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, latest := newTestDebouncer(remote)

	latest.set(snapAt(1))
	d.Notify(snapAt(1))
	if err := d.Flush(context.Background(), snapAt(4, "a", "b")); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n := len(sched.active()); n != 0 {
		t.Fatalf("expected flush to cancel the timer, %d still armed", n)
	}
	saves := remote.saved()
	if len(saves) != 1 || saves[0].CurrentIndex != 4 {
		t.Fatalf("unexpected writes %+v", saves)
	}
}

func TestDebouncer_FlushReturnsRemoteError(t *testing.T) {
	remote := &fakeRemote{authed: true, err: errors.New("offline")}
	d, _, _ := newTestDebouncer(remote)
	if err := d.Flush(context.Background(), snapAt(1)); err == nil {
		t.Fatal("expected error")
	}
}

func TestDebouncer_StopCancels(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, _ := newTestDebouncer(remote)

	d.Notify(snapAt(1))
	armed := sched.active()[0]
	d.Stop()
	if !armed.stopped {
		t.Fatal("expected the armed timer to be stopped")
	}
	armed.f()
	d.Notify(snapAt(2))
	if len(sched.active()) != 0 || len(remote.saved()) != 0 {
		t.Fatal("stopped debouncer must not schedule or write")
	}
}

func TestDebouncer_MarkSaved(t *testing.T) {
	remote := &fakeRemote{authed: true}
	d, sched, _ := newTestDebouncer(remote)

	s := snapAt(2, "a")
	d.MarkSaved(s.Fingerprint())
	d.Notify(s)
	if d.Pending() || len(sched.active()) != 0 {
		t.Fatal("expected no write for a fingerprint marked saved")
	}
}

func TestShouldAdopt(t *testing.T) {
	cases := []struct {
		name      string
		local     int64
		remote    int64
		navigated bool
		want      bool
	}{
		{"remote newer", 100, 200, false, true},
		{"remote equal", 100, 100, false, false},
		{"remote older", 200, 100, false, false},
		{"navigated", 100, 200, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldAdopt(tc.local, journey.Snapshot{LastUpdated: tc.remote}, tc.navigated)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestReconciler_DecidesOnce(t *testing.T) {
	r := NewReconciler(100)
	remote := journey.Snapshot{LastUpdated: 200}
	if !r.Decide(remote, true) {
		t.Fatal("expected first newer load to be adopted")
	}
	if r.Decide(remote, true) {
		t.Fatal("expected second decision to be refused")
	}
}

func TestReconciler_NavigationDiscardsLateLoad(t *testing.T) {
	r := NewReconciler(100)
	r.MarkNavigated()
	if !r.Navigated() {
		t.Fatal("expected guard set")
	}
	if r.Decide(journey.Snapshot{LastUpdated: 999}, true) {
		t.Fatal("expected late load to be discarded after navigation")
	}
}

func TestReconciler_FailedLoad(t *testing.T) {
	r := NewReconciler(0)
	if r.Decide(journey.Snapshot{LastUpdated: 5}, false) {
		t.Fatal("a failed load is never adopted")
	}
}
