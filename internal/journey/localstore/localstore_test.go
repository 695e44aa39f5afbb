package localstore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/journey-platform/internal/journey"
)

var testKey = journey.SequenceKey{Topic: "graphs", Company: "acme"}

// brokenKV fails every call, like a browser with storage disabled.
type brokenKV struct{}

func (brokenKV) Get(string) (string, bool, error) { return "", false, errors.New("disabled") }
func (brokenKV) Set(string, string) error         { return errors.New("quota exceeded") }
func (brokenKV) Remove(string) error              { return errors.New("disabled") }

func TestStore_RoundTrip(t *testing.T) {
	s := New(NewMemoryKV(), "", nil)
	in := journey.Snapshot{Key: testKey, CurrentIndex: 3, CompletedItemIDs: []string{"a", "b"}, LastUpdated: 1700}
	s.Save(in)

	out, ok := s.Load(testKey)
	if !ok {
		t.Fatal("expected snapshot")
	}
	if out.CurrentIndex != 3 || out.LastUpdated != 1700 || len(out.CompletedItemIDs) != 2 {
		t.Fatalf("unexpected snapshot %+v", out)
	}
	if out.Key != testKey {
		t.Fatalf("expected key %+v, got %+v", testKey, out.Key)
	}
}

func TestStore_KeyShape(t *testing.T) {
	s := New(NewMemoryKV(), "journey", nil)
	if got := s.Key(testKey); got != "journey-graphs-acme" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := s.UnlockKey(testKey); got != "journey-unlocked-graphs-acme" {
		t.Fatalf("unexpected unlock key %q", got)
	}
}

func TestStore_WireFormat(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, "p", nil)
	s.Save(journey.Snapshot{Key: testKey, CurrentIndex: 1, LastUpdated: 5})

	raw, ok, _ := kv.Get("p-graphs-acme")
	if !ok {
		t.Fatal("expected raw entry")
	}
	want := `{"topic":"graphs","company":"acme","currentIndex":1,"completedItems":[],"lastUpdated":5}`
	if raw != want {
		t.Fatalf("unexpected wire format:\n got %s\nwant %s", raw, want)
	}
}

func TestStore_MissingIsNoState(t *testing.T) {
	s := New(NewMemoryKV(), "", nil)
	if _, ok := s.Load(testKey); ok {
		t.Fatal("expected no snapshot")
	}
}

func TestStore_MalformedIsNoState(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, "", nil)
	_ = kv.Set(s.Key(testKey), "{not json")
	if _, ok := s.Load(testKey); ok {
		t.Fatal("malformed entry should be ignored")
	}
}

func TestStore_ForeignOwnerIsNoState(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, "", nil)
	mine := journey.SequenceKey{Topic: "graphs", Company: "x-acme"}
	other := journey.SequenceKey{Topic: "graphs-x", Company: "acme"}
	if s.Key(mine) != s.Key(other) {
		t.Fatalf("expected colliding keys, got %q and %q", s.Key(mine), s.Key(other))
	}
	s.Save(journey.Snapshot{Key: other, CurrentIndex: 1, LastUpdated: 1})
	if _, ok := s.Load(mine); ok {
		t.Fatal("entry written for a different owner should be ignored")
	}
}

func TestStore_ErrorsAreSwallowed(t *testing.T) {
	s := New(brokenKV{}, "", nil)
	s.Save(journey.Snapshot{Key: testKey})
	s.Clear(testKey)
	s.MarkUnlocked(testKey)
	if _, ok := s.Load(testKey); ok {
		t.Fatal("broken store should report no state")
	}
	if s.IsUnlocked(testKey) {
		t.Fatal("broken store should report locked")
	}
}

func TestStore_UnlockFlag(t *testing.T) {
	s := New(NewMemoryKV(), "", nil)
	if s.IsUnlocked(testKey) {
		t.Fatal("expected locked")
	}
	s.MarkUnlocked(testKey)
	if !s.IsUnlocked(testKey) {
		t.Fatal("expected unlocked")
	}
	if _, ok := s.Load(testKey); ok {
		t.Fatal("unlock flag must not create a progress snapshot")
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(NewMemoryKV(), "", nil)
	s.Save(journey.Snapshot{Key: testKey, CurrentIndex: 2})
	s.Clear(testKey)
	if _, ok := s.Load(testKey); ok {
		t.Fatal("expected cleared snapshot")
	}
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	kv, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok, err := kv.Get("k"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set("k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set("k", "v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("expected v2, got %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	v, ok, _ = reopened.Get("k")
	if !ok || v != "v2" {
		t.Fatalf("value should survive reopen, got %q ok=%v", v, ok)
	}
	if err := reopened.Remove("k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := reopened.Get("k"); ok {
		t.Fatal("expected key removed")
	}
}

func TestSQLiteKV_ClosedReturnsError(t *testing.T) {
	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = kv.Close()
	if err := kv.Set("k", "v"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
