package journey

import "math"

// Direction is the last move direction. It only drives presentation.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// State is the canonical in-memory navigation state. Items and Completed are
// shared between successive states and must not be mutated in place.
type State struct {
	Items            []Item
	CurrentIndex     int
	Completed        ItemSet
	PaywallIndex     int
	HasPaywall       bool
	HasPremiumAccess bool
	IsPaused         bool
	LastDirection    Direction
	LastUpdated      int64
}

// NewState returns the default state for items. paywallIndex may be nil.
func NewState(items []Item, paywallIndex *int, premium bool) State {
	s := State{
		Items:            items,
		Completed:        NewItemSet(),
		HasPremiumAccess: premium,
		LastDirection:    Forward,
	}
	if paywallIndex != nil {
		s.HasPaywall = true
		s.PaywallIndex = *paywallIndex
	}
	return s
}

// SafeIndex is CurrentIndex clamped to the item list.
func (s State) SafeIndex() int {
	return clamp(s.CurrentIndex, 0, len(s.Items)-1)
}

func (s State) IsFirstItem() bool {
	return s.SafeIndex() == 0
}

func (s State) IsLastItem() bool {
	return len(s.Items) > 0 && s.SafeIndex() == len(s.Items)-1
}

// CurrentItem returns the item under the cursor; ok is false for an empty
// sequence.
func (s State) CurrentItem() (Item, bool) {
	if len(s.Items) == 0 {
		return Item{}, false
	}
	return s.Items[s.SafeIndex()], true
}

func (s State) locked() bool {
	return s.HasPaywall && !s.HasPremiumAccess
}

// IsAtPaywall reports whether the cursor sits in locked territory.
func (s State) IsAtPaywall() bool {
	return s.locked() && s.SafeIndex() >= s.PaywallIndex
}

// CanAdvance is false on the last item, at the paywall, and one step before
// an unpurchased paywall.
func (s State) CanAdvance() bool {
	if len(s.Items) == 0 || s.IsLastItem() || s.IsAtPaywall() {
		return false
	}
	if s.locked() && s.SafeIndex()+1 >= s.PaywallIndex {
		return false
	}
	return true
}

func (s State) CanRetreat() bool {
	return len(s.Items) > 0 && !s.IsFirstItem()
}

// ProgressPercent is round(100 * completed / total), 0 for an empty list.
func (s State) ProgressPercent() int {
	if len(s.Items) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.Completed.Len()) / float64(len(s.Items))))
}

// Advance moves one step forward, completing the item being left. A user
// with premium access skips the paywall marker slot. ok is false when the
// move was not allowed and s is returned unchanged.
func (s State) Advance(now int64) (next State, ok bool) {
	if !s.CanAdvance() {
		return s, false
	}
	next = s
	cur := s.SafeIndex()
	if it := s.Items[cur]; !it.IsPaywallMarker() && !s.Completed.Has(it.ID) {
		next.Completed = s.Completed.With(it.ID)
	}
	idx := cur + 1
	if s.HasPremiumAccess && s.HasPaywall && idx == s.PaywallIndex {
		idx++
	}
	next.CurrentIndex = clamp(idx, 0, len(s.Items)-1)
	next.LastDirection = Forward
	next.LastUpdated = stamp(s.LastUpdated, now)
	return next, true
}

// Retreat moves one step back, skipping the paywall marker for premium users.
func (s State) Retreat(now int64) (next State, ok bool) {
	if !s.CanRetreat() {
		return s, false
	}
	next = s
	idx := s.SafeIndex() - 1
	if s.HasPremiumAccess && s.HasPaywall && idx == s.PaywallIndex {
		idx--
	}
	next.CurrentIndex = clamp(idx, 0, len(s.Items)-1)
	next.LastDirection = Backward
	next.LastUpdated = stamp(s.LastUpdated, now)
	return next, true
}

// GoTo jumps to index. Out of range targets and targets inside locked
// territory are rejected.
func (s State) GoTo(index int, now int64) (next State, ok bool) {
	if index < 0 || index >= len(s.Items) {
		return s, false
	}
	if s.locked() && index >= s.PaywallIndex {
		return s, false
	}
	next = s
	if index > s.SafeIndex() {
		next.LastDirection = Forward
	} else {
		next.LastDirection = Backward
	}
	next.CurrentIndex = index
	next.LastUpdated = stamp(s.LastUpdated, now)
	return next, true
}

// MarkComplete adds id to the completed set. Unknown ids, paywall markers and
// ids already present leave the state unchanged.
func (s State) MarkComplete(id string, now int64) (next State, ok bool) {
	if s.Completed.Has(id) {
		return s, false
	}
	found := false
	for _, it := range s.Items {
		if it.ID == id {
			found = !it.IsPaywallMarker()
			break
		}
	}
	if !found {
		return s, false
	}
	next = s
	next.Completed = s.Completed.With(id)
	next.LastUpdated = stamp(s.LastUpdated, now)
	return next, true
}

// SetPaused toggles the pause flag. It touches nothing that is persisted, so
// LastUpdated is left alone.
func (s State) SetPaused(paused bool) (next State, ok bool) {
	if s.IsPaused == paused {
		return s, false
	}
	next = s
	next.IsPaused = paused
	return next, true
}

// GrantAccess records the purchase and steps forward one position so the
// user lands on the first unlocked item. When that position is the paywall
// marker it is skipped as well, like Advance does for premium users.
func (s State) GrantAccess(now int64) State {
	next := s.WithPremiumAccess()
	if len(s.Items) == 0 {
		return next
	}
	cur := s.SafeIndex()
	if it := s.Items[cur]; !it.IsPaywallMarker() && !s.Completed.Has(it.ID) {
		next.Completed = s.Completed.With(it.ID)
	}
	next.CurrentIndex = clamp(cur+1, 0, len(s.Items)-1)
	if next.Items[next.CurrentIndex].IsPaywallMarker() {
		next = next.SkipPaywallMarker()
	}
	next.LastDirection = Forward
	next.LastUpdated = stamp(s.LastUpdated, now)
	return next
}

// WithPremiumAccess flips the access flag without moving the cursor.
func (s State) WithPremiumAccess() State {
	s.HasPremiumAccess = true
	return s
}

// SkipPaywallMarker moves a cursor resting on the paywall slot one step
// forward once access is held. Used at mount for returning buyers.
func (s State) SkipPaywallMarker() State {
	if !s.HasPaywall || !s.HasPremiumAccess || s.SafeIndex() != s.PaywallIndex {
		return s
	}
	s.CurrentIndex = clamp(s.SafeIndex()+1, 0, len(s.Items)-1)
	return s
}

// IsComplete reports whether every non-marker item has been completed.
func (s State) IsComplete() bool {
	n := 0
	for _, it := range s.Items {
		if it.IsPaywallMarker() {
			continue
		}
		if !s.Completed.Has(it.ID) {
			return false
		}
		n++
	}
	return n > 0
}

// Restore replaces the persisted fields with those of snap. The index is
// clamped to the current list.
func (s State) Restore(snap Snapshot) State {
	s.CurrentIndex = clamp(snap.CurrentIndex, 0, len(s.Items)-1)
	s.Completed = NewItemSet(snap.CompletedItemIDs...)
	s.LastUpdated = snap.LastUpdated
	return s
}

// Snapshot extracts the persisted view of s.
func (s State) Snapshot(key SequenceKey) Snapshot {
	return Snapshot{
		Key:              key,
		CurrentIndex:     s.SafeIndex(),
		CompletedItemIDs: s.Completed.Sorted(),
		LastUpdated:      s.LastUpdated,
	}
}

// Fingerprint is the structural digest of the persisted fields.
func (s State) Fingerprint() string {
	return Fingerprint(s.SafeIndex(), s.Completed)
}

// stamp keeps LastUpdated strictly increasing within a session even when the
// wall clock stalls or steps back.
func stamp(prev, now int64) int64 {
	if now <= prev {
		return prev + 1
	}
	return now
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
