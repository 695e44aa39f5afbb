// Package journey holds the sequence model and the navigation state machine
// that walks a user through an ordered list of items.
//
// Everything in this package is pure: a State is a value, every transition
// returns a new State, and derived queries are recomputed on each call.
// Persistence and scheduling live in the subpackages.
package journey

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates item types. The engine only cares about KindPaywall.
type Kind string

const (
	KindContent Kind = "content"
	KindQuiz    Kind = "quiz"
	KindMedia   Kind = "media"
	KindPaywall Kind = "paywall"
)

// Item is one unit of content in the sequence.
type Item struct {
	ID        string `json:"id"`
	Order     int    `json:"order"`
	IsPremium bool   `json:"is_premium"`
	Kind      Kind   `json:"kind"`
}

// IsPaywallMarker reports whether the item is the purchase prompt slot.
// Markers are never recorded as completed.
func (it Item) IsPaywallMarker() bool {
	return it.Kind == KindPaywall
}

var (
	ErrEmptyItemID            = errors.New("item id is required")
	ErrDuplicateItemID        = errors.New("duplicate item id")
	ErrPaywallOutOfRange      = errors.New("paywall index out of range")
	ErrAdjacentPaywallMarkers = errors.New("adjacent paywall markers")
)

// ValidateItems checks a sequence and its paywall configuration at session
// setup. paywallIndex may be nil when nothing is gated.
func ValidateItems(items []Item, paywallIndex *int) error {
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			return fmt.Errorf("item %d: %w", i, ErrEmptyItemID)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("item %d (%s): %w", i, id, ErrDuplicateItemID)
		}
		seen[id] = struct{}{}
		if i > 0 && it.IsPaywallMarker() && items[i-1].IsPaywallMarker() {
			return fmt.Errorf("items %d and %d: %w", i-1, i, ErrAdjacentPaywallMarkers)
		}
	}
	if paywallIndex != nil {
		if *paywallIndex < 0 || *paywallIndex >= len(items) {
			return fmt.Errorf("paywall index %d for %d items: %w", *paywallIndex, len(items), ErrPaywallOutOfRange)
		}
	}
	return nil
}
