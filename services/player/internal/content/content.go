// Package content loads journey definitions for the player.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/example/journey-platform/internal/journey"
)

// Journey is the on-disk definition of one sequence.
type Journey struct {
	Topic        string         `json:"topic"`
	Company      string         `json:"company"`
	Title        string         `json:"title,omitempty"`
	PaywallIndex *int           `json:"paywall_index,omitempty"`
	Items        []journey.Item `json:"items"`
	// Titles maps item ids to display titles.
	Titles map[string]string `json:"titles,omitempty"`
}

func (j Journey) Key() journey.SequenceKey {
	return journey.SequenceKey{Topic: j.Topic, Company: j.Company}
}

// ItemTitle returns the display title of an item, falling back to its id.
func (j Journey) ItemTitle(id string) string {
	if t, ok := j.Titles[id]; ok && t != "" {
		return t
	}
	return id
}

// Validate checks the owner identifiers and the item list.
func (j Journey) Validate() error {
	if strings.TrimSpace(j.Topic) == "" || strings.TrimSpace(j.Company) == "" {
		return errors.New("topic and company are required")
	}
	return journey.ValidateItems(j.Items, j.PaywallIndex)
}

// Parse decodes and validates a definition. Item order fields are rewritten
// to match array order, which is authoritative.
func Parse(b []byte) (Journey, error) {
	var j Journey
	if err := json.Unmarshal(b, &j); err != nil {
		return Journey{}, fmt.Errorf("decode journey: %w", err)
	}
	for i := range j.Items {
		j.Items[i].Order = i
		if j.Items[i].Kind == "" {
			j.Items[i].Kind = journey.KindContent
		}
	}
	if err := j.Validate(); err != nil {
		return Journey{}, fmt.Errorf("invalid journey: %w", err)
	}
	return j, nil
}

func Load(path string) (Journey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Journey{}, fmt.Errorf("read journey: %w", err)
	}
	return Parse(b)
}

// Sample is the built-in demo journey.
func Sample() Journey {
	paywall := 3
	items := []journey.Item{
		{ID: "intro", Kind: journey.KindContent},
		{ID: "basics-video", Kind: journey.KindMedia},
		{ID: "basics-quiz", Kind: journey.KindQuiz},
		{ID: "paywall", Kind: journey.KindPaywall},
		{ID: "advanced", Kind: journey.KindContent, IsPremium: true},
		{ID: "advanced-quiz", Kind: journey.KindQuiz, IsPremium: true},
		{ID: "wrap-up", Kind: journey.KindContent, IsPremium: true},
	}
	for i := range items {
		items[i].Order = i
	}
	return Journey{
		Topic:        "system-design",
		Company:      "demo",
		Title:        "System design interview prep",
		PaywallIndex: &paywall,
		Items:        items,
		Titles: map[string]string{
			"intro":         "Welcome",
			"basics-video":  "Scaling basics",
			"basics-quiz":   "Check your understanding",
			"paywall":       "Unlock the full journey",
			"advanced":      "Sharding and replication",
			"advanced-quiz": "Advanced quiz",
			"wrap-up":       "Wrap-up",
		},
	}
}
