package journey

import (
	"encoding/json"
	"strings"
)

// SequenceKey is the pair of identifiers that namespace a sequence,
// for example a topic and a company.
type SequenceKey struct {
	Topic   string `json:"topic"`
	Company string `json:"company"`
}

// ID returns "<prefix>-<topic>-<company>", the key shape shared by the local
// store and the remote journey_id column.
func (k SequenceKey) ID(prefix string) string {
	return strings.Join([]string{prefix, k.Topic, k.Company}, "-")
}

// Snapshot is the persisted unit of progress.
type Snapshot struct {
	Key              SequenceKey
	CurrentIndex     int
	CompletedItemIDs []string
	// LastUpdated is milliseconds since the Unix epoch.
	LastUpdated int64
}

// Fingerprint is a structural digest of the fields that matter for remote
// writes. LastUpdated is deliberately excluded.
func (s Snapshot) Fingerprint() string {
	return Fingerprint(s.CurrentIndex, NewItemSet(s.CompletedItemIDs...))
}

// Fingerprint encodes (index, completed) so equal progress always yields the
// same string regardless of set iteration order.
func Fingerprint(index int, completed ItemSet) string {
	b, _ := json.Marshal(struct {
		I int      `json:"i"`
		C []string `json:"c"`
	}{I: index, C: completed.Sorted()})
	return string(b)
}
