// model.go defines the persisted entities: the immutable detection event
// and the per-channel dispatch attempt records.
package datastore

import (
	"encoding/json"
	"time"
)

// Event is the durable record produced for every evaluated segment. Events
// are append-only: created exactly once and never mutated, except for the
// dispatch outcome set which is attached exactly once when fan-out
// completes.
type Event struct {
	ID        string    `gorm:"column:id;primaryKey"` // uuid assigned by the recorder
	Timestamp time.Time `gorm:"index"`
	Node      string    // reporting node name
	Source    string    `gorm:"index"` // input file name, or "live"
	SessionID string    `gorm:"index"` // monitoring session, empty for single-shot analysis

	// Classification evidence
	ModelVersion string
	Probability  float64
	Features     string `gorm:"type:text"` // JSON-encoded feature vector

	// Alert decision
	ThresholdValue float64
	IsScream       bool `gorm:"index"`
	Debounced      bool

	// Escalation policy
	EscalationRequired bool
	EmergencyNumber    string

	// Optional location
	Latitude       float64
	Longitude      float64
	Accuracy       float64
	Address        string
	LocationSource string

	// Dispatch outcomes, JSON-encoded list, empty for negative decisions
	Outcomes string `gorm:"type:text"`

	// Free-text notes and surfaced errors
	Notes string `gorm:"type:text"`

	// Explicit optional-field map for loosely structured extras such as
	// device info, kept out of the typed core on purpose
	Extras string `gorm:"type:text"`
}

// DispatchAttempt records one channel delivery for one event. The unique
// event/channel index doubles as the at-most-once ledger consulted by the
// dispatcher.
type DispatchAttempt struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	EventID   string    `gorm:"index:idx_event_channel,unique"`
	Channel   string    `gorm:"index:idx_event_channel,unique"`
	Attempted bool
	Succeeded bool
	Error     string
	LatencyMs int64
	Retries   int
	CreatedAt time.Time
}

// EncodeExtras serializes an optional-field map for storage. A nil or empty
// map encodes to the empty string.
func EncodeExtras(extras map[string]any) (string, error) {
	if len(extras) == 0 {
		return "", nil
	}
	data, err := json.Marshal(extras)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeExtras parses the stored optional-field map.
func DecodeExtras(encoded string) (map[string]any, error) {
	if encoded == "" {
		return nil, nil
	}
	var extras map[string]any
	if err := json.Unmarshal([]byte(encoded), &extras); err != nil {
		return nil, err
	}
	return extras, nil
}
