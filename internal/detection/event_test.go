package detection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundsentry/screamdet-go/internal/alert"
	"github.com/soundsentry/screamdet-go/internal/geoloc"
	"github.com/soundsentry/screamdet-go/internal/screamdet"
)

func testEvidence() *screamdet.ScreamEvidence {
	layout := screamdet.FeatureLayout{NumMFCC: 27}
	return &screamdet.ScreamEvidence{
		Probability:  0.91,
		ModelVersion: "rf-2025.06",
		Features: &screamdet.FeatureVector{
			Values: make([]float64, layout.Dim()),
			Layout: layout,
		},
	}
}

func TestNewEventAssignsIdentityAndTimestamp(t *testing.T) {
	meta := &Meta{Node: "porch", Source: "live", SessionID: "s1"}
	decision := Decision{IsScream: true, Threshold: 0.80}

	event, err := NewEvent(meta, testEvidence(), decision, nil)
	require.NoError(t, err)

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err, "event id must be a valid uuid")
	assert.WithinDuration(t, time.Now(), event.Timestamp, 5*time.Second)

	assert.Equal(t, "porch", event.Node)
	assert.Equal(t, "live", event.Source)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, "rf-2025.06", event.ModelVersion)
	assert.InDelta(t, 0.91, event.Probability, 1e-9)
	assert.InDelta(t, 0.80, event.ThresholdValue, 1e-9)
	assert.True(t, event.IsScream)
	assert.False(t, event.Debounced)
	assert.Empty(t, event.Outcomes)
}

func TestNewEventPreservesExplicitTimestamp(t *testing.T) {
	captured := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	meta := &Meta{Source: "clip.wav", Timestamp: captured}

	event, err := NewEvent(meta, testEvidence(), Decision{Threshold: 0.80}, nil)
	require.NoError(t, err)
	assert.True(t, event.Timestamp.Equal(captured))
}

func TestNewEventEncodesFeaturesWithLayout(t *testing.T) {
	event, err := NewEvent(&Meta{Source: "clip.wav"}, testEvidence(), Decision{Threshold: 0.80}, nil)
	require.NoError(t, err)

	var record struct {
		NumMFCC int       `json:"num_mfcc"`
		Values  []float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(event.Features), &record))
	assert.Equal(t, 27, record.NumMFCC)
	assert.Len(t, record.Values, 2*27+12+2)
}

func TestNewEventAttachesLocation(t *testing.T) {
	loc := &geoloc.Location{
		Latitude:  60.1699,
		Longitude: 24.9384,
		Accuracy:  50,
		Address:   "Helsinki, FI",
		Source:    "fixed",
	}

	event, err := NewEvent(&Meta{Source: "live"}, testEvidence(), Decision{IsScream: true, Threshold: 0.80}, loc)
	require.NoError(t, err)
	assert.InDelta(t, 60.1699, event.Latitude, 1e-9)
	assert.InDelta(t, 24.9384, event.Longitude, 1e-9)
	assert.Equal(t, "Helsinki, FI", event.Address)
	assert.Equal(t, "fixed", event.LocationSource)
}

func TestEncodeOutcomesEmpty(t *testing.T) {
	encoded, err := EncodeOutcomes(nil)
	require.NoError(t, err)
	assert.Empty(t, encoded)
}

func TestEncodeOutcomesRoundtrip(t *testing.T) {
	outcomes := []alert.Outcome{
		{Channel: "sms", Attempted: true, Succeeded: true, Retries: 2, Latency: 1200 * time.Millisecond},
		{Channel: "email", Attempted: true, Succeeded: false, Error: "connection refused"},
	}

	encoded, err := EncodeOutcomes(outcomes)
	require.NoError(t, err)

	var decoded []alert.Outcome
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, outcomes[0].Channel, decoded[0].Channel)
	assert.Equal(t, outcomes[0].Retries, decoded[0].Retries)
	assert.Equal(t, outcomes[1].Error, decoded[1].Error)
}

func TestAttemptRecords(t *testing.T) {
	outcomes := []alert.Outcome{
		{Channel: "sms", Attempted: true, Succeeded: true, Retries: 1, Latency: 800 * time.Millisecond},
		{Channel: "email", Attempted: false, Succeeded: true},
	}

	attempts := AttemptRecords(outcomes)
	require.Len(t, attempts, 2)
	assert.Equal(t, "sms", attempts[0].Channel)
	assert.True(t, attempts[0].Succeeded)
	assert.Equal(t, int64(800), attempts[0].LatencyMs)
	assert.Equal(t, 1, attempts[0].Retries)
	assert.False(t, attempts[1].Attempted)
}
