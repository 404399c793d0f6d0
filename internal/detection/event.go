// event.go assembles the immutable detection event record from the
// classification evidence, the decision and the dispatch outcomes.
package detection

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/soundsentry/screamdet-go/internal/alert"
	"github.com/soundsentry/screamdet-go/internal/datastore"
	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/geoloc"
	"github.com/soundsentry/screamdet-go/internal/screamdet"
)

// Meta carries the provenance of one evaluation: where the audio came from
// and which monitoring session it belongs to.
type Meta struct {
	Node      string    // reporting node name
	Source    string    // input file name, or "live"
	SessionID string    // monitoring session, empty for single-shot analysis
	Timestamp time.Time // segment capture time, zero means now
}

// featureRecord is the persisted form of a feature vector. The layout is
// stored alongside the values so old rows stay interpretable after a model
// upgrade changes the shape.
type featureRecord struct {
	NumMFCC int       `json:"num_mfcc"`
	Values  []float64 `json:"values"`
}

// NewEvent builds the event row for one evaluated segment. The id is
// assigned here and never changes; outcomes are attached later by the
// dispatcher path when the decision warranted fan-out.
func NewEvent(meta *Meta, evidence *screamdet.ScreamEvidence, decision Decision, loc *geoloc.Location) (*datastore.Event, error) {
	timestamp := meta.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	features, err := json.Marshal(featureRecord{
		NumMFCC: evidence.Features.Layout.NumMFCC,
		Values:  evidence.Features.Values,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("detection").
			Category(errors.CategoryGeneric).
			Context("operation", "encode_features").
			Build()
	}

	event := &datastore.Event{
		ID:        uuid.New().String(),
		Timestamp: timestamp,
		Node:      meta.Node,
		Source:    meta.Source,
		SessionID: meta.SessionID,

		ModelVersion: evidence.ModelVersion,
		Probability:  evidence.Probability,
		Features:     string(features),

		ThresholdValue: decision.Threshold,
		IsScream:       decision.IsScream,
		Debounced:      decision.Debounced,
	}

	if loc != nil {
		event.Latitude = loc.Latitude
		event.Longitude = loc.Longitude
		event.Accuracy = loc.Accuracy
		event.Address = loc.Address
		event.LocationSource = loc.Source
	}

	return event, nil
}

// EncodeOutcomes serializes the dispatch outcome set for storage. An empty
// set encodes to the empty string, matching events that never dispatched.
func EncodeOutcomes(outcomes []alert.Outcome) (string, error) {
	if len(outcomes) == 0 {
		return "", nil
	}
	data, err := json.Marshal(outcomes)
	if err != nil {
		return "", errors.New(err).
			Component("detection").
			Category(errors.CategoryGeneric).
			Context("operation", "encode_outcomes").
			Build()
	}
	return string(data), nil
}

// AttemptRecords converts dispatch outcomes into the per-channel attempt
// rows stored with the event.
func AttemptRecords(outcomes []alert.Outcome) []datastore.DispatchAttempt {
	attempts := make([]datastore.DispatchAttempt, 0, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		attempts = append(attempts, datastore.DispatchAttempt{
			Channel:   o.Channel,
			Attempted: o.Attempted,
			Succeeded: o.Succeeded,
			Error:     o.Error,
			LatencyMs: o.Latency.Milliseconds(),
			Retries:   o.Retries,
			CreatedAt: time.Now(),
		})
	}
	return attempts
}
