// Package detection orchestrates the per-segment pipeline: classification,
// the alert decision, dispatch fan-out, escalation and the durable event
// record.
package detection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soundsentry/screamdet-go/internal/alert"
	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/datastore"
	"github.com/soundsentry/screamdet-go/internal/geoloc"
	"github.com/soundsentry/screamdet-go/internal/logging"
	"github.com/soundsentry/screamdet-go/internal/myaudio"
	"github.com/soundsentry/screamdet-go/internal/observability"
	"github.com/soundsentry/screamdet-go/internal/screamdet"
)

// Result is everything one segment evaluation produced. The event is the
// durable record; evidence and outcomes are also exposed directly for
// callers that report without going through the store.
type Result struct {
	Event    *datastore.Event
	Evidence *screamdet.ScreamEvidence
	Decision Decision
	Outcomes []alert.Outcome
}

// Pipeline wires the detector, the decision engine, the dispatcher and the
// store into the per-segment evaluation flow. All collaborators except the
// detector and the engine are optional.
type Pipeline struct {
	Settings   *conf.Settings
	Detector   *screamdet.Detector
	Engine     *Engine
	Dispatcher *alert.Dispatcher
	Store      datastore.Interface             // nil disables persistence
	Resolver   geoloc.Resolver                 // nil disables location
	Metrics    *observability.DetectionMetrics // nil disables metrics

	logger *slog.Logger

	// one in-flight evaluation per session
	sessMu   sync.Mutex
	sessions map[string]*sync.Mutex

	// in-memory escalation fallback when no store is configured
	escMu      sync.Mutex
	escHistory map[string][]time.Time
}

// NewPipeline assembles a pipeline from its collaborators.
func NewPipeline(settings *conf.Settings, detector *screamdet.Detector, engine *Engine, dispatcher *alert.Dispatcher, store datastore.Interface, resolver geoloc.Resolver, metrics *observability.DetectionMetrics) *Pipeline {
	logger := logging.ForService("detection")
	if logger == nil {
		logger = slog.Default().With("service", "detection")
	}
	return &Pipeline{
		Settings:   settings,
		Detector:   detector,
		Engine:     engine,
		Dispatcher: dispatcher,
		Store:      store,
		Resolver:   resolver,
		Metrics:    metrics,
		logger:     logger,
		sessions:   make(map[string]*sync.Mutex),
		escHistory: make(map[string][]time.Time),
	}
}

// sessionLock returns the mutex serializing evaluations for one session.
// Different sessions evaluate concurrently.
func (p *Pipeline) sessionLock(sessionID string) *sync.Mutex {
	p.sessMu.Lock()
	defer p.sessMu.Unlock()
	mu, ok := p.sessions[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		p.sessions[sessionID] = mu
	}
	return mu
}

// Evaluate runs the full pipeline for one segment. Classification errors
// abort the evaluation; dispatch and persistence failures are recorded on
// the event and never propagate.
func (p *Pipeline) Evaluate(ctx context.Context, segment *myaudio.Segment, meta *Meta) (*Result, error) {
	mu := p.sessionLock(meta.SessionID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	evidence, err := p.Detector.EvaluateSegment(segment)
	if err != nil {
		return nil, err
	}
	total := time.Since(start)

	decision := p.Engine.Evaluate(meta.SessionID, evidence.Probability)

	if p.Metrics != nil {
		p.Metrics.RecordClassify(evidence.Elapsed.Seconds())
		p.Metrics.RecordExtract((total - evidence.Elapsed).Seconds())
		p.Metrics.RecordSegment(segmentResult(decision))
	}

	p.logger.Debug("segment evaluated",
		"source", meta.Source,
		"session_id", meta.SessionID,
		"probability", evidence.Probability,
		"is_scream", decision.IsScream,
		"debounced", decision.Debounced,
	)

	var location *geoloc.Location
	if decision.Dispatchable() && p.Resolver != nil {
		location, err = p.Resolver.Resolve(ctx)
		if err != nil {
			// absence of a location never blocks an alert
			p.logger.Warn("location lookup failed", "error", err)
			location = nil
		}
	}

	event, err := NewEvent(meta, evidence, decision, location)
	if err != nil {
		return nil, err
	}

	var outcomes []alert.Outcome
	if decision.Dispatchable() {
		if p.checkEscalation(meta.SessionID, event.Timestamp) {
			p.escalate(event)
		}

		if p.Dispatcher != nil {
			outcomes = p.Dispatcher.Dispatch(ctx, &alert.Alert{
				EventID:     event.ID,
				Source:      meta.Source,
				Probability: evidence.Probability,
				Timestamp:   event.Timestamp,
				Location:    location,
			})
			if p.Metrics != nil {
				for i := range outcomes {
					p.Metrics.RecordDispatch(outcomes[i].Channel, outcomes[i].Succeeded,
						outcomes[i].Retries, outcomes[i].Latency.Seconds())
				}
			}
			encoded, encErr := EncodeOutcomes(outcomes)
			if encErr != nil {
				p.logger.Error("failed to encode dispatch outcomes", "event_id", event.ID, "error", encErr)
			} else {
				event.Outcomes = encoded
			}
		}
	}

	p.persist(event, AttemptRecords(outcomes), decision)

	return &Result{
		Event:    event,
		Evidence: evidence,
		Decision: decision,
		Outcomes: outcomes,
	}, nil
}

// persist writes the event when the logging policy asks for it. Negative
// decisions are skipped unless log_all_evaluations is set.
func (p *Pipeline) persist(event *datastore.Event, attempts []datastore.DispatchAttempt, decision Decision) {
	if p.Store == nil {
		return
	}
	if !decision.IsScream && !p.Settings.Detector.LogAllEvaluations {
		return
	}
	if err := p.Store.Save(event, attempts); err != nil {
		if p.Metrics != nil {
			p.Metrics.RecordPersistError()
		}
		p.logger.Error("event write failed", "event_id", event.ID, "error", err)
	}
}

// checkEscalation decides whether this detection, together with the recent
// unsuppressed detections in the same session, crosses the escalation
// policy. The store is authoritative when available; otherwise an in-memory
// history covers the current process lifetime.
func (p *Pipeline) checkEscalation(sessionID string, now time.Time) bool {
	esc := &p.Settings.Alert.Escalation
	if !esc.Enabled || esc.MinScreams <= 0 {
		return false
	}
	since := now.Add(-esc.Window)

	if p.Store != nil {
		count, err := p.Store.CountScreamsSince(sessionID, since)
		if err != nil {
			p.logger.Warn("escalation count query failed", "session_id", sessionID, "error", err)
		} else {
			// the current detection is not persisted yet
			return count+1 >= int64(esc.MinScreams)
		}
	}

	p.escMu.Lock()
	defer p.escMu.Unlock()
	history := p.escHistory[sessionID]
	kept := history[:0]
	for _, t := range history {
		if t.After(since) || t.Equal(since) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	p.escHistory[sessionID] = kept
	return len(kept) >= esc.MinScreams
}

// escalate marks the event and places (or simulates) the emergency call.
func (p *Pipeline) escalate(event *datastore.Event) {
	esc := &p.Settings.Alert.Escalation
	event.EscalationRequired = true
	event.EmergencyNumber = esc.EmergencyNumber

	if p.Metrics != nil {
		p.Metrics.RecordEscalation()
	}

	if esc.SimulateCalls {
		p.logger.Warn("simulated emergency call",
			"event_id", event.ID,
			"number", esc.EmergencyNumber,
			"probability", event.Probability,
		)
		return
	}
	// No telephony integration yet, real calls fall back to the log too.
	p.logger.Error("emergency call requested but no telephony backend is configured",
		"event_id", event.ID,
		"number", esc.EmergencyNumber,
	)
}

func segmentResult(decision Decision) string {
	switch {
	case decision.Dispatchable():
		return "scream"
	case decision.IsScream:
		return "suppressed"
	default:
		return "negative"
	}
}
