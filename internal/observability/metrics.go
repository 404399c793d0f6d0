// Package observability provides custom Prometheus metrics for the
// detection pipeline.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectionMetrics contains all Prometheus metrics related to segment
// evaluation and alert dispatch.
type DetectionMetrics struct {
	SegmentsTotal    *prometheus.CounterVec
	ScreamsTotal     prometheus.Counter
	SuppressedTotal  prometheus.Counter
	EscalationsTotal prometheus.Counter

	ClassifyDuration prometheus.Histogram
	ExtractDuration  prometheus.Histogram

	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	DispatchRetries  *prometheus.CounterVec

	PersistErrors prometheus.Counter

	registry *prometheus.Registry
}

// NewDetectionMetrics creates and registers the pipeline metrics on the
// given registry.
func NewDetectionMetrics(registry *prometheus.Registry) (*DetectionMetrics, error) {
	m := &DetectionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detection metrics: %w", err)
	}
	return m, nil
}

func (m *DetectionMetrics) initMetrics() {
	m.SegmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamdet_segments_total",
			Help: "Total number of evaluated audio segments partitioned by result.",
		},
		[]string{"result"},
	)
	m.ScreamsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screamdet_screams_total",
			Help: "Total number of positive scream detections.",
		},
	)
	m.SuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screamdet_suppressed_total",
			Help: "Total number of detections suppressed by the debounce window.",
		},
	)
	m.EscalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screamdet_escalations_total",
			Help: "Total number of detections that triggered the escalation policy.",
		},
	)

	m.ClassifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screamdet_classify_duration_seconds",
			Help:    "Time taken to scale and classify a feature vector",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10), // 0.1ms to ~100ms
		},
	)
	m.ExtractDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screamdet_extract_duration_seconds",
			Help:    "Time taken to extract features from a segment",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		},
	)

	m.DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamdet_dispatch_total",
			Help: "Total number of alert dispatches partitioned by channel and status",
		},
		[]string{"channel", "status"},
	)
	m.DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screamdet_dispatch_duration_seconds",
			Help:    "Time taken to deliver an alert on a channel, retries included",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"channel"},
	)
	m.DispatchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screamdet_dispatch_retries_total",
			Help: "Total number of retry attempts beyond the first send",
		},
		[]string{"channel"},
	)

	m.PersistErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screamdet_persist_errors_total",
			Help: "Total number of event writes that failed and were buffered",
		},
	)
}

// RecordSegment records one evaluated segment with its decision result,
// one of "scream", "suppressed" or "negative".
func (m *DetectionMetrics) RecordSegment(result string) {
	m.SegmentsTotal.WithLabelValues(result).Inc()
	switch result {
	case "scream":
		m.ScreamsTotal.Inc()
	case "suppressed":
		m.SuppressedTotal.Inc()
	}
}

// RecordClassify records the classification latency.
func (m *DetectionMetrics) RecordClassify(durationSeconds float64) {
	m.ClassifyDuration.Observe(durationSeconds)
}

// RecordExtract records the feature extraction latency.
func (m *DetectionMetrics) RecordExtract(durationSeconds float64) {
	m.ExtractDuration.Observe(durationSeconds)
}

// RecordDispatch records one channel outcome.
func (m *DetectionMetrics) RecordDispatch(channel string, succeeded bool, retries int, durationSeconds float64) {
	status := "success"
	if !succeeded {
		status = "error"
	}
	m.DispatchTotal.WithLabelValues(channel, status).Inc()
	m.DispatchDuration.WithLabelValues(channel).Observe(durationSeconds)
	if retries > 0 {
		m.DispatchRetries.WithLabelValues(channel).Add(float64(retries))
	}
}

// RecordEscalation records one escalation trigger.
func (m *DetectionMetrics) RecordEscalation() {
	m.EscalationsTotal.Inc()
}

// RecordPersistError records a failed event write.
func (m *DetectionMetrics) RecordPersistError() {
	m.PersistErrors.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DetectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SegmentsTotal.Describe(ch)
	ch <- m.ScreamsTotal.Desc()
	ch <- m.SuppressedTotal.Desc()
	ch <- m.EscalationsTotal.Desc()
	ch <- m.ClassifyDuration.Desc()
	ch <- m.ExtractDuration.Desc()
	m.DispatchTotal.Describe(ch)
	m.DispatchDuration.Describe(ch)
	m.DispatchRetries.Describe(ch)
	ch <- m.PersistErrors.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DetectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SegmentsTotal.Collect(ch)
	ch <- m.ScreamsTotal
	ch <- m.SuppressedTotal
	ch <- m.EscalationsTotal
	ch <- m.ClassifyDuration
	ch <- m.ExtractDuration
	m.DispatchTotal.Collect(ch)
	m.DispatchDuration.Collect(ch)
	m.DispatchRetries.Collect(ch)
	ch <- m.PersistErrors
}
