// Package analysis wires the configured collaborators into a runnable
// pipeline and drives it for the file and monitor entry points.
package analysis

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundsentry/screamdet-go/internal/alert"
	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/datastore"
	"github.com/soundsentry/screamdet-go/internal/detection"
	"github.com/soundsentry/screamdet-go/internal/geoloc"
	"github.com/soundsentry/screamdet-go/internal/logging"
	"github.com/soundsentry/screamdet-go/internal/observability"
	"github.com/soundsentry/screamdet-go/internal/screamdet"
)

// Runtime holds the assembled pipeline and the resources that need
// explicit teardown.
type Runtime struct {
	Pipeline *detection.Pipeline
	Store    datastore.Interface // nil when persistence is disabled
	Registry *prometheus.Registry
	logger   *slog.Logger
}

// Build assembles the pipeline from settings: model artifacts, decision
// engine, notification channels, persistence and geolocation.
func Build(settings *conf.Settings) (*Runtime, error) {
	logger := logging.ForService("analysis")
	if logger == nil {
		logger = slog.Default().With("service", "analysis")
	}

	detector, err := screamdet.New(settings)
	if err != nil {
		return nil, err
	}

	engine := detection.NewEngine(
		settings.Detector.Threshold,
		settings.Detector.Cooldown,
		detection.SystemClock{},
	)

	var store datastore.Interface
	if s := datastore.New(settings); s != nil {
		if err := s.Open(); err != nil {
			return nil, err
		}
		store = datastore.NewBufferedStore(s)
	}

	channels := []alert.Channel{
		alert.NewSMSChannel(settings.Alert.SMS, settings.Alert.Timeout),
		alert.NewEmailChannel(settings.Alert.Email, settings.Alert.Timeout),
	}
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.ValidateConfig(); err != nil {
			// keep the channel, its outcomes will carry the failure
			logger.Warn("channel configuration invalid", "channel", ch.GetName(), "error", err)
		}
	}

	var ledger alert.Ledger
	if store != nil {
		ledger = store
	}
	dispatcher := alert.NewDispatcher(&settings.Alert, channels, ledger)

	var resolver geoloc.Resolver
	switch {
	case settings.Location.Latitude != 0 || settings.Location.Longitude != 0:
		resolver = &geoloc.FixedResolver{
			Latitude:  settings.Location.Latitude,
			Longitude: settings.Location.Longitude,
		}
	case settings.Location.IPInfoToken != "":
		resolver = geoloc.NewIPInfoClient(settings.Location.IPInfoToken)
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewDetectionMetrics(registry)
	if err != nil {
		return nil, err
	}

	pipeline := detection.NewPipeline(settings, detector, engine, dispatcher, store, resolver, metrics)

	return &Runtime{
		Pipeline: pipeline,
		Store:    store,
		Registry: registry,
		logger:   logger,
	}, nil
}

// Close releases the runtime's resources.
func (r *Runtime) Close() error {
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}
