// Package screamdet implements the scream classification core: feature
// extraction, the pre-fitted scaler and the decision tree ensemble.
package screamdet

import (
	"log/slog"
	"time"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/logging"
	"github.com/soundsentry/screamdet-go/internal/myaudio"
)

// ScreamEvidence is the classifier's verdict for one segment. It is created
// once per segment and never mutated.
type ScreamEvidence struct {
	Probability  float64        // scream probability in [0,1]
	Features     *FeatureVector // the vector the verdict was computed from
	ModelVersion string
	Elapsed      time.Duration // classification latency
}

// Detector bundles the model artifacts and derived DSP tables. Artifacts
// are loaded once at startup and shared read-only across all pipeline
// instances; reloading requires a new Detector.
type Detector struct {
	Settings *conf.Settings
	Scaler   *Scaler
	Forest   *Forest

	layout        FeatureLayout
	window        []float64
	melFilters    [][]float64
	chromaClasses []int
	logger        *slog.Logger
}

// New loads the scaler and classifier artifacts and cross-checks their
// shapes. A mismatch between the artifacts is a deployment error and fails
// construction.
func New(settings *conf.Settings) (*Detector, error) {
	scaler, err := LoadScaler(settings.Detector.ScalerPath)
	if err != nil {
		return nil, err
	}
	forest, err := LoadForest(settings.Detector.ModelPath)
	if err != nil {
		return nil, err
	}

	if scaler.Dim() != forest.NumFeatures {
		return nil, errors.Newf("scaler dimensionality %d does not match forest input shape %d", scaler.Dim(), forest.NumFeatures).
			Component("screamdet").
			Category(errors.CategoryModelShape).
			Priority(errors.PriorityCritical).
			Build()
	}

	// The vector is 2N MFCC statistics + 12 chroma + ZCR + RMS, so the
	// coefficient count is recoverable from the artifact shape.
	rest := scaler.Dim() - numChroma - 2
	if rest <= 0 || rest%2 != 0 {
		return nil, errors.Newf("artifact shape %d does not decompose into the versioned feature layout", scaler.Dim()).
			Component("screamdet").
			Category(errors.CategoryModelShape).
			Priority(errors.PriorityCritical).
			Build()
	}

	logger := logging.ForService("screamdet")
	if logger == nil {
		logger = slog.Default().With("service", "screamdet")
	}

	d := &Detector{
		Settings:      settings,
		Scaler:        scaler,
		Forest:        forest,
		layout:        FeatureLayout{NumMFCC: rest / 2},
		window:        hannWindow(frameSize),
		melFilters:    melFilterbank(numMel, frameSize/2+1, settings.Detector.SampleRate),
		chromaClasses: chromaMap(frameSize/2+1, settings.Detector.SampleRate),
		logger:        logger,
	}

	d.logger.Info("detector initialized",
		"model_version", forest.Version,
		"num_features", forest.NumFeatures,
		"num_trees", len(forest.Trees),
		"num_mfcc", d.layout.NumMFCC,
		"sample_rate", settings.Detector.SampleRate,
	)

	return d, nil
}

// Layout returns the feature layout derived from the loaded artifacts.
func (d *Detector) Layout() FeatureLayout {
	return d.layout
}

// Classify normalizes a feature vector and returns the ensemble verdict.
// Shape mismatches surface as fatal model-shape errors.
func (d *Detector) Classify(vector *FeatureVector) (*ScreamEvidence, error) {
	start := time.Now()

	scaled, err := d.Scaler.Transform(vector.Values)
	if err != nil {
		return nil, err
	}

	probability, err := d.Forest.Probability(scaled)
	if err != nil {
		return nil, err
	}

	return &ScreamEvidence{
		Probability:  probability,
		Features:     vector,
		ModelVersion: d.Forest.Version,
		Elapsed:      time.Since(start),
	}, nil
}

// EvaluateSegment runs extraction and classification for one segment.
func (d *Detector) EvaluateSegment(segment *myaudio.Segment) (*ScreamEvidence, error) {
	vector, err := d.Extract(segment)
	if err != nil {
		return nil, err
	}
	return d.Classify(vector)
}
