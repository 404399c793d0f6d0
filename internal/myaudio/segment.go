// Package myaudio handles decoding of audio input into classification
// segments.
package myaudio

import (
	"time"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// SegmentLength is the duration of one classification unit.
const SegmentLength = 3 * time.Second

// Segment is a bounded span of mono PCM samples treated as one
// classification unit. Segments are ephemeral, they are discarded after
// feature extraction.
type Segment struct {
	Samples    []float64 // normalized to [-1, 1]
	SampleRate int
	Source     string // originating file name, or "live"
}

// Duration returns the segment length in seconds.
func (s *Segment) Duration() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Validate rejects segments the feature extractor cannot operate on. The
// expected sample rate is the rate the model artifacts were trained with.
func (s *Segment) Validate(expectedRate int) error {
	if s == nil || len(s.Samples) == 0 {
		return errors.Newf("audio segment is empty").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if s.SampleRate <= 0 {
		return errors.Newf("audio segment has invalid sample rate %d", s.SampleRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}
	if expectedRate > 0 && s.SampleRate != expectedRate {
		return errors.Newf("audio segment sample rate %d does not match model rate %d", s.SampleRate, expectedRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("segment_rate", s.SampleRate).
			Context("model_rate", expectedRate).
			Build()
	}
	return nil
}
