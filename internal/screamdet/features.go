// features.go turns an audio segment into the fixed-length feature vector
// the classifier was trained on.
package screamdet

import (
	"math"

	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/myaudio"
)

// FeatureLayout fixes the shape and ordering of the feature vector for one
// model version. The vector is the concatenation of per-coefficient MFCC
// means and variances, the 12 chroma bin mean energies, the zero-crossing
// rate and the RMS energy, in that order.
type FeatureLayout struct {
	NumMFCC int // cepstral coefficients per frame
}

// Dim returns the total vector length for this layout.
func (l FeatureLayout) Dim() int {
	return 2*l.NumMFCC + numChroma + 2
}

// FeatureVector is a fixed-length ordered sequence of feature values with
// its layout attached so sub-ranges stay addressable.
type FeatureVector struct {
	Values []float64
	Layout FeatureLayout
}

// MFCCMeans returns the per-coefficient mean sub-range.
func (v *FeatureVector) MFCCMeans() []float64 {
	return v.Values[:v.Layout.NumMFCC]
}

// MFCCVariances returns the per-coefficient variance sub-range.
func (v *FeatureVector) MFCCVariances() []float64 {
	return v.Values[v.Layout.NumMFCC : 2*v.Layout.NumMFCC]
}

// Chroma returns the 12 chroma bin mean energies.
func (v *FeatureVector) Chroma() []float64 {
	return v.Values[2*v.Layout.NumMFCC : 2*v.Layout.NumMFCC+numChroma]
}

// ZCR returns the scalar zero-crossing rate.
func (v *FeatureVector) ZCR() float64 {
	return v.Values[v.Layout.Dim()-2]
}

// RMS returns the scalar RMS energy.
func (v *FeatureVector) RMS() float64 {
	return v.Values[v.Layout.Dim()-1]
}

// Extract computes the feature vector for a segment. The segment must be
// non-empty and match the model sample rate, otherwise a validation error is
// returned and no vector is produced.
func (d *Detector) Extract(segment *myaudio.Segment) (*FeatureVector, error) {
	if err := segment.Validate(d.Settings.Detector.SampleRate); err != nil {
		return nil, err
	}

	frames := frameCount(len(segment.Samples))
	if frames == 0 {
		return nil, errors.Newf("audio segment shorter than one analysis frame").
			Component("screamdet").
			Category(errors.CategoryValidation).
			Context("samples", len(segment.Samples)).
			Build()
	}

	layout := d.layout
	mfccSum := make([]float64, layout.NumMFCC)
	mfccSqSum := make([]float64, layout.NumMFCC)
	chromaSum := make([]float64, numChroma)

	for f := 0; f < frames; f++ {
		frame := segment.Samples[f*hopSize : f*hopSize+frameSize]
		spec := powerSpectrum(frame, d.window)

		// Mel energies -> log -> DCT-II gives the frame cepstrum
		melEnergies := make([]float64, numMel)
		for m, filter := range d.melFilters {
			var e float64
			for b, w := range filter {
				if w != 0 {
					e += w * spec[b]
				}
			}
			// log floor keeps silent frames finite
			melEnergies[m] = math.Log(e + 1e-10)
		}
		mfcc := dctII(melEnergies, layout.NumMFCC)
		for i, c := range mfcc {
			mfccSum[i] += c
			mfccSqSum[i] += c * c
		}

		// Chroma energies, spectrum bins folded onto 12 pitch classes
		var total float64
		frameChroma := make([]float64, numChroma)
		for b := 1; b < len(spec); b++ {
			pc := d.chromaClasses[b]
			if pc < 0 {
				continue
			}
			frameChroma[pc] += spec[b]
			total += spec[b]
		}
		if total > 0 {
			// normalize so chroma describes distribution, not loudness
			for i := range frameChroma {
				chromaSum[i] += frameChroma[i] / total
			}
		}
	}

	n := float64(frames)
	values := make([]float64, 0, layout.Dim())
	for i := 0; i < layout.NumMFCC; i++ {
		values = append(values, mfccSum[i]/n)
	}
	for i := 0; i < layout.NumMFCC; i++ {
		mean := mfccSum[i] / n
		values = append(values, mfccSqSum[i]/n-mean*mean)
	}
	for i := 0; i < numChroma; i++ {
		values = append(values, chromaSum[i]/n)
	}
	values = append(values, zeroCrossingRate(segment.Samples))
	values = append(values, rmsEnergy(segment.Samples))

	return &FeatureVector{Values: values, Layout: layout}, nil
}

// frameCount returns the number of full analysis frames in n samples.
func frameCount(n int) int {
	if n < frameSize {
		return 0
	}
	return (n-frameSize)/hopSize + 1
}

// zeroCrossingRate is the fraction of adjacent sample pairs whose signs
// differ.
func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var crossings int
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// rmsEnergy is the root mean square amplitude of the whole segment.
func rmsEnergy(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
