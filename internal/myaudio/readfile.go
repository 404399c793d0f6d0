package myaudio

import (
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// Read a WAV file into segments of SegmentLength at the target sample rate.
// Stereo input is downmixed to mono, other sample rates are resampled.
func ReadAudioFile(path string, targetRate int) ([]*Segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("operation", "open_audio_file").
			Build()
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("file_extension", filepath.Ext(path)).
			Build()
	}

	// Divisor for converting samples from int to float64
	var divisor float64
	switch decoder.BitDepth {
	case 16:
		divisor = 32768.0
	case 24:
		divisor = 8388608.0
	case 32:
		divisor = 2147483648.0
	default:
		return nil, errors.Newf("unsupported audio bit depth %d", decoder.BitDepth).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	sourceRate := int(decoder.SampleRate)
	numChans := int(decoder.NumChans)
	if numChans < 1 {
		numChans = 1
	}

	const bufFrames = 8192
	buf := &audio.IntBuffer{
		Data:   make([]int, bufFrames*numChans),
		Format: &audio.Format{SampleRate: sourceRate, NumChannels: numChans},
	}

	var samples []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryAudio).
				Context("operation", "decode_pcm").
				Build()
		}
		if n == 0 {
			break
		}

		// Downmix interleaved channels to mono
		for i := 0; i+numChans <= n; i += numChans {
			var sum float64
			for c := 0; c < numChans; c++ {
				sum += float64(buf.Data[i+c]) / divisor
			}
			samples = append(samples, sum/float64(numChans))
		}
	}

	if len(samples) == 0 {
		return nil, errors.Newf("audio file is empty or corrupted").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Build()
	}

	if sourceRate != targetRate {
		samples = ResampleAudio(samples, sourceRate, targetRate)
	}

	return splitSegments(samples, targetRate, filepath.Base(path)), nil
}

// splitSegments slices samples into SegmentLength chunks. A trailing chunk
// of at least half a segment is zero padded to full length, anything shorter
// is dropped.
func splitSegments(samples []float64, rate int, source string) []*Segment {
	segSamples := int(SegmentLength.Seconds()) * rate
	minSamples := segSamples / 2

	var segments []*Segment
	for start := 0; start < len(samples); start += segSamples {
		end := start + segSamples
		if end > len(samples) {
			remainder := len(samples) - start
			if remainder < minSamples && len(segments) > 0 {
				break
			}
			chunk := make([]float64, segSamples)
			copy(chunk, samples[start:])
			segments = append(segments, &Segment{Samples: chunk, SampleRate: rate, Source: source})
			break
		}
		chunk := make([]float64, segSamples)
		copy(chunk, samples[start:end])
		segments = append(segments, &Segment{Samples: chunk, SampleRate: rate, Source: source})
	}
	return segments
}

// ResampleAudio converts samples from sourceRate to targetRate using linear
// interpolation. Good enough for feature extraction, not for playback.
func ResampleAudio(samples []float64, sourceRate, targetRate int) []float64 {
	if sourceRate == targetRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(sourceRate) / float64(targetRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
