package myaudio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// writeWav writes a 16-bit mono WAV file with a 440 Hz sine of the given
// duration in seconds.
func writeWav(t *testing.T, sampleRate int, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	n := int(float64(sampleRate) * seconds)
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	buf := &audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

func TestReadAudioFile(t *testing.T) {
	path := writeWav(t, 22050, 9.0)

	segments, err := ReadAudioFile(path, 22050)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	for _, s := range segments {
		assert.Equal(t, 22050, s.SampleRate)
		assert.Len(t, s.Samples, 3*22050)
		assert.Equal(t, "test.wav", s.Source)
		assert.NoError(t, s.Validate(22050))
	}
}

func TestReadAudioFileResamples(t *testing.T) {
	path := writeWav(t, 44100, 3.0)

	segments, err := ReadAudioFile(path, 22050)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 22050, segments[0].SampleRate)
	assert.Len(t, segments[0].Samples, 3*22050)
}

func TestReadAudioFilePadsTrailingSegment(t *testing.T) {
	// 7.5 seconds: two full segments plus a 1.5 second remainder, which is
	// exactly half a segment and gets zero padded
	path := writeWav(t, 22050, 7.5)

	segments, err := ReadAudioFile(path, 22050)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Len(t, segments[2].Samples, 3*22050)

	// the padding is silent
	tail := segments[2].Samples[2*22050:]
	for _, s := range tail {
		assert.InDelta(t, 0.0, s, 0)
	}
}

func TestReadAudioFileDropsShortRemainder(t *testing.T) {
	// one second of trailing audio after a full segment is below the half
	// segment minimum and is dropped
	path := writeWav(t, 22050, 4.0)

	segments, err := ReadAudioFile(path, 22050)
	require.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestReadAudioFileRejectsNonWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := ReadAudioFile(path, 22050)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestReadAudioFileMissing(t *testing.T) {
	_, err := ReadAudioFile(filepath.Join(t.TempDir(), "missing.wav"), 22050)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryAudio))
}

func TestResampleAudio(t *testing.T) {
	samples := make([]float64, 44100)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 44100)
	}

	out := ResampleAudio(samples, 44100, 22050)
	assert.Len(t, out, 22050)

	// downsampling by two keeps every other sample, up to interpolation
	assert.InDelta(t, samples[2], out[1], 1e-9)
	assert.InDelta(t, samples[100], out[50], 1e-9)
}

func TestResampleAudioIdentity(t *testing.T) {
	samples := []float64{0.1, 0.2, 0.3}
	out := ResampleAudio(samples, 22050, 22050)
	assert.Equal(t, samples, out)
}

func TestSegmentValidate(t *testing.T) {
	valid := &Segment{Samples: make([]float64, 100), SampleRate: 22050, Source: "test"}
	assert.NoError(t, valid.Validate(22050))

	empty := &Segment{SampleRate: 22050, Source: "test"}
	err := empty.Validate(22050)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	mismatch := &Segment{Samples: make([]float64, 100), SampleRate: 44100, Source: "test"}
	err = mismatch.Validate(22050)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestSegmentDuration(t *testing.T) {
	s := &Segment{Samples: make([]float64, 22050), SampleRate: 22050}
	assert.InDelta(t, 1.0, s.Duration(), 1e-12)

	empty := &Segment{}
	assert.InDelta(t, 0.0, empty.Duration(), 0)
}
