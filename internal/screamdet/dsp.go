// dsp.go implements the signal processing primitives behind feature
// extraction: framing, windowing, FFT power spectra, mel filterbank and
// DCT-II. Everything here is deterministic, identical input samples always
// produce identical output.
package screamdet

import "math"

// Analysis frame parameters, fixed for the lifetime of a model version.
const (
	frameSize = 2048 // samples per analysis frame, power of two for the FFT
	hopSize   = 512  // samples between successive frames
	numMel    = 40   // mel filterbank size feeding the cepstrum
	numChroma = 12   // pitch classes for the chroma vector
)

// hannWindow returns the periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// fft computes the in-place iterative radix-2 FFT of x. len(x) must be a
// power of two.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wl := complex(math.Cos(ang), math.Sin(ang))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := x[i+j]
				v := x[i+j+length/2] * w
				x[i+j] = u + v
				x[i+j+length/2] = u - v
				w *= wl
			}
		}
	}
}

// powerSpectrum returns the one-sided power spectrum of a windowed frame.
// The result has frameSize/2+1 bins.
func powerSpectrum(frame, window []float64) []float64 {
	buf := make([]complex128, len(frame))
	for i, s := range frame {
		buf[i] = complex(s*window[i], 0)
	}
	fft(buf)

	spec := make([]float64, len(frame)/2+1)
	for i := range spec {
		re := real(buf[i])
		im := imag(buf[i])
		spec[i] = re*re + im*im
	}
	return spec
}

// hzToMel converts a frequency in Hz to the mel scale.
func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// melToHz converts a mel value back to Hz.
func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilterbank builds numFilters triangular filters spanning 0 Hz to
// sampleRate/2, each row spanning the power spectrum bins.
func melFilterbank(numFilters, specBins, sampleRate int) [][]float64 {
	maxMel := hzToMel(float64(sampleRate) / 2)

	// Filter edge frequencies, numFilters+2 points evenly spaced in mel
	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(numFilters+1))
	}

	binHz := float64(sampleRate) / float64(frameSize)
	filters := make([][]float64, numFilters)
	for f := 0; f < numFilters; f++ {
		row := make([]float64, specBins)
		lower, center, upper := edges[f], edges[f+1], edges[f+2]
		for b := 0; b < specBins; b++ {
			hz := float64(b) * binHz
			switch {
			case hz <= lower || hz >= upper:
				// outside the triangle
			case hz <= center:
				row[b] = (hz - lower) / (center - lower)
			default:
				row[b] = (upper - hz) / (upper - center)
			}
		}
		filters[f] = row
	}
	return filters
}

// dctII applies an orthonormal DCT-II to input and keeps numCoeffs outputs.
func dctII(input []float64, numCoeffs int) []float64 {
	n := len(input)
	out := make([]float64, numCoeffs)
	scale0 := math.Sqrt(1 / float64(n))
	scale := math.Sqrt(2 / float64(n))
	for k := 0; k < numCoeffs; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += input[i] * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
		if k == 0 {
			out[k] = sum * scale0
		} else {
			out[k] = sum * scale
		}
	}
	return out
}

// chromaMap assigns each spectrum bin to one of the 12 pitch classes,
// relative to a C-based equal tempered scale with A4 = 440 Hz. Bin 0 (DC)
// maps to -1 and is skipped by the caller.
func chromaMap(specBins, sampleRate int) []int {
	binHz := float64(sampleRate) / float64(frameSize)
	classes := make([]int, specBins)
	for b := range classes {
		hz := float64(b) * binHz
		if hz < 20 { // below audible pitch, leave unassigned
			classes[b] = -1
			continue
		}
		// MIDI note number, 69 = A4
		midi := 69 + 12*math.Log2(hz/440)
		pc := int(math.Round(midi)) % 12
		if pc < 0 {
			pc += 12
		}
		classes[b] = pc
	}
	return classes
}
