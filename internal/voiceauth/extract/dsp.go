package extract

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// windowSize is the FFT analysis window in samples. At 16 kHz this is 64 ms,
// long enough to resolve fundamental frequencies down to ~60 Hz.
const windowSize = 1024

// frame holds the FFT magnitude spectrum of one analysis window.
type frame struct {
	mags []float64
}

// analyse slices pcm into non-overlapping Hann-windowed frames and returns
// the average magnitude spectrum plus the per-frame spectra.
func analyse(pcm []int16) (avg []float64, frames []frame) {
	bins := windowSize / 2
	avg = make([]float64, bins)
	hann := window.Hann(windowSize)

	for off := 0; off+windowSize <= len(pcm); off += windowSize {
		in := make([]float64, windowSize)
		for i := range in {
			in[i] = float64(pcm[off+i]) / 32768.0 * hann[i]
		}

		out := fft.FFTReal(in)
		mags := make([]float64, bins)
		for i := range mags {
			mags[i] = cmplx.Abs(out[i])
		}

		frames = append(frames, frame{mags: mags})
		for i := range avg {
			avg[i] += mags[i]
		}
	}

	n := float64(len(frames))
	for i := range avg {
		avg[i] /= n
	}
	return avg, frames
}

// bandEnergies folds the average spectrum into SpectralBands normalised band
// energies.
func bandEnergies(spectrum []float64) []float64 {
	bands := make([]float64, SpectralBands)
	per := len(spectrum) / SpectralBands

	var max float64
	for b := range bands {
		var sum float64
		for i := b * per; i < (b+1)*per; i++ {
			sum += spectrum[i]
		}
		bands[b] = sum / float64(per)
		if bands[b] > max {
			max = bands[b]
		}
	}
	if max > 0 {
		for b := range bands {
			bands[b] /= max
		}
	}
	return bands
}

// pitchContour estimates the dominant frequency of each frame, resamples the
// sequence to PitchFrames values, and normalises to [0, 1] against the upper
// bound of the human vocal range.
func pitchContour(frames []frame, sampleRate int) []float64 {
	// Restrict the peak search to the human fundamental range.
	const loHz, hiHz = 60.0, 500.0
	binHz := float64(sampleRate) / windowSize
	loBin := int(loHz / binHz)
	hiBin := int(hiHz / binHz)

	raw := make([]float64, len(frames))
	for i, f := range frames {
		peak, peakMag := loBin, 0.0
		for b := loBin; b <= hiBin && b < len(f.mags); b++ {
			if f.mags[b] > peakMag {
				peak, peakMag = b, f.mags[b]
			}
		}
		raw[i] = float64(peak) * binHz
	}

	contour := make([]float64, PitchFrames)
	for i := range contour {
		src := i * len(raw) / PitchFrames
		contour[i] = math.Min(1, raw[src]/hiHz)
	}
	return contour
}

// voicePrint quantises the average spectrum into a PrintBytes signature.
func voicePrint(spectrum []float64) []byte {
	print := make([]byte, PrintBytes)
	per := len(spectrum) / PrintBytes

	var max float64
	sums := make([]float64, PrintBytes)
	for i := range sums {
		for j := i * per; j < (i+1)*per; j++ {
			sums[i] += spectrum[j]
		}
		if sums[i] > max {
			max = sums[i]
		}
	}
	if max == 0 {
		return print
	}
	for i := range print {
		print[i] = byte(math.Round(sums[i] / max * 255))
	}
	return print
}
