// Package extract derives comparable acoustic features from raw PCM audio.
// The features feed the voice authenticator's similarity scoring; they are
// deterministic for a given sample so that enrollment and verification of the
// same recording always agree.
package extract

import (
	"errors"
	"fmt"
)

// Feature vector dimensions. Fixed so stored profiles stay comparable across
// process restarts.
const (
	// SpectralBands is the number of log-spaced band energies in the
	// spectral feature vector.
	SpectralBands = 32

	// PitchFrames is the number of frames in the pitch contour vector.
	PitchFrames = 16

	// PrintBytes is the length of the byte-encoded voiceprint.
	PrintBytes = 64
)

// minSamples is the shortest sample we can extract features from: one
// analysis window.
const minSamples = windowSize

// Features is the acoustic fingerprint of one audio sample.
type Features struct {
	// VoicePrint is a compact byte signature of the overall spectrum,
	// compared by cosine similarity.
	VoicePrint []byte

	// Spectral holds normalised band energies across the voice range.
	Spectral []float64

	// Pitch holds the normalised fundamental-frequency contour.
	Pitch []float64
}

// Extractor turns PCM audio into [Features]. Implementations must be safe
// for concurrent use.
type Extractor interface {
	Extract(pcm []int16, sampleRate int) (Features, error)
}

// Compile-time assertion that FFTExtractor satisfies Extractor.
var _ Extractor = (*FFTExtractor)(nil)

// FFTExtractor computes features from windowed FFT magnitudes: band energies
// for the spectral vector, per-frame dominant-frequency estimates for the
// pitch contour, and a quantised average spectrum for the voiceprint.
type FFTExtractor struct{}

// NewFFTExtractor returns a ready-to-use [FFTExtractor].
func NewFFTExtractor() *FFTExtractor {
	return &FFTExtractor{}
}

// Extract implements [Extractor].
func (e *FFTExtractor) Extract(pcm []int16, sampleRate int) (Features, error) {
	if sampleRate <= 0 {
		return Features{}, fmt.Errorf("extract: invalid sample rate %d", sampleRate)
	}
	if len(pcm) < minSamples {
		return Features{}, errors.New("extract: sample too short for analysis")
	}

	spectrum, frames := analyse(pcm)

	return Features{
		VoicePrint: voicePrint(spectrum),
		Spectral:   bandEnergies(spectrum),
		Pitch:      pitchContour(frames, sampleRate),
	}, nil
}
