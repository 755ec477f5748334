package extract

import (
	"bytes"
	"math"
	"testing"
)

// sineWave generates a mono tone at freq Hz, useful because a stable tone
// produces a stable dominant-frequency estimate.
func sineWave(freq float64, sampleRate, n int) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return pcm
}

func TestExtract_Dimensions(t *testing.T) {
	t.Parallel()

	feats, err := NewFFTExtractor().Extract(sineWave(220, 16000, 4096), 16000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(feats.VoicePrint) != PrintBytes {
		t.Errorf("len(VoicePrint) = %d; want %d", len(feats.VoicePrint), PrintBytes)
	}
	if len(feats.Spectral) != SpectralBands {
		t.Errorf("len(Spectral) = %d; want %d", len(feats.Spectral), SpectralBands)
	}
	if len(feats.Pitch) != PitchFrames {
		t.Errorf("len(Pitch) = %d; want %d", len(feats.Pitch), PitchFrames)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	e := NewFFTExtractor()
	pcm := sineWave(220, 16000, 8192)

	a, err := e.Extract(pcm, 16000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	b, err := e.Extract(pcm, 16000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !bytes.Equal(a.VoicePrint, b.VoicePrint) {
		t.Error("VoicePrint differs between runs on identical input")
	}
	for i := range a.Spectral {
		if a.Spectral[i] != b.Spectral[i] {
			t.Fatalf("Spectral[%d] differs: %v vs %v", i, a.Spectral[i], b.Spectral[i])
		}
	}
	for i := range a.Pitch {
		if a.Pitch[i] != b.Pitch[i] {
			t.Fatalf("Pitch[%d] differs: %v vs %v", i, a.Pitch[i], b.Pitch[i])
		}
	}
}

func TestExtract_NormalisedRanges(t *testing.T) {
	t.Parallel()

	feats, err := NewFFTExtractor().Extract(sineWave(150, 16000, 4096), 16000)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i, v := range feats.Spectral {
		if v < 0 || v > 1 {
			t.Errorf("Spectral[%d] = %v; want within [0, 1]", i, v)
		}
	}
	for i, v := range feats.Pitch {
		if v < 0 || v > 1 {
			t.Errorf("Pitch[%d] = %v; want within [0, 1]", i, v)
		}
	}
}

func TestExtract_SampleTooShort(t *testing.T) {
	t.Parallel()

	if _, err := NewFFTExtractor().Extract(make([]int16, minSamples-1), 16000); err == nil {
		t.Fatal("Extract err = nil; want too-short error")
	}
}

func TestExtract_InvalidSampleRate(t *testing.T) {
	t.Parallel()

	pcm := sineWave(220, 16000, 4096)
	for _, rate := range []int{0, -16000} {
		if _, err := NewFFTExtractor().Extract(pcm, rate); err == nil {
			t.Errorf("Extract(rate=%d) err = nil; want error", rate)
		}
	}
}
