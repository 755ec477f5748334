// Package tts defines the Speaker interface for Text-to-Speech backends.
//
// A Speaker turns one utterance into audible speech and blocks until playback
// finishes (or ctx is cancelled). The assistant speaks one response at a time,
// so there is no streaming surface here; backends that synthesise over HTTP
// do one request per utterance.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Default voice parameters for assistant responses.
const (
	DefaultLocale = "en-GB"
	DefaultRate   = 0.5
	DefaultPitch  = 0.9
	DefaultVolume = 1.0
)

// Utterance is one piece of speech to synthesise.
type Utterance struct {
	// Text is the sentence to speak.
	Text string

	// Locale is the BCP-47 voice locale (e.g. "en-GB").
	Locale string

	// Rate is the speaking rate in [0, 1], where 0.5 is normal speed.
	Rate float64

	// Pitch is the voice pitch multiplier; 1.0 is the voice's natural pitch.
	Pitch float64

	// Volume is the output gain in [0, 1].
	Volume float64
}

// NewUtterance returns an Utterance for text with the assistant's standard
// voice parameters.
func NewUtterance(text string) Utterance {
	return Utterance{
		Text:   text,
		Locale: DefaultLocale,
		Rate:   DefaultRate,
		Pitch:  DefaultPitch,
		Volume: DefaultVolume,
	}
}

// Speaker is the abstraction over any TTS backend.
type Speaker interface {
	// Speak synthesises and plays the utterance, blocking until playback
	// completes. Cancelling ctx stops playback early with ctx.Err().
	Speak(ctx context.Context, u Utterance) error
}

// Player plays raw mono PCM out of the host's audio device. It is injected
// into speakers that synthesise to PCM so tests can capture the output
// instead of playing it.
type Player interface {
	Play(ctx context.Context, pcm []int16, sampleRate int) error
}
