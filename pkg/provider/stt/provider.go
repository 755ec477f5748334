// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local Whisper model or a
// remote streaming service such as Deepgram) and exposes a uniform streaming
// interface. The central abstraction is SessionHandle: once opened, a session
// accepts raw PCM audio frames and emits Event values carrying transcripts —
// low-latency partials for responsiveness and authoritative finals that the
// command pipeline acts on.
//
// Providers that can also transcribe a complete buffered sample in one call
// implement Transcriber, which the voice authenticator uses for challenge
// recordings.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. The capture pipeline
	// produces 16000 Hz mono.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect, if supported.
	Language string
}

// Transcript is one recognition result.
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// Final reports whether the provider has committed to this result.
	// Only final transcripts feed the command parser; partials may be
	// shown but never acted on.
	Final bool
}

// Event is one item on a session's event stream: either a transcript or a
// terminal error. After an Event with a non-nil Err, no further events follow
// and the channel is closed.
type Event struct {
	Transcript Transcript
	Err        error
}

// SessionHandle represents an open STT streaming session. It is an interface
// so that test code can provide mock implementations without a live engine.
//
// Callers must call Close when the session is no longer needed; failing to do
// so may leak goroutines and connections inside the provider. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of mono PCM samples matching the
	// StreamConfig sample rate. Calling SendAudio after Close returns an
	// error.
	SendAudio(samples []int16) error

	// Events returns a read-only channel of transcription events. The
	// channel is closed when the session ends, after a terminal error
	// event if the session failed.
	Events() <-chan Event

	// Close terminates the session, flushes pending audio, and releases
	// all resources. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription session. The
	// returned SessionHandle is ready to accept audio immediately. The
	// caller owns the handle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
