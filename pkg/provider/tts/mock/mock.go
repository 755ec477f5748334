// Package mock provides test doubles for the tts package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
)

// Speaker is a mock implementation of tts.Speaker that records every
// utterance it is asked to speak.
type Speaker struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// Utterances records every utterance passed to Speak, in order.
	Utterances []tts.Utterance
}

// Speak records the call and returns SpeakErr.
func (s *Speaker) Speak(_ context.Context, u tts.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Utterances = append(s.Utterances, u)
	return s.SpeakErr
}

// Spoken returns the texts of all recorded utterances. Thread-safe.
func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Utterances))
	for i, u := range s.Utterances {
		out[i] = u.Text
	}
	return out
}

// Reset clears all recorded utterances. Thread-safe.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Utterances = nil
}

// Ensure Speaker implements tts.Speaker at compile time.
var _ tts.Speaker = (*Speaker)(nil)

// Player is a mock implementation of tts.Player that records played PCM.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// PlayCalls records the sample rate and sample count of each Play call.
	PlayCalls []PlayCall
}

// PlayCall records a single invocation of Player.Play.
type PlayCall struct {
	Samples    []int16
	SampleRate int
}

// Play records the call and returns PlayErr.
func (p *Player) Play(_ context.Context, pcm []int16, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	p.PlayCalls = append(p.PlayCalls, PlayCall{Samples: cp, SampleRate: sampleRate})
	return p.PlayErr
}

// Ensure Player implements tts.Player at compile time.
var _ tts.Player = (*Player)(nil)
