// Package console implements tts.Speaker by logging utterances instead of
// playing them. It is the fallback for headless deployments with no TTS
// server configured.
package console

import (
	"context"
	"log/slog"

	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Speaker = (*Speaker)(nil)

// Speaker logs every utterance at INFO level.
type Speaker struct {
	logger *slog.Logger
}

// New creates a console Speaker. A nil logger falls back to [slog.Default].
func New(logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{logger: logger}
}

// Speak implements [tts.Speaker].
func (s *Speaker) Speak(ctx context.Context, u tts.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("assistant response", "text", u.Text)
	return nil
}
