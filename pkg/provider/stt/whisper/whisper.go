// Package whisper implements stt.Provider on the whisper.cpp CGO bindings.
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// Streaming sessions buffer speech between silences: a run of quiet chunks
// (or a full buffer) triggers one inference over the accumulated speech, and
// the result is emitted as a final transcript. The provider also supports
// one-shot transcription of complete samples for voice authentication.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ethanwacker/batcomputer/pkg/provider/stt"
)

const (
	defaultLanguage     = "en"
	defaultSampleRate   = 16000
	defaultSilenceMs    = 500
	defaultMaxBufferMs  = 10000
	defaultRMSThreshold = 250.0
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider with a locally loaded whisper.cpp model.
// The model is loaded once at startup and shared across sessions; each
// inference uses its own whisper context because contexts are not
// thread-safe.
type Provider struct {
	model    whisperlib.Model
	language string

	sampleRate   int
	silenceMs    int
	maxBufferMs  int
	rmsThreshold float64
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the recognition language code (e.g. "en"). Default "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the expected PCM sample rate in Hz. Default 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration that flushes
// buffered speech to inference. Default 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) { p.silenceMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered speech duration before a
// forced flush. Default 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) { p.maxBufferMs = ms }
}

// WithRMSThreshold sets the RMS level below which a chunk counts as silence.
func WithRMSThreshold(t float64) Option {
	return func(p *Provider) { p.rmsThreshold = t }
}

// New loads the whisper.cpp model from modelPath. The caller must call Close
// when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:        model,
		language:     defaultLanguage,
		sampleRate:   defaultSampleRate,
		silenceMs:    defaultSilenceMs,
		maxBufferMs:  defaultMaxBufferMs,
		rmsThreshold: defaultRMSThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream implements stt.Provider. Each session runs its own processing
// goroutine; multiple sessions can run concurrently against the shared model.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}

	s := &session{
		provider:   p,
		language:   lang,
		sampleRate: sr,

		audioCh: make(chan []int16, 256),
		events:  make(chan stt.Event, 64),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// Transcribe runs one inference over a complete buffered sample. It satisfies
// the authenticator's transcriber contract.
func (p *Provider) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.infer(pcm, p.language)
}

// infer converts samples to float32, runs whisper.cpp with a fresh context,
// and returns the concatenated segment text.
func (p *Provider) infer(pcm []int16, language string) (string, error) {
	samples := make([]float32, len(pcm))
	for i, v := range pcm {
		samples[i] = float32(v) / 32768.0
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// ---- session ----------------------------------------------------------------

// session is a live whisper transcription session. All buffering and silence
// state is confined to the processLoop goroutine.
type session struct {
	provider   *Provider
	language   string
	sampleRate int

	audioCh chan []int16
	events  chan stt.Event

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Compile-time assertion that session satisfies stt.SessionHandle.
var _ stt.SessionHandle = (*session)(nil)

// SendAudio queues a chunk of mono PCM samples for silence analysis.
func (s *session) SendAudio(samples []int16) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- samples:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Events returns the transcription event stream.
func (s *session) Events() <-chan stt.Event { return s.events }

// Close terminates the session, flushing any buffered speech first.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// emit delivers an event, preferring the buffer so a flush racing a close
// still reaches the consumer. Only a full buffer with no reader after close
// drops the event.
func (s *session) emit(ev stt.Event) {
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// processLoop owns silence detection, speech buffering, and inference.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	var (
		buffer    []int16
		hadSpeech bool
		silenceMs int
	)

	samplesPerMs := s.sampleRate / 1000
	if samplesPerMs <= 0 {
		samplesPerMs = 16
	}
	maxBufferSamples := s.provider.maxBufferMs * samplesPerMs

	doFlush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		text, err := s.provider.infer(pcm, s.language)
		if err != nil {
			slog.Error("whisper inference failed", "error", err)
			return
		}
		if text == "" {
			return
		}
		s.emit(stt.Event{Transcript: stt.Transcript{Text: text, Final: true}})
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk := <-s.audioCh:
			if rms(chunk) < s.provider.rmsThreshold {
				if hadSpeech {
					silenceMs += len(chunk) / samplesPerMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.provider.silenceMs {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferSamples > 0 && len(buffer) >= maxBufferSamples {
					doFlush()
				}
			}
		}
	}
}

// rms computes the root-mean-square level of a chunk of samples.
func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
