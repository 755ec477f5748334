// Package session runs the always-on listening loop: it owns the microphone,
// pumps captured audio into the transcription provider, and hands final
// transcripts to the command pipeline.
//
// The session is a small state machine. It starts Idle, moves to Listening
// once the capture stream and transcription session are up, and drops into
// ErrorRecovery when either fails. Recovery restarts the stream after a fixed
// backoff; it never gives up, because an unattended assistant that silently
// stays deaf is worse than one that keeps retrying. The exception is the
// microphone itself: permission denial and device-start failures are not
// fixed by retrying, so the session stops and leaves the condition to the
// operator.
//
// The transcript handler is always invoked from the session's own goroutine,
// so handlers observe transcripts strictly in order and need no internal
// locking for per-transcript state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethanwacker/batcomputer/internal/observe"
	"github.com/ethanwacker/batcomputer/pkg/capture"
	"github.com/ethanwacker/batcomputer/pkg/provider/stt"
)

// Default session parameters.
const (
	defaultSampleRate = 16000
	defaultBufferSize = 1024
	defaultBackoff    = 1 * time.Second
)

// State is the lifecycle state of a listening session.
type State int

const (
	// StateIdle is the initial state before Start.
	StateIdle State = iota

	// StateListening means the capture stream and transcription session
	// are live.
	StateListening

	// StateErrorRecovery means the stream failed and a restart is pending.
	StateErrorRecovery

	// StateStopped is terminal: the session was stopped by the caller or
	// hit an unrecoverable capture error.
	StateStopped
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateErrorRecovery:
		return "error_recovery"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures a [Session].
type Config struct {
	// Capture opens the microphone. Required.
	Capture capture.Opener

	// STT provides streaming transcription. Required.
	STT stt.Provider

	// Handler receives each final transcript. Required. It is called from
	// the session goroutine; a slow handler delays subsequent transcripts
	// but never drops them.
	Handler func(ctx context.Context, transcript string)

	// SampleRate is the capture sample rate in Hz. Default 16000.
	SampleRate int

	// BufferSize is the capture chunk size in samples. Default 1024.
	BufferSize int

	// Language is the recognition language passed to the STT provider.
	Language string

	// Backoff is the fixed restart delay after a stream failure; every
	// recovery cycle waits the same interval. Defaults to 1s if zero.
	Backoff time.Duration

	// OnTransition, if non-nil, is called after every state change with
	// the old and new state. Called from the session goroutine.
	OnTransition func(from, to State)

	// Logger defaults to [slog.Default].
	Logger *slog.Logger

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session is the always-on listening loop. All methods are safe for
// concurrent use.
type Session struct {
	cfg Config

	mu    sync.Mutex
	state State
	done  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New validates cfg and creates an idle Session. Call [Session.Start] to
// begin listening.
func New(cfg Config) (*Session, error) {
	if cfg.Capture == nil {
		return nil, errors.New("session: Capture must not be nil")
	}
	if cfg.STT == nil {
		return nil, errors.New("session: STT must not be nil")
	}
	if cfg.Handler == nil {
		return nil, errors.New("session: Handler must not be nil")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	return &Session{
		cfg:   cfg,
		state: StateIdle,
		done:  make(chan struct{}),
	}, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the listening loop in a background goroutine. Calling Start
// more than once is a no-op; a stopped session cannot be restarted.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
		s.wg.Add(1)
		go s.run(ctx)
	})
}

// Stop terminates the session and blocks until its goroutines have exited.
// Safe to call multiple times.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// transition moves to the new state and fires the OnTransition hook.
func (s *Session) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from == to {
		return
	}
	s.cfg.Logger.Info("session state changed", "from", from, "to", to)
	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(from, to)
	}
}

// run is the session goroutine: it brings the stream up, processes events
// until failure, and loops through recovery until stopped.
func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()
	defer s.cfg.Metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	defer s.transition(StateStopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		err := s.listen(ctx)
		if err == nil {
			// Caller-initiated shutdown.
			return
		}
		if errors.Is(err, capture.ErrPermissionDenied) {
			s.cfg.Logger.Error("microphone access denied, not retrying", "error", err)
			return
		}
		if errors.Is(err, capture.ErrDeviceStart) {
			s.cfg.Logger.Error("audio device failed to start, not retrying", "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}

		s.cfg.Logger.Warn("listening stream failed, restarting",
			"error", err, "backoff", s.cfg.Backoff)
		s.cfg.Metrics.SessionRestarts.Add(ctx, 1)
		s.transition(StateErrorRecovery)

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(s.cfg.Backoff):
		}
	}
}

// listen runs one capture-and-transcribe cycle. It returns nil on
// caller-initiated shutdown and an error when the stream must be restarted.
// A successful cycle resets nothing here; the caller handles backoff.
func (s *Session) listen(ctx context.Context) error {
	dev, err := s.cfg.Capture.Open(s.cfg.SampleRate, s.cfg.BufferSize)
	if err != nil {
		return fmt.Errorf("session: open capture: %w", err)
	}
	defer dev.Close()

	handle, err := s.cfg.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: s.cfg.SampleRate,
		Language:   s.cfg.Language,
	})
	if err != nil {
		return fmt.Errorf("session: start transcription: %w", err)
	}
	defer handle.Close()

	s.transition(StateListening)

	// The pump moves audio from the device into the provider until either
	// side fails. Its error surfaces through pumpErr.
	pumpErr := make(chan error, 1)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		buf := make([]int16, s.cfg.BufferSize)
		for {
			select {
			case <-s.done:
				pumpErr <- nil
				return
			default:
			}
			n, err := dev.Read(buf)
			if err != nil {
				pumpErr <- fmt.Errorf("session: capture read: %w", err)
				return
			}
			chunk := make([]int16, n)
			copy(chunk, buf[:n])
			if err := handle.SendAudio(chunk); err != nil {
				pumpErr <- fmt.Errorf("session: send audio: %w", err)
				return
			}
		}
	}()
	// Closing the device unblocks a pump stuck in Read.
	defer func() { dev.Close(); <-pumpDone }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case err := <-pumpErr:
			return err
		case ev, ok := <-handle.Events():
			if !ok {
				return errors.New("session: transcription stream ended")
			}
			if ev.Err != nil {
				return fmt.Errorf("session: transcription: %w", ev.Err)
			}
			if !ev.Transcript.Final {
				continue
			}
			s.cfg.Handler(ctx, ev.Transcript.Text)
		}
	}
}
