package session_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ethanwacker/batcomputer/internal/session"
	"github.com/ethanwacker/batcomputer/pkg/capture"
	capturemock "github.com/ethanwacker/batcomputer/pkg/capture/mock"
	"github.com/ethanwacker/batcomputer/pkg/provider/stt"
	sttmock "github.com/ethanwacker/batcomputer/pkg/provider/stt/mock"
)

// silentDevice serves endless silence until closed, keeping the audio pump
// alive so tests can drive outcomes through the transcription events.
type silentDevice struct {
	closed chan struct{}
	once   sync.Once
}

func newSilentDevice() *silentDevice {
	return &silentDevice{closed: make(chan struct{})}
}

func (d *silentDevice) Read(buf []int16) (int, error) {
	select {
	case <-d.closed:
		return 0, io.EOF
	case <-time.After(5 * time.Millisecond):
		return len(buf), nil
	}
}

func (d *silentDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

// silentOpener hands out a fresh silentDevice per Open so restarted streams
// get a working microphone again.
type silentOpener struct {
	mu     sync.Mutex
	opened int
}

func (o *silentOpener) Open(sampleRate, bufferSize int) (capture.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	return newSilentDevice(), nil
}

func (o *silentOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

type transitionRec struct {
	from, to session.State
}

// waitFor reads transitions until one lands in the wanted state.
func waitFor(t *testing.T, transitions <-chan transitionRec, want session.State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case tr := <-transitions:
			if tr.to == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for transition to %s", want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	opener := &silentOpener{}
	provider := &sttmock.Provider{}
	handler := func(context.Context, string) {}

	if _, err := session.New(session.Config{STT: provider, Handler: handler}); err == nil {
		t.Error("nil Capture accepted")
	}
	if _, err := session.New(session.Config{Capture: opener, Handler: handler}); err == nil {
		t.Error("nil STT accepted")
	}
	if _, err := session.New(session.Config{Capture: opener, STT: provider}); err == nil {
		t.Error("nil Handler accepted")
	}
}

func TestSession_DeliversFinalTranscripts(t *testing.T) {
	t.Parallel()

	events := make(chan stt.Event, 4)
	events <- stt.Event{Transcript: stt.Transcript{Text: "computer he", Final: false}}
	events <- stt.Event{Transcript: stt.Transcript{Text: "computer hello", Final: true}}

	transcripts := make(chan string, 4)
	transitions := make(chan transitionRec, 16)

	s, err := session.New(session.Config{
		Capture: &silentOpener{},
		STT:     &sttmock.Provider{Session: &sttmock.Session{EventsCh: events}},
		Handler: func(_ context.Context, text string) { transcripts <- text },
		OnTransition: func(from, to session.State) {
			transitions <- transitionRec{from: from, to: to}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, transitions, session.StateListening)

	select {
	case got := <-transcripts:
		if got != "computer hello" {
			t.Errorf("transcript = %q; want computer hello", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final transcript")
	}

	// The partial must never reach the handler.
	select {
	case got := <-transcripts:
		t.Errorf("unexpected extra transcript %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// failingProvider errors the first `failures` streams and then serves a
// healthy (silent) session, so tests can drive repeated recovery cycles.
type failingProvider struct {
	mu       sync.Mutex
	failures int
	started  int
}

func (p *failingProvider) StartStream(context.Context, stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started++
	events := make(chan stt.Event, 1)
	if p.started <= p.failures {
		events <- stt.Event{Err: io.ErrUnexpectedEOF}
	}
	return &sttmock.Session{EventsCh: events}, nil
}

func (p *failingProvider) startCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func TestSession_RestartsAfterStreamErrors(t *testing.T) {
	t.Parallel()

	const backoff = 100 * time.Millisecond

	provider := &failingProvider{failures: 3}
	opener := &silentOpener{}

	type timedTransition struct {
		to session.State
		at time.Time
	}
	transitions := make(chan timedTransition, 64)

	s, err := session.New(session.Config{
		Capture: opener,
		STT:     provider,
		Handler: func(context.Context, string) {},
		Backoff: backoff,
		OnTransition: func(_, to session.State) {
			transitions <- timedTransition{to: to, at: time.Now()}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	// Each failed stream must bounce through recovery and come back up:
	// four Listening entries in total, with a recovery before each restart.
	var recoveries, listens []time.Time
	deadline := time.After(10 * time.Second)
	for len(listens) < 4 {
		select {
		case tr := <-transitions:
			switch tr.to {
			case session.StateErrorRecovery:
				recoveries = append(recoveries, tr.at)
			case session.StateListening:
				listens = append(listens, tr.at)
			}
		case <-deadline:
			t.Fatalf("timed out after %d listens, %d recoveries", len(listens), len(recoveries))
		}
	}
	if len(recoveries) != 3 {
		t.Fatalf("saw %d recoveries; want 3", len(recoveries))
	}

	// The same backoff must elapse before every restart; the delay does not
	// grow with consecutive failures.
	var total time.Duration
	for i, rec := range recoveries {
		gap := listens[i+1].Sub(rec)
		if gap < backoff {
			t.Errorf("restart %d came %v after recovery; want at least %v", i+1, gap, backoff)
		}
		total += gap
	}
	if limit := 3*backoff + 250*time.Millisecond; total > limit {
		t.Errorf("three restarts waited %v in total; want a fixed %v per cycle (under %v)",
			total, backoff, limit)
	}

	if got := provider.startCount(); got != 4 {
		t.Errorf("StartStream called %d times; want 4 (three failures, one healthy)", got)
	}
	if got := opener.openCount(); got != 4 {
		t.Errorf("capture opened %d times; want 4, one per cycle", got)
	}
}

func TestSession_ClosedEventStreamTriggersRecovery(t *testing.T) {
	t.Parallel()

	events := make(chan stt.Event)
	close(events)

	transitions := make(chan transitionRec, 64)
	s, err := session.New(session.Config{
		Capture: &silentOpener{},
		STT:     &sttmock.Provider{Session: &sttmock.Session{EventsCh: events}},
		Handler: func(context.Context, string) {},
		Backoff: time.Millisecond,
		OnTransition: func(from, to session.State) {
			select {
			case transitions <- transitionRec{from: from, to: to}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start(context.Background())
	waitFor(t, transitions, session.StateErrorRecovery)
	s.Stop()

	if got := s.State(); got != session.StateStopped {
		t.Errorf("State = %s; want stopped", got)
	}
}

func TestSession_PermissionDeniedIsTerminal(t *testing.T) {
	t.Parallel()

	opener := &capturemock.Opener{OpenErr: capture.ErrPermissionDenied}
	transitions := make(chan transitionRec, 16)

	s, err := session.New(session.Config{
		Capture: opener,
		STT:     &sttmock.Provider{},
		Handler: func(context.Context, string) {},
		Backoff: time.Millisecond,
		OnTransition: func(from, to session.State) {
			transitions <- transitionRec{from: from, to: to}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start(context.Background())
	waitFor(t, transitions, session.StateStopped)
	s.Stop()

	if got := opener.OpenCallCount(); got != 1 {
		t.Errorf("Open called %d times; want exactly 1, no retry on permission denial", got)
	}
}

func TestSession_DeviceStartFailureIsTerminal(t *testing.T) {
	t.Parallel()

	opener := &capturemock.Opener{
		OpenErr: fmt.Errorf("%w: no default input device", capture.ErrDeviceStart),
	}
	transitions := make(chan transitionRec, 16)

	s, err := session.New(session.Config{
		Capture: opener,
		STT:     &sttmock.Provider{},
		Handler: func(context.Context, string) {},
		Backoff: time.Millisecond,
		OnTransition: func(from, to session.State) {
			transitions <- transitionRec{from: from, to: to}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start(context.Background())
	waitFor(t, transitions, session.StateStopped)
	s.Stop()

	if got := opener.OpenCallCount(); got != 1 {
		t.Errorf("Open called %d times; want exactly 1, no retry when the device cannot start", got)
	}
}

func TestSession_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	events := make(chan stt.Event)
	s, err := session.New(session.Config{
		Capture: &silentOpener{},
		STT:     &sttmock.Provider{Session: &sttmock.Session{EventsCh: events}},
		Handler: func(context.Context, string) {},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.Start(context.Background())
	s.Stop()
	s.Stop()

	if got := s.State(); got != session.StateStopped {
		t.Errorf("State = %s; want stopped", got)
	}
}

func TestSession_ContextCancelStops(t *testing.T) {
	t.Parallel()

	events := make(chan stt.Event)
	transitions := make(chan transitionRec, 16)
	s, err := session.New(session.Config{
		Capture: &silentOpener{},
		STT:     &sttmock.Provider{Session: &sttmock.Session{EventsCh: events}},
		Handler: func(context.Context, string) {},
		OnTransition: func(from, to session.State) {
			transitions <- transitionRec{from: from, to: to}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitFor(t, transitions, session.StateListening)

	cancel()
	waitFor(t, transitions, session.StateStopped)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state session.State
		want  string
	}{
		{session.StateIdle, "idle"},
		{session.StateListening, "listening"},
		{session.StateErrorRecovery, "error_recovery"},
		{session.StateStopped, "stopped"},
		{session.State(99), "unknown(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q; want %q", int(tt.state), got, tt.want)
		}
	}
}
