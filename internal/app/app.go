// Package app wires all Bat Computer subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run starts the listening session and admin HTTP server and
// blocks until ctx is cancelled, and Shutdown tears everything down.
//
// For testing, inject mock implementations via functional options
// (WithDevices, WithWeather, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ethanwacker/batcomputer/internal/command"
	"github.com/ethanwacker/batcomputer/internal/config"
	"github.com/ethanwacker/batcomputer/internal/health"
	"github.com/ethanwacker/batcomputer/internal/homeauto"
	"github.com/ethanwacker/batcomputer/internal/observe"
	"github.com/ethanwacker/batcomputer/internal/session"
	"github.com/ethanwacker/batcomputer/internal/voiceauth"
	"github.com/ethanwacker/batcomputer/internal/voiceauth/extract"
	vapostgres "github.com/ethanwacker/batcomputer/internal/voiceauth/postgres"
	"github.com/ethanwacker/batcomputer/internal/weather"
	"github.com/ethanwacker/batcomputer/pkg/capture"
	"github.com/ethanwacker/batcomputer/pkg/provider/stt"
	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
)

// defaultSampleSeconds is the challenge recording length when the config does
// not set one.
const defaultSampleSeconds = 5.0

// adminShutdownTimeout bounds graceful admin server shutdown.
const adminShutdownTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. Populated by main.go
// from the config.
type Providers struct {
	// STT streams transcription for the listening session. Required.
	STT stt.Provider

	// TTS speaks responses. Required.
	TTS tts.Speaker

	// Capture opens the microphone. Required.
	Capture capture.Opener

	// Transcriber transcribes buffered authentication samples. Usually the
	// same backend as STT. Required.
	Transcriber voiceauth.Transcriber

	// Profiles stores enrolled voice profiles. Nil means New builds one
	// from the config (memory or postgres).
	Profiles voiceauth.Store
}

// App owns all subsystem lifetimes and orchestrates the voice pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	devices    *homeauto.Registry
	weatherSvc command.WeatherService
	parser     *command.Parser
	dispatcher *command.Dispatcher
	auth       *voiceauth.Authenticator

	logger  *slog.Logger
	metrics *observe.Metrics
	admin   *http.Server

	mu            sync.Mutex
	sess          *session.Session
	authenticated bool
	challenging   bool

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDevices injects a device registry instead of seeding one from config.
func WithDevices(r *homeauto.Registry) Option {
	return func(a *App) { a.devices = r }
}

// WithWeather injects a weather service instead of creating a client from the
// configured API key.
func WithWeather(w command.WeatherService) Option {
	return func(a *App) { a.weatherSvc = w }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		return nil, errors.New("app: providers must not be nil")
	}
	if providers.STT == nil {
		return nil, errors.New("app: STT provider is required")
	}
	if providers.TTS == nil {
		return nil, errors.New("app: TTS speaker is required")
	}
	if providers.Capture == nil {
		return nil, errors.New("app: capture opener is required")
	}
	if providers.Transcriber == nil {
		return nil, errors.New("app: transcriber is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.devices == nil {
		a.devices = homeauto.NewRegistry(cfg.Devices)
	}
	if a.weatherSvc == nil && cfg.Weather.APIKey != "" {
		wc, err := weather.New(cfg.Weather.APIKey)
		if err != nil {
			return nil, fmt.Errorf("app: init weather client: %w", err)
		}
		a.weatherSvc = wc
	}

	a.parser = command.NewParser()
	a.dispatcher = command.NewDispatcher(a.devices, a.weatherSvc,
		command.WithMetrics(a.metrics))

	if err := a.initAuth(ctx); err != nil {
		return nil, fmt.Errorf("app: init voice authentication: %w", err)
	}
	a.initAdmin()

	return a, nil
}

// initAuth builds the profile store and authenticator.
func (a *App) initAuth(ctx context.Context) error {
	store := a.providers.Profiles
	if store == nil {
		switch a.cfg.Auth.ProfileStore {
		case config.StorePostgres:
			pg, err := vapostgres.New(ctx, a.cfg.Auth.PostgresDSN)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, func() error {
				pg.Close()
				return nil
			})
			store = pg
		default:
			store = voiceauth.NewMemStore()
		}
	}

	var authOpts []voiceauth.Option
	if a.cfg.Auth.Threshold > 0 {
		authOpts = append(authOpts, voiceauth.WithThreshold(a.cfg.Auth.Threshold))
	}
	authOpts = append(authOpts,
		voiceauth.WithLogger(a.logger),
		voiceauth.WithMetrics(a.metrics),
	)

	auth, err := voiceauth.NewAuthenticator(store, extract.NewFFTExtractor(),
		a.providers.Transcriber, authOpts...)
	if err != nil {
		return err
	}
	a.auth = auth
	a.providers.Profiles = store
	return nil
}

// initAdmin builds the admin HTTP server when an address is configured.
func (a *App) initAdmin() {
	if a.cfg.Server.AdminAddr == "" {
		return
	}

	h := health.New(
		health.Probe{Name: "session", Run: func(context.Context) error {
			if s := a.currentSession(); s == nil || s.State() != session.StateListening {
				return errors.New("listening session is not active")
			}
			return nil
		}},
		health.Probe{Name: "profiles", Run: func(ctx context.Context) error {
			_, err := a.providers.Profiles.List(ctx)
			return err
		}},
	)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.admin = &http.Server{
		Addr:              a.cfg.Server.AdminAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run announces the assistant, starts the listening session and the admin
// server, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.speak(ctx, command.Online)
	a.startSession(ctx)
	a.logger.Info("assistant running",
		"wake_word", command.WakeWord, "admin_addr", a.cfg.Server.AdminAddr)

	g, gctx := errgroup.WithContext(ctx)

	if a.admin != nil {
		g.Go(func() error {
			if err := a.admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
			defer cancel()
			return a.admin.Shutdown(shutCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.stopSession()
		return gctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown tears down long-lived resources. Safe to call multiple times.
func (a *App) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		a.stopSession()
		var errs []error
		for _, c := range a.closers {
			if cerr := c(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

// Enroll records an enrollment sample from the microphone and stores a voice
// profile under name. It must be called while the listening session is not
// running.
func (a *App) Enroll(ctx context.Context, name string) (voiceauth.Profile, error) {
	a.logger.Info("recording enrollment sample", "name", name,
		"seconds", a.sampleSeconds())
	pcm, err := capture.Record(ctx, a.providers.Capture, a.sampleRate(), a.sampleSeconds())
	if err != nil {
		return voiceauth.Profile{}, fmt.Errorf("app: record enrollment sample: %w", err)
	}
	return a.auth.Enroll(ctx, name, pcm, a.sampleRate())
}

// ResetAuth clears the session's authenticated state so the next sensitive
// command triggers a fresh challenge.
func (a *App) ResetAuth() {
	a.mu.Lock()
	a.authenticated = false
	a.mu.Unlock()
	a.logger.Info("voice authentication state reset")
}

// Authenticated reports whether a voice challenge has been passed since
// startup (or the last ResetAuth).
func (a *App) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

// ---- listening session ------------------------------------------------------

// startSession creates and starts a fresh listening session. Sessions are
// single-use, so the challenge flow tears one down and starts another.
func (a *App) startSession(ctx context.Context) {
	sess, err := session.New(session.Config{
		Capture:    a.providers.Capture,
		STT:        a.providers.STT,
		Handler:    a.handleTranscript,
		SampleRate: a.sampleRate(),
		BufferSize: a.cfg.Capture.BufferSize,
		Language:   a.cfg.Providers.STT.Language,
		Backoff:    time.Duration(a.cfg.Session.BackoffMS) * time.Millisecond,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		// Config errors are caught in New; only nil collaborators reach
		// this, which cannot happen past the Providers validation.
		a.logger.Error("failed to create listening session", "error", err)
		return
	}

	a.mu.Lock()
	a.sess = sess
	a.mu.Unlock()
	sess.Start(ctx)
}

func (a *App) stopSession() {
	a.mu.Lock()
	sess := a.sess
	a.sess = nil
	a.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (a *App) currentSession() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess
}

// ---- transcript pipeline ----------------------------------------------------

// handleTranscript is the session's transcript handler: parse, dispatch,
// speak. Transcripts without the wake word are dropped without response.
func (a *App) handleTranscript(ctx context.Context, transcript string) {
	cmd, ok := a.parser.Parse(transcript)
	if !ok {
		a.metrics.RecordTranscript(ctx, "ignored")
		return
	}
	a.metrics.RecordTranscript(ctx, "dispatched")
	a.logger.Info("command recognised", "kind", cmd.Kind, "raw", cmd.Raw)

	response := a.dispatcher.Dispatch(ctx, cmd, a.Authenticated())
	a.speak(ctx, response)

	if cmd.Sensitive() && !a.Authenticated() {
		a.beginChallenge(ctx, cmd)
	}
}

// beginChallenge starts the voice-authentication exchange for cmd in its own
// goroutine, so the session handler returns and the session can be torn down
// without deadlocking.
func (a *App) beginChallenge(ctx context.Context, cmd command.Command) {
	a.mu.Lock()
	if a.challenging {
		a.mu.Unlock()
		return
	}
	a.challenging = true
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.challenging = false
			a.mu.Unlock()
		}()
		a.runChallenge(ctx, cmd)
	}()
}

// runChallenge releases the microphone, records the challenge sample,
// authenticates it, and on success re-dispatches the blocked command. The
// listening session restarts regardless of the outcome.
func (a *App) runChallenge(ctx context.Context, cmd command.Command) {
	a.stopSession()
	defer a.startSession(ctx)

	pcm, err := capture.Record(ctx, a.providers.Capture, a.sampleRate(), a.sampleSeconds())
	if err != nil {
		a.logger.Error("failed to record challenge sample", "error", err)
		a.speak(ctx, command.RandomResponse(command.Warnings))
		return
	}

	res, err := a.auth.Authenticate(ctx, pcm, a.sampleRate(), command.Passphrase)
	if err != nil {
		a.logger.Error("voice authentication failed", "error", err)
		a.speak(ctx, command.RandomResponse(command.Warnings))
		return
	}
	if !res.Matched {
		a.logger.Info("voice challenge rejected",
			"confidence", res.Confidence, "transcript", res.Transcript)
		a.speak(ctx, command.RandomResponse(command.Warnings))
		return
	}

	a.mu.Lock()
	a.authenticated = true
	a.mu.Unlock()
	a.logger.Info("voice challenge passed", "name", res.Name, "confidence", res.Confidence)

	a.speak(ctx, a.dispatcher.Dispatch(ctx, cmd, true))
}

// speak voices one response, logging rather than failing on TTS errors so a
// broken speaker never takes down the pipeline.
func (a *App) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := a.providers.TTS.Speak(ctx, tts.NewUtterance(text)); err != nil {
		a.logger.Error("failed to speak response", "error", err, "text", text)
	}
}

func (a *App) sampleRate() int {
	if a.cfg.Capture.SampleRate > 0 {
		return a.cfg.Capture.SampleRate
	}
	return 16000
}

func (a *App) sampleSeconds() float64 {
	if a.cfg.Auth.SampleSeconds > 0 {
		return a.cfg.Auth.SampleSeconds
	}
	return defaultSampleSeconds
}
