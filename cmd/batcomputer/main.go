// Command batcomputer is the Bat Computer voice assistant: it listens on the
// microphone for the "computer" wake word, executes the recognised command,
// and speaks the response. Run with -enroll to record a voice profile for
// sensitive-command authentication instead of starting the assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethanwacker/batcomputer/internal/app"
	"github.com/ethanwacker/batcomputer/internal/config"
	"github.com/ethanwacker/batcomputer/internal/observe"
	"github.com/ethanwacker/batcomputer/internal/voiceauth"
	captureportaudio "github.com/ethanwacker/batcomputer/pkg/capture/portaudio"
	"github.com/ethanwacker/batcomputer/pkg/provider/stt"
	"github.com/ethanwacker/batcomputer/pkg/provider/stt/deepgram"
	"github.com/ethanwacker/batcomputer/pkg/provider/stt/whisper"
	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
	"github.com/ethanwacker/batcomputer/pkg/provider/tts/console"
	"github.com/ethanwacker/batcomputer/pkg/provider/tts/coqui"
	ttsportaudio "github.com/ethanwacker/batcomputer/pkg/provider/tts/portaudio"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	enrollName := flag.String("enroll", "", "record a voice profile under this name and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "batcomputer: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "batcomputer: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer otelShutdown(context.Background())

	providers, closeProviders, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer closeProviders()

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown()

	if *enrollName != "" {
		profile, err := application.Enroll(ctx, *enrollName)
		if err != nil {
			slog.Error("enrollment failed", "name", *enrollName, "err", err)
			return 1
		}
		slog.Info("voice profile enrolled", "name", profile.Name)
		return 0
	}

	slog.Info("assistant ready — press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// transcriberProvider is satisfied by both STT backends: they stream for the
// listening session and transcribe buffered samples for authentication.
type transcriberProvider interface {
	stt.Provider
	voiceauth.Transcriber
}

// buildProviders instantiates the configured STT and TTS backends plus the
// microphone opener. The returned closer releases provider resources (the
// whisper model) after the app shuts down.
func buildProviders(cfg *config.Config) (*app.Providers, func(), error) {
	closeFn := func() {}

	var sttProvider transcriberProvider
	switch name := cfg.Providers.STT.Name; name {
	case "whisper", "":
		var opts []whisper.Option
		if cfg.Providers.STT.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Providers.STT.Language))
		}
		if cfg.Capture.SampleRate > 0 {
			opts = append(opts, whisper.WithSampleRate(cfg.Capture.SampleRate))
		}
		p, err := whisper.New(cfg.Providers.STT.Model, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create whisper provider: %w", err)
		}
		sttProvider = p
		closeFn = func() {
			if err := p.Close(); err != nil {
				slog.Warn("failed to close whisper model", "err", err)
			}
		}

	case "deepgram":
		var opts []deepgram.Option
		if cfg.Providers.STT.Model != "" {
			opts = append(opts, deepgram.WithModel(cfg.Providers.STT.Model))
		}
		if cfg.Providers.STT.Language != "" {
			opts = append(opts, deepgram.WithLanguage(cfg.Providers.STT.Language))
		}
		if cfg.Providers.STT.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(cfg.Providers.STT.BaseURL))
		}
		p, err := deepgram.New(cfg.Providers.STT.APIKey, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create deepgram provider: %w", err)
		}
		sttProvider = p

	default:
		return nil, nil, fmt.Errorf("unknown stt provider %q", name)
	}

	var speaker tts.Speaker
	switch name := cfg.Providers.TTS.Name; name {
	case "coqui":
		s, err := coqui.New(cfg.Providers.TTS.BaseURL, ttsportaudio.NewPlayer())
		if err != nil {
			return nil, nil, fmt.Errorf("create coqui speaker: %w", err)
		}
		speaker = s
	case "console", "":
		speaker = console.New(nil)
	default:
		return nil, nil, fmt.Errorf("unknown tts provider %q", name)
	}

	return &app.Providers{
		STT:         sttProvider,
		TTS:         speaker,
		Capture:     captureportaudio.NewOpener(),
		Transcriber: sttProvider,
	}, closeFn, nil
}

func printStartupSummary(cfg *config.Config) {
	sttName := cfg.Providers.STT.Name
	if sttName == "" {
		sttName = "whisper"
	}
	ttsName := cfg.Providers.TTS.Name
	if ttsName == "" {
		ttsName = "console"
	}

	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      Bat Computer — startup summary   ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("STT", sttName)
	printField("TTS", ttsName)
	printField("Profile store", string(storeName(cfg)))
	printField("Weather", weatherState(cfg))
	printField("Admin addr", cfg.Server.AdminAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func storeName(cfg *config.Config) config.ProfileStore {
	if cfg.Auth.ProfileStore == "" {
		return config.StoreMemory
	}
	return cfg.Auth.ProfileStore
}

func weatherState(cfg *config.Config) string {
	if cfg.Weather.APIKey == "" {
		return "(disabled)"
	}
	return "enabled"
}

func printField(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", name, value)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
