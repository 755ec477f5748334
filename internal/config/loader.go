package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "deepgram"},
	"tts": {"coqui", "console"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	if cfg.Capture.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("capture.buffer_size %d must not be negative", cfg.Capture.BufferSize))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.Model == "" {
		errs = append(errs, errors.New("providers.stt.model is required for the whisper provider (path to the ggml model file)"))
	}
	if cfg.Providers.STT.Name == "deepgram" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, errors.New("providers.stt.api_key is required for the deepgram provider"))
	}
	if cfg.Providers.TTS.Name == "coqui" && cfg.Providers.TTS.BaseURL == "" {
		errs = append(errs, errors.New("providers.tts.base_url is required for the coqui provider"))
	}

	if cfg.Weather.APIKey == "" {
		slog.Warn("weather.api_key is empty; weather requests will report the service as unavailable")
	}

	if cfg.Auth.Threshold < 0 || cfg.Auth.Threshold > 1 {
		errs = append(errs, fmt.Errorf("auth.threshold %.2f is out of range [0, 1]", cfg.Auth.Threshold))
	}
	if cfg.Auth.ProfileStore != "" && !cfg.Auth.ProfileStore.IsValid() {
		errs = append(errs, fmt.Errorf("auth.profile_store %q is invalid; valid values: memory, postgres", cfg.Auth.ProfileStore))
	}
	if cfg.Auth.ProfileStore == StorePostgres && cfg.Auth.PostgresDSN == "" {
		errs = append(errs, errors.New("auth.postgres_dsn is required when auth.profile_store is postgres"))
	}
	if cfg.Auth.SampleSeconds < 0 {
		errs = append(errs, fmt.Errorf("auth.sample_seconds %.1f must not be negative", cfg.Auth.SampleSeconds))
	}

	if cfg.Session.BackoffMS < 0 {
		errs = append(errs, fmt.Errorf("session.backoff_ms %d must not be negative", cfg.Session.BackoffMS))
	}

	for name, state := range cfg.Devices {
		if name == "" {
			errs = append(errs, errors.New("devices contains an entry with an empty name"))
		}
		if state == "" {
			errs = append(errs, fmt.Errorf("devices.%s has an empty initial state", name))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName warns about provider names that are not in the known
// list. Unknown names are not an error so new providers can be trialled
// without a loader change.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	valid, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if !slices.Contains(valid, name) {
		slog.Warn("unrecognised provider name",
			"kind", kind, "name", name, "known", valid)
	}
}
