package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  admin_addr: ":8080"
  log_level: debug
capture:
  sample_rate: 16000
  buffer_size: 1024
providers:
  stt:
    name: whisper
    model: models/ggml-base.en.bin
    language: en
  tts:
    name: console
weather:
  api_key: "owm-key"
auth:
  threshold: 0.85
  profile_store: memory
  sample_seconds: 5
session:
  backoff_ms: 1000
devices:
  lights: "OFF"
  security: "ARMED"
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.AdminAddr != ":8080" {
		t.Errorf("AdminAddr = %q; want :8080", cfg.Server.AdminAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q; want debug", cfg.Server.LogLevel)
	}
	if cfg.Capture.SampleRate != 16000 || cfg.Capture.BufferSize != 1024 {
		t.Errorf("Capture = %+v; want 16000/1024", cfg.Capture)
	}
	if cfg.Providers.STT.Name != "whisper" || cfg.Providers.STT.Model != "models/ggml-base.en.bin" {
		t.Errorf("STT = %+v", cfg.Providers.STT)
	}
	if cfg.Auth.Threshold != 0.85 || cfg.Auth.ProfileStore != StoreMemory {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Session.BackoffMS != 1000 {
		t.Errorf("Session = %+v; want backoff 1000", cfg.Session)
	}
	if cfg.Devices["lights"] != "OFF" || cfg.Devices["security"] != "ARMED" {
		t.Errorf("Devices = %v", cfg.Devices)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("server:\n  listen_addr: \":8080\"\n"))
	if err == nil {
		t.Fatal("LoadFromReader err = nil; want unknown-field error")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Capture.SampleRate = -1
	cfg.Providers.STT.Name = "whisper" // no model set
	cfg.Providers.TTS.Name = "coqui"   // no base_url set
	cfg.Auth.Threshold = 1.5
	cfg.Auth.ProfileStore = StorePostgres // no DSN set
	cfg.Session.BackoffMS = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate err = nil; want joined errors")
	}

	for _, fragment := range []string{
		"server.log_level",
		"capture.sample_rate",
		"providers.stt.model",
		"providers.tts.base_url",
		"auth.threshold",
		"auth.postgres_dsn",
		"session.backoff_ms",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Validate error missing %q: %v", fragment, err)
		}
	}
}

func TestValidate_DeepgramRequiresAPIKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Providers.STT.Name = "deepgram"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "providers.stt.api_key") {
		t.Errorf("Validate = %v; want deepgram api_key error", err)
	}
}

func TestValidate_EmptyDeviceState(t *testing.T) {
	t.Parallel()

	cfg := &Config{Devices: map[string]string{"lights": ""}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "devices.lights") {
		t.Errorf("Validate = %v; want empty-state error", err)
	}
}

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	t.Parallel()

	// An empty config relies on defaults everywhere and must pass.
	if err := Validate(&Config{}); err != nil {
		t.Errorf("Validate(zero) = %v; want nil", err)
	}
}
