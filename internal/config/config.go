// Package config provides the configuration schema and loader for the Bat
// Computer voice assistant.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ProfileStore selects where enrolled voice profiles live.
type ProfileStore string

const (
	// StoreMemory keeps profiles in process memory. Enrollments are lost
	// on restart.
	StoreMemory ProfileStore = "memory"

	// StorePostgres persists profiles in PostgreSQL with pgvector.
	StorePostgres ProfileStore = "postgres"
)

// IsValid reports whether p is a recognised profile store.
func (p ProfileStore) IsValid() bool {
	return p == StoreMemory || p == StorePostgres
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Capture   CaptureConfig     `yaml:"capture"`
	Providers ProvidersConfig   `yaml:"providers"`
	Weather   WeatherConfig     `yaml:"weather"`
	Auth      AuthConfig        `yaml:"auth"`
	Session   SessionConfig     `yaml:"session"`
	Devices   map[string]string `yaml:"devices"`
}

// ServerConfig holds the admin endpoint and logging settings.
type ServerConfig struct {
	// AdminAddr is the TCP address the admin HTTP server (health, metrics)
	// listens on (e.g., ":8080"). Empty disables the admin server.
	AdminAddr string `yaml:"admin_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig holds microphone settings.
type CaptureConfig struct {
	// SampleRate is the capture sample rate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// BufferSize is the capture chunk size in samples. Default 1024.
	BufferSize int `yaml:"buffer_size"`
}

// ProvidersConfig declares which implementation serves each pipeline stage.
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the implementation (e.g., "whisper", "deepgram",
	// "coqui", "console").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted providers.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint, or points at the
	// local server for self-hosted providers.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider. For whisper this is the
	// path to the ggml model file.
	Model string `yaml:"model"`

	// Language is the BCP-47 recognition or synthesis language.
	Language string `yaml:"language"`
}

// WeatherConfig holds the OpenWeatherMap credentials.
type WeatherConfig struct {
	// APIKey authenticates weather lookups. Empty disables the weather
	// command with a spoken unavailability notice.
	APIKey string `yaml:"api_key"`
}

// AuthConfig holds voice authentication settings.
type AuthConfig struct {
	// Threshold is the minimum weighted similarity for a voice match.
	// Default 0.85.
	Threshold float64 `yaml:"threshold"`

	// ProfileStore selects where profiles are kept. Default "memory".
	ProfileStore ProfileStore `yaml:"profile_store"`

	// PostgresDSN is the connection string for the postgres profile store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// SampleSeconds is the challenge recording length. Default 5.
	SampleSeconds float64 `yaml:"sample_seconds"`
}

// SessionConfig holds listening session restart behaviour.
type SessionConfig struct {
	// BackoffMS is the fixed restart delay in milliseconds after a stream
	// failure; every recovery cycle waits the same interval. Default 1000.
	BackoffMS int `yaml:"backoff_ms"`
}
