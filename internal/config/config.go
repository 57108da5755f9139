package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the aria control-panel service.
type Config struct {
	BindAddr         string        `yaml:"bind_addr"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
	LogLevel         string        `yaml:"log_level"`

	AllowAnyOrigin bool `yaml:"allow_any_origin"`

	// 0 disables inactivity expiry; a session may sit in listening forever.
	SessionInactivityTimeout time.Duration `yaml:"session_inactivity_timeout"`
	TranscriptCap            int           `yaml:"transcript_cap"`
	SubscriberBuffer         int           `yaml:"subscriber_buffer"`

	SpeechProvider string `yaml:"speech_provider"`

	ElevenLabsAPIKey       string        `yaml:"elevenlabs_api_key"`
	ElevenLabsBaseURL      string        `yaml:"elevenlabs_base_url"`
	ElevenLabsVoiceID      string        `yaml:"elevenlabs_voice_id"`
	ElevenLabsModelID      string        `yaml:"elevenlabs_model_id"`
	ElevenLabsOutputFormat string        `yaml:"elevenlabs_output_format"`
	SpeechAttemptTimeout   time.Duration `yaml:"speech_attempt_timeout"`
	SpeechMaxAttempts      int           `yaml:"speech_max_attempts"`

	LocalTTSCLI   string `yaml:"local_tts_cli"`
	LocalTTSVoice string `yaml:"local_tts_voice"`

	CalendarMode            string        `yaml:"calendar_mode"`
	CalendarCredentialsFile string        `yaml:"calendar_credentials_file"`
	CalendarTokenFile       string        `yaml:"calendar_token_file"`
	CalendarID              string        `yaml:"calendar_id"`
	CalendarLookupTimeout   time.Duration `yaml:"calendar_lookup_timeout"`

	AuthSecret   string        `yaml:"auth_secret"`
	AuthTokenTTL time.Duration `yaml:"auth_token_ttl"`

	DatabaseURL string `yaml:"database_url"`
}

// Load reads the optional ARIA_CONFIG yaml file, layers environment
// variables on top, and applies safe defaults.
func Load() (Config, error) {
	cfg := defaults()

	if path := envTrimmed("ARIA_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.BindAddr = envOrDefault("ARIA_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("ARIA_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.LogLevel = envOrDefault("ARIA_LOG_LEVEL", cfg.LogLevel)
	cfg.SpeechProvider = envOrDefault("SPEECH_PROVIDER", cfg.SpeechProvider)
	cfg.ElevenLabsBaseURL = envOrDefault("ELEVENLABS_BASE_URL", cfg.ElevenLabsBaseURL)
	cfg.ElevenLabsVoiceID = envOrDefault("ELEVENLABS_VOICE_ID", cfg.ElevenLabsVoiceID)
	cfg.ElevenLabsModelID = envOrDefault("ELEVENLABS_MODEL_ID", cfg.ElevenLabsModelID)
	cfg.ElevenLabsOutputFormat = envOrDefault("ELEVENLABS_OUTPUT_FORMAT", cfg.ElevenLabsOutputFormat)
	cfg.LocalTTSCLI = envOrDefault("LOCAL_TTS_CLI", cfg.LocalTTSCLI)
	cfg.LocalTTSVoice = envOrDefault("LOCAL_TTS_VOICE", cfg.LocalTTSVoice)
	cfg.CalendarMode = envOrDefault("CALENDAR_MODE", cfg.CalendarMode)
	cfg.CalendarCredentialsFile = envOrDefault("CALENDAR_CREDENTIALS_FILE", cfg.CalendarCredentialsFile)
	cfg.CalendarTokenFile = envOrDefault("CALENDAR_TOKEN_FILE", cfg.CalendarTokenFile)
	cfg.CalendarID = envOrDefault("CALENDAR_ID", cfg.CalendarID)
	if v := envTrimmed("ELEVENLABS_API_KEY"); v != "" {
		cfg.ElevenLabsAPIKey = v
	}
	if v := envTrimmed("ARIA_AUTH_SECRET"); v != "" {
		cfg.AuthSecret = v
	}
	if v := envTrimmed("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("ARIA_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("ARIA_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechAttemptTimeout, err = durationFromEnv("SPEECH_ATTEMPT_TIMEOUT", cfg.SpeechAttemptTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CalendarLookupTimeout, err = durationFromEnv("CALENDAR_LOOKUP_TIMEOUT", cfg.CalendarLookupTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AuthTokenTTL, err = durationFromEnv("ARIA_AUTH_TOKEN_TTL", cfg.AuthTokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscriptCap, err = intFromEnv("ARIA_TRANSCRIPT_CAP", cfg.TranscriptCap)
	if err != nil {
		return Config{}, err
	}
	cfg.SubscriberBuffer, err = intFromEnv("ARIA_SUBSCRIBER_BUFFER", cfg.SubscriberBuffer)
	if err != nil {
		return Config{}, err
	}
	cfg.SpeechMaxAttempts, err = intFromEnv("SPEECH_MAX_ATTEMPTS", cfg.SpeechMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("ARIA_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.TranscriptCap <= 0 {
		return Config{}, fmt.Errorf("ARIA_TRANSCRIPT_CAP must be positive")
	}
	if cfg.SubscriberBuffer <= 0 {
		return Config{}, fmt.Errorf("ARIA_SUBSCRIBER_BUFFER must be positive")
	}
	if cfg.SpeechMaxAttempts <= 0 {
		return Config{}, fmt.Errorf("SPEECH_MAX_ATTEMPTS must be positive")
	}
	if cfg.SpeechAttemptTimeout < time.Second {
		return Config{}, fmt.Errorf("SPEECH_ATTEMPT_TIMEOUT must be at least 1s")
	}
	if cfg.SessionInactivityTimeout != 0 && cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("ARIA_SESSION_INACTIVITY_TIMEOUT must be 0 or at least 5s")
	}
	if strings.TrimSpace(cfg.AuthSecret) == "" {
		return Config{}, fmt.Errorf("ARIA_AUTH_SECRET is required")
	}

	return cfg, nil
}

func defaults() Config {
	return Config{
		BindAddr:         ":8080",
		ShutdownTimeout:  15 * time.Second,
		MetricsNamespace: "aria",
		LogLevel:         "info",

		SessionInactivityTimeout: 0,
		TranscriptCap:            200,
		SubscriberBuffer:         64,

		SpeechProvider: "auto",

		ElevenLabsBaseURL: "https://api.elevenlabs.io",
		// Rachel, the stock premade voice.
		ElevenLabsVoiceID:      "21m00Tcm4TlvDq8ikWAM",
		ElevenLabsModelID:      "eleven_multilingual_v2",
		ElevenLabsOutputFormat: "mp3_44100_128",
		SpeechAttemptTimeout:   10 * time.Second,
		SpeechMaxAttempts:      3,

		LocalTTSCLI:   "espeak-ng",
		LocalTTSVoice: "en-us",

		CalendarMode:            "auto",
		CalendarCredentialsFile: "credentials.json",
		CalendarTokenFile:       "token.json",
		CalendarID:              "primary",
		CalendarLookupTimeout:   10 * time.Second,

		AuthTokenTTL: 24 * time.Hour,
	}
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
