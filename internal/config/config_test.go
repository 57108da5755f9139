package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARIA_AUTH_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.BindAddr)
	require.Equal(t, "aria", cfg.MetricsNamespace)
	require.Equal(t, 200, cfg.TranscriptCap)
	require.Equal(t, 3, cfg.SpeechMaxAttempts)
	require.Equal(t, 10*time.Second, cfg.SpeechAttemptTimeout)
	require.Zero(t, cfg.SessionInactivityTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARIA_AUTH_SECRET", "test-secret")
	t.Setenv("ARIA_BIND_ADDR", ":9090")
	t.Setenv("ARIA_TRANSCRIPT_CAP", "25")
	t.Setenv("SPEECH_MAX_ATTEMPTS", "5")
	t.Setenv("ARIA_SESSION_INACTIVITY_TIMEOUT", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 25, cfg.TranscriptCap)
	require.Equal(t, 5, cfg.SpeechMaxAttempts)
	require.Equal(t, 2*time.Minute, cfg.SessionInactivityTimeout)
}

func TestLoadConfigFileThenEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aria.yaml")
	body := "bind_addr: \":7070\"\nmetrics_namespace: file_ns\nauth_secret: file-secret\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("ARIA_CONFIG", path)
	t.Setenv("ARIA_METRICS_NAMESPACE", "env_ns")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.BindAddr)
	require.Equal(t, "env_ns", cfg.MetricsNamespace)
	require.Equal(t, "file-secret", cfg.AuthSecret)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"zero transcript cap", "ARIA_TRANSCRIPT_CAP", "0"},
		{"bad bool", "ARIA_ALLOW_ANY_ORIGIN", "maybe"},
		{"bad duration", "ARIA_SHUTDOWN_TIMEOUT", "soon"},
		{"short inactivity", "ARIA_SESSION_INACTIVITY_TIMEOUT", "1s"},
		{"zero attempts", "SPEECH_MAX_ATTEMPTS", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ARIA_AUTH_SECRET", "test-secret")
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadRequiresAuthSecret(t *testing.T) {
	t.Setenv("ARIA_AUTH_SECRET", "")
	_, err := Load()
	require.Error(t, err)
}
