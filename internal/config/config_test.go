package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	require.Equal(t, "http://127.0.0.1:8000", cfg.ServerBaseURL)
	require.Equal(t, "/api/credenciales/registrar/", cfg.RegistrationPath)
	require.Equal(t, "/api/ping/", cfg.ProbePath)
	require.Equal(t, 15*time.Second, cfg.ProbeInterval)
	require.Equal(t, "ayudasync.db", cfg.DatabasePath)
	require.Equal(t, 72*time.Hour, cfg.CredentialTTL)
	require.Equal(t, 200, cfg.QueueCapacity)
	require.Equal(t, 3, cfg.MaxReplayRetries)
	require.Equal(t, 2*time.Second, cfg.ReplayBackoff)
	require.Equal(t, "/", cfg.DefaultRedirect)
}

func TestParseEnv_Overrides(t *testing.T) {
	t.Setenv("AYUDASYNC_SERVER_URL", "https://admin.example.org")
	t.Setenv("AYUDASYNC_DB_PATH", "/tmp/test.db")
	t.Setenv("AYUDASYNC_CSRF_TOKEN", "tok-1")
	t.Setenv("AYUDASYNC_CREDENTIAL_TTL", "24h")
	t.Setenv("AYUDASYNC_QUEUE_CAPACITY", "50")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	require.Equal(t, "https://admin.example.org", cfg.ServerBaseURL)
	require.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	require.Equal(t, "tok-1", cfg.CSRFToken)
	require.Equal(t, 24*time.Hour, cfg.CredentialTTL)
	require.Equal(t, 50, cfg.QueueCapacity)
}

func TestParseEnv_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("AYUDASYNC_CREDENTIAL_TTL", "soon")
	t.Setenv("AYUDASYNC_QUEUE_CAPACITY", "-5")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	require.Equal(t, 72*time.Hour, cfg.CredentialTTL)
	require.Equal(t, 200, cfg.QueueCapacity)
}
