// Package config holds runtime settings for the ayudasync agent.
//
// Sources are applied in order, later ones winning:
// defaults -> JSON file (-c/-config) -> environment (.env aware) -> flags.
package config

import "time"

type Config struct {
	// ServerBaseURL is the origin of the admin application. Requests to any
	// other origin bypass the mutation interceptor.
	ServerBaseURL string

	// RegistrationPath is the endpoint that persists vault credentials
	// server-side. Registration is best-effort; see vault.Registrar.
	RegistrationPath string

	// ProbePath is the endpoint polled to detect connectivity.
	ProbePath     string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// DatabasePath is the local SQLite file holding the vault, the mutation
	// queue and the mirror store.
	DatabasePath string

	// CredentialTTL is the default offline-credential lifetime.
	CredentialTTL time.Duration

	// QueueCapacity caps the mutation queue; the oldest entry is evicted on
	// overflow.
	QueueCapacity int

	// MaxReplayRetries is the per-item retry limit before a flush aborts.
	MaxReplayRetries int

	// ReplayBackoff is the base delay between retries of the same item; the
	// actual delay grows with the retry count.
	ReplayBackoff time.Duration

	// CSRFToken is the anti-forgery token used when calling the
	// registration endpoint. When empty, registration is silently skipped.
	CSRFToken string

	// DefaultRedirect is the resume URL after an offline login when no
	// last-visited path was recorded.
	DefaultRedirect string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000"
	c.RegistrationPath = "/api/credenciales/registrar/"
	c.ProbePath = "/api/ping/"
	c.ProbeInterval = 15 * time.Second
	c.ProbeTimeout = 3 * time.Second
	c.DatabasePath = "ayudasync.db"
	c.CredentialTTL = 72 * time.Hour
	c.QueueCapacity = 200
	c.MaxReplayRetries = 3
	c.ReplayBackoff = 2 * time.Second
	c.DefaultRedirect = "/"
}

// Load constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables, and command-line flags. Later
// sources take precedence over earlier ones.
func Load() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
