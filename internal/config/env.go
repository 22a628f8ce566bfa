package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays cfg with AYUDASYNC_* environment variables. A .env file
// in the working directory is honored when present; a missing one is fine.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("AYUDASYNC_SERVER_URL"); v != "" {
		cfg.ServerBaseURL = v
	}
	if v := os.Getenv("AYUDASYNC_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("AYUDASYNC_CSRF_TOKEN"); v != "" {
		cfg.CSRFToken = v
	}
	if v := os.Getenv("AYUDASYNC_CREDENTIAL_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CredentialTTL = d
		}
	}
	if v := os.Getenv("AYUDASYNC_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.QueueCapacity = n
		}
	}
}
