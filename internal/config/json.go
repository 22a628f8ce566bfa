package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dcornejo/ayudasync/internal/flagx"
	"github.com/dcornejo/ayudasync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations may
// be given either as strings like "15s" or as integer nanoseconds.
type JsonConfig struct {
	ServerBaseURL    string         `json:"server_base_url"`
	RegistrationPath string         `json:"registration_path"`
	ProbePath        string         `json:"probe_path"`
	ProbeInterval    timex.Duration `json:"probe_interval"`
	ProbeTimeout     timex.Duration `json:"probe_timeout"`
	DatabasePath     string         `json:"database_path"`
	CredentialTTL    timex.Duration `json:"credential_ttl"`
	QueueCapacity    int            `json:"queue_capacity"`
	MaxReplayRetries int            `json:"max_replay_retries"`
	ReplayBackoff    timex.Duration `json:"replay_backoff"`
	DefaultRedirect  string         `json:"default_redirect"`
}

// parseJson overlays cfg with values from the JSON file given via -c/-config.
// Missing file path means no JSON is loaded. Read or unmarshal errors panic;
// a broken config file should stop startup.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.RegistrationPath != "" {
		cfg.RegistrationPath = jc.RegistrationPath
	}
	if jc.ProbePath != "" {
		cfg.ProbePath = jc.ProbePath
	}
	if jc.ProbeInterval.Duration != 0 {
		cfg.ProbeInterval = time.Duration(jc.ProbeInterval.Duration)
	}
	if jc.ProbeTimeout.Duration != 0 {
		cfg.ProbeTimeout = time.Duration(jc.ProbeTimeout.Duration)
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.CredentialTTL.Duration != 0 {
		cfg.CredentialTTL = time.Duration(jc.CredentialTTL.Duration)
	}
	if jc.QueueCapacity != 0 {
		cfg.QueueCapacity = jc.QueueCapacity
	}
	if jc.MaxReplayRetries != 0 {
		cfg.MaxReplayRetries = jc.MaxReplayRetries
	}
	if jc.ReplayBackoff.Duration != 0 {
		cfg.ReplayBackoff = time.Duration(jc.ReplayBackoff.Duration)
	}
	if jc.DefaultRedirect != "" {
		cfg.DefaultRedirect = jc.DefaultRedirect
	}
}
