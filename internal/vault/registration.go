package vault

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dcornejo/ayudasync/internal/logging"
)

// ErrNoCSRFToken means no anti-forgery token is available; registration is
// skipped silently and retried on a later bootstrap.
var ErrNoCSRFToken = errors.New("no csrf token available")

// TokenSource supplies the anti-forgery token required by the registration
// endpoint. In the browser this comes from a meta tag or cookie; the agent
// reads it from configuration.
type TokenSource interface {
	CSRFToken(ctx context.Context) string
}

// StaticTokenSource is a TokenSource backed by a fixed string.
type StaticTokenSource string

func (s StaticTokenSource) CSRFToken(ctx context.Context) string { return string(s) }

// RegistrationPayload is what the server needs to honor this device's
// offline credentials.
type RegistrationPayload struct {
	Username       string            `json:"username"`
	CredentialHash string            `json:"credential_hash"`
	Salt           string            `json:"salt"`
	ExpiresAt      time.Time         `json:"expires_at"`
	DeviceID       string            `json:"device_id"`
	Permisos       []string          `json:"permisos"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type registrationResponse struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Registrar POSTs pending credentials to the server registration endpoint.
// Registration is a best-effort optimization: the credential already works
// locally, so every failure is recorded and retried rather than surfaced.
type Registrar struct {
	endpoint string
	client   *http.Client
	tokens   TokenSource
	log      logging.Logger
}

func NewRegistrar(endpoint string, tokens TokenSource, log logging.Logger) *Registrar {
	return &Registrar{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		tokens:   tokens,
		log:      log,
	}
}

// Register sends one credential to the server. On success it returns the
// server-adjusted expiry, when the response carries one.
func (r *Registrar) Register(ctx context.Context, p RegistrationPayload) (*time.Time, error) {
	token := r.tokens.CSRFToken(ctx)
	if token == "" {
		return nil, ErrNoCSRFToken
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRFToken", token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("registration rejected: %s", resp.Status)
	}

	var rr registrationResponse
	if data, err := io.ReadAll(resp.Body); err == nil && len(data) > 0 {
		// A malformed success body is ignored; 2xx already confirmed.
		_ = json.Unmarshal(data, &rr)
	}
	return rr.ExpiresAt, nil
}

// RegisterPendingSessions pushes every credential flagged pending to the
// server. Failures leave the flag set and record the error on the entry;
// nothing here is fatal. A no-op when offline or when no registrar is
// configured.
func (m *Manager) RegisterPendingSessions(ctx context.Context) {
	if m.registrar == nil || !m.net.Online() {
		return
	}

	m.mu.Lock()
	doc := m.loadDocument(ctx)
	deviceID := doc.DeviceID
	var pending []string
	for key, cred := range doc.Users {
		if cred.PendingRegistration {
			pending = append(pending, key)
		}
	}
	m.mu.Unlock()

	for _, key := range pending {
		m.registerOne(ctx, key, deviceID)
	}
}

func (m *Manager) registerOne(ctx context.Context, key, deviceID string) {
	m.mu.Lock()
	doc := m.loadDocument(ctx)
	cred, ok := doc.Users[key]
	if !ok || !cred.PendingRegistration {
		m.mu.Unlock()
		return
	}
	payload := RegistrationPayload{
		Username:       cred.Username,
		CredentialHash: hex.EncodeToString(cred.Hash),
		Salt:           hex.EncodeToString(cred.Salt),
		ExpiresAt:      cred.ExpiresAt,
		DeviceID:       deviceID,
		Metadata:       map[string]string{"source": "ayudasync"},
	}
	if cred.Profile != nil {
		payload.Permisos = cred.Profile.Permisos
	}
	m.mu.Unlock()

	// Network call happens outside the lock.
	newExpiry, err := m.registrar.Register(ctx, payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	doc = m.loadDocument(ctx)
	cred, ok = doc.Users[key]
	if !ok {
		return
	}

	switch {
	case errors.Is(err, ErrNoCSRFToken):
		// Silently skipped; flag stays for the next bootstrap.
		return
	case err != nil:
		cred.LastError = err.Error()
		m.log.Warn(ctx, "credential registration failed", "username", key, "error", err)
	default:
		cred.PendingRegistration = false
		cred.LastError = ""
		if newExpiry != nil {
			cred.ExpiresAt = *newExpiry
		}
		m.log.Info(ctx, "credential registered", "username", key)
	}
	m.saveDocument(ctx, doc)
}
