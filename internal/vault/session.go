package vault

import (
	"context"
	"time"

	"github.com/dcornejo/ayudasync/internal/common"
	"github.com/dcornejo/ayudasync/internal/docstore"
	"github.com/golang-jwt/jwt/v5"
)

const docKeySessionSecret = "session_secret"

// Session is the currently active offline-authenticated session. At most
// one exists at a time. Its lifetime is inherited from the credential that
// produced it, and its token is an HS256 JWT signed with a per-device
// secret, so a tampered session document simply fails validation and is
// treated as absent.
type Session struct {
	Username    string    `json:"username"`
	ActivatedAt time.Time `json:"activated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	DeviceID    string    `json:"device_id"`
	Profile     *Profile  `json:"profile,omitempty"`
	Token       string    `json:"token"`
}

type sessionClaims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

// ActiveSession returns the current valid session, or nil when there is
// none. Invalid or expired session documents are cleared as a side effect.
func (m *Manager) ActiveSession(ctx context.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSession(ctx)
}

// Logout destroys the active session.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearSession(ctx)
}

// establishSession creates and persists a session for the credential.
// The caller holds mu.
func (m *Manager) establishSession(ctx context.Context, key string, cred *Credential) {
	now := m.now()
	deviceID := m.device.DeviceID(ctx)

	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
		},
		DeviceID: deviceID,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.sessionSecret(ctx))
	if err != nil {
		m.log.Warn(ctx, "session token signing failed", "error", err)
		return
	}

	s := &Session{
		Username:    key,
		ActivatedAt: now,
		ExpiresAt:   cred.ExpiresAt,
		DeviceID:    deviceID,
		Profile:     cred.Profile,
		Token:       token,
	}
	m.saveSession(ctx, s)
}

// activeSession loads and validates the persisted session. The caller
// holds mu.
func (m *Manager) activeSession(ctx context.Context) *Session {
	s := &Session{}
	ok, err := docstore.GetJSON(ctx, m.docs, docKeySession, s)
	if err != nil {
		m.log.Warn(ctx, "session document unreadable", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	if m.now().After(s.ExpiresAt) {
		m.clearSession(ctx)
		return nil
	}

	claims := &sessionClaims{}
	_, err = jwt.ParseWithClaims(s.Token, claims,
		func(t *jwt.Token) (any, error) { return m.sessionSecret(ctx), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || claims.Subject != s.Username {
		m.log.Warn(ctx, "session token invalid, clearing", "error", err)
		m.clearSession(ctx)
		return nil
	}

	return s
}

func (m *Manager) saveSession(ctx context.Context, s *Session) {
	if err := docstore.PutJSON(ctx, m.docs, docKeySession, s); err != nil {
		m.log.Warn(ctx, "session not persisted", "error", err)
	}
}

func (m *Manager) clearSession(ctx context.Context) {
	if err := m.docs.Delete(ctx, docKeySession); err != nil {
		m.log.Warn(ctx, "session not cleared", "error", err)
	}
}

// sessionSecret returns the per-device signing secret, generating and
// persisting it on first use. If persistence fails, an in-memory secret is
// used; sessions then simply do not survive a restart.
func (m *Manager) sessionSecret(ctx context.Context) []byte {
	if m.secret != nil {
		return m.secret
	}

	data, err := m.docs.Get(ctx, docKeySessionSecret)
	if err != nil {
		m.log.Warn(ctx, "session secret read failed", "error", err)
	}
	if len(data) > 0 {
		m.secret = data
		return m.secret
	}

	m.secret = common.GenerateRandByteArray(32)
	if err := m.docs.Put(ctx, docKeySessionSecret, m.secret); err != nil {
		m.log.Warn(ctx, "session secret not persisted", "error", err)
	}
	return m.secret
}
