package vault

import "context"

// AuthSource says where the adopted auth state came from.
type AuthSource string

const (
	SourceNone    AuthSource = "none"
	SourceSession AuthSource = "session"
	SourceServer  AuthSource = "server"
)

// ServerAuthState is what the page load learned from the server, if it was
// reachable at all.
type ServerAuthState struct {
	Authenticated bool
	Profile       *Profile
}

// AuthState is the reconciled auth state for this page load.
type AuthState struct {
	Authenticated bool
	Source        AuthSource
	Session       *Session
	Profile       *Profile
}

// Bootstrap reconciles local and server auth state once per page load.
//
// Priority order:
//  1. A non-expired local session wins regardless of connectivity, so a
//     network flicker never logs the user out mid-work. When online, the
//     profile is synced and pending registrations are flushed as a side
//     effect.
//  2. No session and offline: stay unauthenticated for this load.
//  3. Online with a server-authenticated user: adopt it and sync/flush.
//  4. Online with no server user: clear any stale local session.
func (m *Manager) Bootstrap(ctx context.Context, server *ServerAuthState) *AuthState {
	if s := m.ActiveSession(ctx); s != nil {
		if m.net.Online() {
			if server != nil && server.Profile != nil {
				m.SyncUserInfo(ctx, *server.Profile)
				s = m.ActiveSession(ctx) // pick up the refreshed snapshot
			}
			m.RegisterPendingSessions(ctx)
		}
		return &AuthState{Authenticated: true, Source: SourceSession, Session: s, Profile: s.Profile}
	}

	if !m.net.Online() {
		return &AuthState{Source: SourceNone}
	}

	if server != nil && server.Authenticated {
		if server.Profile != nil {
			m.SyncUserInfo(ctx, *server.Profile)
		}
		m.RegisterPendingSessions(ctx)
		return &AuthState{Authenticated: true, Source: SourceServer, Profile: server.Profile}
	}

	m.Logout(ctx)
	return &AuthState{Source: SourceNone}
}
