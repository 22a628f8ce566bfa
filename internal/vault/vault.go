// Package vault implements the offline credential vault and session
// manager: salted password hashes per identity, locally issued sessions,
// and opportunistic server-side registration of pending credentials.
//
// Availability beats strictness here: every persistence failure is swallowed
// and logged, because an incognito profile or a full storage quota must
// degrade to "offline login unavailable", never crash the login flow. The
// mirror store takes the opposite stance; see package mirror.
package vault

import (
	"context"
	"sync"
	"time"

	"github.com/dcornejo/ayudasync/internal/common"
	"github.com/dcornejo/ayudasync/internal/cryptox"
	"github.com/dcornejo/ayudasync/internal/device"
	"github.com/dcornejo/ayudasync/internal/docstore"
	"github.com/dcornejo/ayudasync/internal/logging"
)

const (
	docKeyVault    = "vault"
	docKeySession  = "session"
	docKeyLastPath = "last_path"

	documentVersion = 1

	// DefaultTTL is the credential lifetime when StoreCredential receives
	// no override.
	DefaultTTL = 72 * time.Hour

	// maxAliases bounds the alias set per credential; the oldest alias is
	// evicted first.
	maxAliases = 5
)

// Profile is the cached snapshot of the last-known server profile for an
// identity. It lets the UI greet the user and gate admin-only screens while
// offline; the server remains the authority.
type Profile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	IsAdmin     bool     `json:"is_admin,omitempty"`
	IsStaff     bool     `json:"is_staff,omitempty"`
	Permisos    []string `json:"permisos,omitempty"`
}

// Credential is one vault entry, keyed by the normalized identity it was
// first stored under. The hash is an argon2id digest; verification always
// recomputes it over (salt, candidate password).
type Credential struct {
	Username            string    `json:"username"`
	Salt                []byte    `json:"salt"`
	Hash                []byte    `json:"hash"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	Aliases             []string  `json:"aliases,omitempty"`
	Profile             *Profile  `json:"profile,omitempty"`
	PendingRegistration bool      `json:"pending_registration"`
	LastError           string    `json:"last_error,omitempty"`
}

// document is the single persisted vault document.
type document struct {
	Version  int                    `json:"version"`
	DeviceID string                 `json:"device_id"`
	Users    map[string]*Credential `json:"users"`
}

// Connectivity is the slice of netstate.Monitor the vault needs.
type Connectivity interface {
	Online() bool
}

// Manager owns the vault document, the active session and the registration
// flow. All document mutations are read-modify-persist cycles under mu, so
// state stays consistent across interleavings and restarts.
type Manager struct {
	docs      docstore.Store
	device    *device.Manager
	registrar *Registrar
	net       Connectivity
	log       logging.Logger

	ttl             time.Duration
	defaultRedirect string
	now             func() time.Time

	mu     sync.Mutex
	secret []byte // session signing secret, lazily loaded
}

type Option func(*Manager)

// WithTTL overrides the default credential lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithDefaultRedirect sets the resume URL used when no last-visited path is
// recorded.
func WithDefaultRedirect(path string) Option {
	return func(m *Manager) { m.defaultRedirect = path }
}

// WithRegistrar enables server-side credential registration.
func WithRegistrar(r *Registrar) Option {
	return func(m *Manager) { m.registrar = r }
}

// WithClock replaces the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(docs docstore.Store, dev *device.Manager, net Connectivity, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		docs:            docs,
		device:          dev,
		net:             net,
		log:             log,
		ttl:             DefaultTTL,
		defaultRedirect: "/",
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StoreOptions tunes StoreCredential.
type StoreOptions struct {
	// TTL overrides the default credential lifetime when positive.
	TTL time.Duration

	// Profile, when set, is cached on the credential and an active session
	// is established immediately, so the caller can keep working offline
	// without a server round-trip.
	Profile *Profile
}

// StoredCredential reports the outcome of StoreCredential.
type StoredCredential struct {
	Hash      []byte
	Salt      []byte
	ExpiresAt time.Time
}

// StoreCredential creates or refreshes the vault entry for identity. An
// existing entry keeps its salt; a new one gets a fresh random salt. The
// entry is flagged pending registration so the next online bootstrap pushes
// it to the server.
func (m *Manager) StoreCredential(ctx context.Context, identity string, password []byte, opts *StoreOptions) (*StoredCredential, error) {
	id := common.NormalizeIdentity(identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadDocument(ctx)

	key, cred := resolveCredential(doc, id)
	now := m.now()
	if cred == nil {
		key = id
		cred = &Credential{
			Username:  id,
			Salt:      cryptox.GenerateSalt(),
			CreatedAt: now,
		}
		doc.Users[key] = cred
	}

	ttl := m.ttl
	if opts != nil && opts.TTL > 0 {
		ttl = opts.TTL
	}

	cred.Hash = cryptox.HashCredential(password, cred.Salt)
	cred.UpdatedAt = now
	cred.ExpiresAt = now.Add(ttl)
	cred.PendingRegistration = true
	cred.Aliases = appendAlias(cred.Aliases, id)
	if opts != nil && opts.Profile != nil {
		cred.Profile = opts.Profile
	}

	m.saveDocument(ctx, doc)

	if opts != nil && opts.Profile != nil {
		m.establishSession(ctx, key, cred)
	}

	return &StoredCredential{Hash: cred.Hash, Salt: cred.Salt, ExpiresAt: cred.ExpiresAt}, nil
}

// LoginResult is returned by a successful offline login.
type LoginResult struct {
	Profile     *Profile
	RedirectURL string
}

// TryOfflineLogin authenticates identity against the vault without any
// server contact. Expired entries are purged on lookup. The redirect target
// is the last path visited on this device, else the configured default.
func (m *Manager) TryOfflineLogin(ctx context.Context, identity string, password []byte) (*LoginResult, error) {
	id := common.NormalizeIdentity(identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadDocument(ctx)

	key, cred := resolveCredential(doc, id)
	if cred == nil {
		return nil, common.ErrNotFound
	}

	if m.now().After(cred.ExpiresAt) {
		delete(doc.Users, key)
		m.saveDocument(ctx, doc)
		m.clearSession(ctx)
		return nil, common.ErrExpired
	}

	if !cryptox.VerifyCredential(cred.Hash, password, cred.Salt) {
		return nil, common.ErrInvalidCredentials
	}

	m.establishSession(ctx, key, cred)

	return &LoginResult{Profile: cred.Profile, RedirectURL: m.lastVisitedPath(ctx)}, nil
}

// GetCredential looks up a credential by identity or alias.
func (m *Manager) GetCredential(ctx context.Context, identity string) (*Credential, error) {
	id := common.NormalizeIdentity(identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadDocument(ctx)
	_, cred := resolveCredential(doc, id)
	if cred == nil {
		return nil, common.ErrNotFound
	}
	return cred, nil
}

// RemoveCredential deletes the entry for identity (resolved through aliases)
// and clears any active session tied to it.
func (m *Manager) RemoveCredential(ctx context.Context, identity string) error {
	id := common.NormalizeIdentity(identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadDocument(ctx)
	key, cred := resolveCredential(doc, id)
	if cred == nil {
		return common.ErrNotFound
	}

	delete(doc.Users, key)
	m.saveDocument(ctx, doc)

	if s := m.activeSession(ctx); s != nil && s.Username == key {
		m.clearSession(ctx)
	}
	return nil
}

// SyncUserInfo merges authoritative server profile data into the matching
// credential's snapshot, registers the normalized email as an alias, and
// refreshes the live session snapshot when one belongs to that identity.
// A profile with no matching credential is a no-op.
func (m *Manager) SyncUserInfo(ctx context.Context, p Profile) {
	id := common.NormalizeIdentity(p.Username)
	if id == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.loadDocument(ctx)
	key, cred := resolveCredential(doc, id)
	if cred == nil {
		return
	}

	snapshot := p
	cred.Profile = &snapshot
	if email := common.NormalizeIdentity(p.Email); email != "" {
		cred.Aliases = appendAlias(cred.Aliases, email)
	}
	m.saveDocument(ctx, doc)

	if s := m.activeSession(ctx); s != nil && s.Username == key {
		s.Profile = &snapshot
		m.saveSession(ctx, s)
	}
}

// SetLastVisitedPath records the most recent navigation target; it is used
// only as the offline-login redirect. Failures are swallowed.
func (m *Manager) SetLastVisitedPath(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := m.docs.Put(ctx, docKeyLastPath, []byte(path)); err != nil {
		m.log.Warn(ctx, "last path not persisted", "error", err)
	}
}

func (m *Manager) lastVisitedPath(ctx context.Context) string {
	data, err := m.docs.Get(ctx, docKeyLastPath)
	if err != nil {
		m.log.Warn(ctx, "last path read failed", "error", err)
		return m.defaultRedirect
	}
	if len(data) == 0 {
		return m.defaultRedirect
	}
	return string(data)
}

// loadDocument reads the vault document, returning an empty document when
// absent or unreadable. The caller holds mu.
func (m *Manager) loadDocument(ctx context.Context) *document {
	doc := &document{Version: documentVersion, Users: map[string]*Credential{}}
	ok, err := docstore.GetJSON(ctx, m.docs, docKeyVault, doc)
	if err != nil {
		m.log.Warn(ctx, "vault document unreadable, starting empty", "error", err)
	}
	if !ok || doc.Users == nil {
		doc.Users = map[string]*Credential{}
	}
	if doc.DeviceID == "" {
		doc.DeviceID = m.device.DeviceID(ctx)
	}
	return doc
}

// saveDocument persists the vault document, swallowing storage errors.
func (m *Manager) saveDocument(ctx context.Context, doc *document) {
	if err := docstore.PutJSON(ctx, m.docs, docKeyVault, doc); err != nil {
		m.log.Warn(ctx, "vault document not persisted", "error", err)
	}
}

// resolveCredential finds a credential by canonical key or by alias.
func resolveCredential(doc *document, identity string) (string, *Credential) {
	if cred, ok := doc.Users[identity]; ok {
		return identity, cred
	}
	for key, cred := range doc.Users {
		for _, alias := range cred.Aliases {
			if alias == identity {
				return key, cred
			}
		}
	}
	return "", nil
}

// appendAlias adds alias to the set, keeping insertion order and evicting
// the oldest entry past maxAliases. Re-adding an existing alias is a no-op.
func appendAlias(aliases []string, alias string) []string {
	for _, a := range aliases {
		if a == alias {
			return aliases
		}
	}
	aliases = append(aliases, alias)
	if len(aliases) > maxAliases {
		aliases = aliases[len(aliases)-maxAliases:]
	}
	return aliases
}
