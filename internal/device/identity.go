// Package device provides the stable per-installation device identifier
// used by the vault (credential registration) and the mutation queue
// (idempotency hints).
package device

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/dcornejo/ayudasync/internal/docstore"
	"github.com/dcornejo/ayudasync/internal/logging"
	"github.com/google/uuid"
)

const docKey = "device_id"

// Manager generates the identifier once and persists it. DeviceID never
// fails: a broken persistence layer yields a fresh, non-persisted id instead
// of an error, so callers can treat the identity as always available.
type Manager struct {
	docs docstore.Store
	log  logging.Logger

	mu     sync.Mutex
	cached string
}

func NewManager(docs docstore.Store, log logging.Logger) *Manager {
	return &Manager{docs: docs, log: log}
}

// DeviceID returns the persistent device identifier, generating and storing
// it on first use.
func (m *Manager) DeviceID(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != "" {
		return m.cached
	}

	if data, err := m.docs.Get(ctx, docKey); err != nil {
		m.log.Warn(ctx, "device id read failed, using ephemeral id", "error", err)
	} else if len(data) > 0 {
		m.cached = string(data)
		return m.cached
	}

	id := newID()
	if err := m.docs.Put(ctx, docKey, []byte(id)); err != nil {
		m.log.Warn(ctx, "device id not persisted", "error", err)
	}
	m.cached = id
	return id
}

// newID returns a v4 UUID string, preferring the crypto-strong source and
// falling back to a pseudo-random value with the same shape.
func newID() string {
	if u, err := uuid.NewRandom(); err == nil {
		return u.String()
	}
	return pseudoUUID()
}

func pseudoUUID() string {
	var b [16]byte
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
