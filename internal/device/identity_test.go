package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dcornejo/ayudasync/internal/logging"
)

type memDocs struct {
	m map[string][]byte
}

func newMemDocs() *memDocs { return &memDocs{m: map[string][]byte{}} }

func (s *memDocs) Get(_ context.Context, key string) ([]byte, error) { return s.m[key], nil }
func (s *memDocs) Put(_ context.Context, key string, value []byte) error {
	s.m[key] = value
	return nil
}
func (s *memDocs) Delete(_ context.Context, key string) error {
	delete(s.m, key)
	return nil
}
func (s *memDocs) Clear(_ context.Context) error {
	s.m = map[string][]byte{}
	return nil
}

type brokenDocs struct{}

func (brokenDocs) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage unavailable")
}
func (brokenDocs) Put(context.Context, string, []byte) error {
	return errors.New("storage unavailable")
}
func (brokenDocs) Delete(context.Context, string) error { return errors.New("storage unavailable") }
func (brokenDocs) Clear(context.Context) error          { return errors.New("storage unavailable") }

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDeviceID_StableAcrossManagers(t *testing.T) {
	ctx := context.Background()
	docs := newMemDocs()

	id1 := NewManager(docs, testLogger()).DeviceID(ctx)
	id2 := NewManager(docs, testLogger()).DeviceID(ctx)

	require.NotEmpty(t, id1)
	require.Equal(t, id1, id2)

	_, err := uuid.Parse(id1)
	require.NoError(t, err)
}

func TestDeviceID_DistinctStoresDiverge(t *testing.T) {
	ctx := context.Background()

	id1 := NewManager(newMemDocs(), testLogger()).DeviceID(ctx)
	id2 := NewManager(newMemDocs(), testLogger()).DeviceID(ctx)

	require.NotEqual(t, id1, id2)
}

func TestDeviceID_BrokenStoreStillYieldsID(t *testing.T) {
	ctx := context.Background()
	m := NewManager(brokenDocs{}, testLogger())

	id := m.DeviceID(ctx)
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	// the ephemeral id is cached for the lifetime of the manager
	require.Equal(t, id, m.DeviceID(ctx))
}

func TestPseudoUUID_Shape(t *testing.T) {
	id := pseudoUUID()
	u, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(4), u.Version())
}
