package netstate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcornejo/ayudasync/internal/events"
	"github.com/dcornejo/ayudasync/internal/logging"
)

type fakeProber struct {
	err error
}

func (p *fakeProber) Probe(context.Context) error { return p.err }

type topicRecorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *topicRecorder) record(topic string) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.topics = append(r.topics, topic)
	}
}

func (r *topicRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMonitor_StartsOnline(t *testing.T) {
	m := NewMonitor(&fakeProber{}, events.NewBus(), testLogger())
	require.True(t, m.Online())
}

func TestMonitor_TransitionsPublishTopics(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	rec := &topicRecorder{}
	require.NoError(t, bus.Subscribe(events.TopicNetOnline, rec.record("online")))
	require.NoError(t, bus.Subscribe(events.TopicNetOffline, rec.record("offline")))

	m := NewMonitor(&fakeProber{}, bus, testLogger())

	m.SetOnline(ctx, true) // already online, no event
	m.SetOnline(ctx, false)
	m.SetOnline(ctx, false) // repeated, no event
	m.SetOnline(ctx, true)

	require.Equal(t, []string{"offline", "online"}, rec.all())
}

func TestMonitor_CheckNow(t *testing.T) {
	ctx := context.Background()
	prober := &fakeProber{}
	m := NewMonitor(prober, events.NewBus(), testLogger())

	require.True(t, m.CheckNow(ctx))
	require.True(t, m.Online())

	prober.err = errors.New("connection refused")
	require.False(t, m.CheckNow(ctx))
	require.False(t, m.Online())

	prober.err = nil
	require.True(t, m.CheckNow(ctx))
	require.True(t, m.Online())
}
