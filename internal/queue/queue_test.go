package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dcornejo/ayudasync/internal/common"
	"github.com/dcornejo/ayudasync/internal/device"
	"github.com/dcornejo/ayudasync/internal/events"
	"github.com/dcornejo/ayudasync/internal/logging"
)

const testOrigin = "https://admin.example.org"

type memDocs struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemDocs() *memDocs { return &memDocs{m: map[string][]byte{}} }

func (s *memDocs) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}
func (s *memDocs) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}
func (s *memDocs) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
func (s *memDocs) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = map[string][]byte{}
	return nil
}

type stubNet struct {
	mu     sync.Mutex
	online bool
}

func (s *stubNet) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}
func (s *stubNet) SetOnline(_ context.Context, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}
func (s *stubNet) CheckNow(context.Context) bool { return s.Online() }

// fakeTransport records every request (and its body) it receives.
type fakeTransport struct {
	mu      sync.Mutex
	reqs    []*http.Request
	bodies  []string
	handler func(req *http.Request) (*http.Response, error)
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(req)
	}
	return respond(req, http.StatusOK), nil
}

func (f *fakeTransport) requestURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, 0, len(f.reqs))
	for _, r := range f.reqs {
		urls = append(urls, r.URL.String())
	}
	return urls
}

func respond(req *http.Request, status int) *http.Response {
	return &http.Response{
		Status:     http.StatusText(status),
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupInterceptor(t *testing.T, opts Options) (*Interceptor, *fakeTransport, *stubNet) {
	t.Helper()

	transport := &fakeTransport{}
	docs := newMemDocs()
	log := testLogger()
	net := &stubNet{online: false}

	if opts.Origin == "" {
		opts.Origin = testOrigin
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}

	i, err := NewInterceptor(transport, docs, device.NewManager(docs, log), net, events.NewBus(), log, opts)
	require.NoError(t, err)
	return i, transport, net
}

func postJSON(t *testing.T, url, payload string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestNewInterceptor_RequiresOrigin(t *testing.T) {
	_, err := NewInterceptor(&fakeTransport{}, newMemDocs(), nil, &stubNet{}, events.NewBus(), testLogger(), Options{})
	require.Error(t, err)
}

func TestBypass(t *testing.T) {
	i, _, _ := setupInterceptor(t, Options{})

	tests := []struct {
		name   string
		method string
		url    string
		bypass bool
	}{
		{"read-only method", http.MethodGet, testOrigin + "/proyectos/", true},
		{"head probe", http.MethodHead, testOrigin + "/api/ping/", true},
		{"foreign host", http.MethodPost, "https://cdn.example.net/proyectos/", true},
		{"scheme mismatch", http.MethodPost, "http://admin.example.org/proyectos/", true},
		{"irrelevant path", http.MethodPost, testOrigin + "/api/otros/guardar/", true},
		{"relevant mutation", http.MethodPost, testOrigin + "/api/proyectos/crear/", false},
		{"relative url", http.MethodPut, "/comunidades/5/editar/", false},
		{"delete on eventos", http.MethodDelete, testOrigin + "/eventos/9/", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.url, nil)
			require.NoError(t, err)
			require.Equal(t, tc.bypass, i.bypass(req))
		})
	}
}

func TestDo_BypassedRequestHitsTransport(t *testing.T) {
	i, transport, _ := setupInterceptor(t, Options{})
	ctx := context.Background()

	req, err := http.NewRequest(http.MethodGet, testOrigin+"/proyectos/", nil)
	require.NoError(t, err)

	resp, err := i.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, transport.requestURLs(), 1)
	require.Zero(t, i.Depth(ctx))
}

func TestDo_OfflineMutationQueued(t *testing.T) {
	i, transport, _ := setupInterceptor(t, Options{})
	ctx := context.Background()

	resp, err := i.Do(postJSON(t, testOrigin+"/api/proyectos/crear/", `{"nombre":"x"}`))
	require.NoError(t, err)

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "true", resp.Header.Get(HeaderQueued))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"queued":true`)

	require.Empty(t, transport.requestURLs())
	require.Equal(t, 1, i.Depth(ctx))
}

func TestDo_OnlinePassThrough(t *testing.T) {
	i, transport, net := setupInterceptor(t, Options{})
	net.online = true
	ctx := context.Background()

	resp, err := i.Do(postJSON(t, testOrigin+"/api/proyectos/crear/", `{"nombre":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, transport.requestURLs(), 1)
	require.Zero(t, i.Depth(ctx))
}

func TestDo_TransportFailureQueuesAndMarksOffline(t *testing.T) {
	i, transport, net := setupInterceptor(t, Options{})
	net.online = true
	transport.handler = func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
	ctx := context.Background()

	resp, err := i.Do(postJSON(t, testOrigin+"/api/proyectos/crear/", `{"nombre":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, 1, i.Depth(ctx))
	require.False(t, net.Online())
}

func TestEnqueue_EvictsOldestAtCapacity(t *testing.T) {
	i, _, _ := setupInterceptor(t, Options{Capacity: 2})
	ctx := context.Background()

	for _, path := range []string{"/proyectos/1/", "/proyectos/2/", "/proyectos/3/"} {
		_, err := i.Do(postJSON(t, testOrigin+path, `{}`))
		require.NoError(t, err)
	}

	require.Equal(t, 2, i.Depth(ctx))

	i.mu.Lock()
	q := i.loadQueue(ctx)
	i.mu.Unlock()
	require.Equal(t, testOrigin+"/proyectos/2/", q[0].URL)
	require.Equal(t, testOrigin+"/proyectos/3/", q[1].URL)
}

func TestFlush_ReplaysInOrder(t *testing.T) {
	i, transport, net := setupInterceptor(t, Options{})
	ctx := context.Background()

	payloads := map[string]string{
		testOrigin + "/proyectos/a/": `{"n":"a"}`,
		testOrigin + "/proyectos/b/": `{"n":"b"}`,
		testOrigin + "/proyectos/c/": `{"n":"c"}`,
	}
	for _, u := range []string{testOrigin + "/proyectos/a/", testOrigin + "/proyectos/b/", testOrigin + "/proyectos/c/"} {
		_, err := i.Do(postJSON(t, u, payloads[u]))
		require.NoError(t, err)
	}
	require.Equal(t, 3, i.Depth(ctx))

	net.SetOnline(ctx, true)
	require.NoError(t, i.Flush(ctx))

	require.Equal(t, []string{
		testOrigin + "/proyectos/a/",
		testOrigin + "/proyectos/b/",
		testOrigin + "/proyectos/c/",
	}, transport.requestURLs())
	require.Zero(t, i.Depth(ctx))

	// replayed requests carry the idempotency hints and the original body
	transport.mu.Lock()
	defer transport.mu.Unlock()
	for n, req := range transport.reqs {
		require.NotEmpty(t, req.Header.Get(HeaderRequestID))
		require.NotEmpty(t, req.Header.Get(HeaderDeviceID))
		require.Equal(t, payloads[req.URL.String()], transport.bodies[n])
	}
}

func TestFlush_AbortsOnPersistentFailureKeepingOrder(t *testing.T) {
	i, transport, net := setupInterceptor(t, Options{MaxRetries: 3})
	ctx := context.Background()

	for _, path := range []string{"/proyectos/a/", "/proyectos/b/", "/proyectos/c/"} {
		_, err := i.Do(postJSON(t, testOrigin+path, `{}`))
		require.NoError(t, err)
	}

	// b is rejected on every attempt; connectivity itself stays up
	transport.handler = func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "/b/") {
			return respond(req, http.StatusInternalServerError), nil
		}
		return respond(req, http.StatusOK), nil
	}

	net.SetOnline(ctx, true)
	err := i.Flush(ctx)
	require.ErrorIs(t, err, common.ErrReplayFailed)

	// a replayed once, b exhausted its attempt budget, c never attempted
	var attemptsB int
	for _, u := range transport.requestURLs() {
		require.NotContains(t, u, "/c/")
		if strings.Contains(u, "/b/") {
			attemptsB++
		}
	}
	require.Equal(t, 4, attemptsB) // 1 initial + 3 retries

	i.mu.Lock()
	q := i.loadQueue(ctx)
	i.mu.Unlock()
	require.Len(t, q, 2)
	require.Equal(t, testOrigin+"/proyectos/b/", q[0].URL)
	require.Equal(t, testOrigin+"/proyectos/c/", q[1].URL)
	require.Equal(t, 4, q[0].Retries)
	require.NotEmpty(t, q[0].LastError)
}

func TestFlush_AbortsWhenConnectivityDropsAgain(t *testing.T) {
	i, transport, net := setupInterceptor(t, Options{})
	ctx := context.Background()

	_, err := i.Do(postJSON(t, testOrigin+"/proyectos/a/", `{}`))
	require.NoError(t, err)

	// the first replay attempt kills the connection
	transport.handler = func(req *http.Request) (*http.Response, error) {
		net.SetOnline(ctx, false)
		return nil, errors.New("connection reset")
	}

	net.SetOnline(ctx, true)
	err = i.Flush(ctx)
	require.ErrorIs(t, err, common.ErrReplayFailed)

	// a single attempt, no retry burn while confirmed offline
	require.Len(t, transport.requestURLs(), 1)
	require.Equal(t, 1, i.Depth(ctx))
}

func TestFlush_EmptyQueueIsNoOp(t *testing.T) {
	i, transport, net := setupInterceptor(t, Options{})
	ctx := context.Background()

	net.SetOnline(ctx, true)
	require.NoError(t, i.Flush(ctx))
	require.Empty(t, transport.requestURLs())
}

func TestBannerEvents(t *testing.T) {
	transport := &fakeTransport{}
	docs := newMemDocs()
	log := testLogger()
	net := &stubNet{online: false}
	bus := events.NewBus()

	var mu sync.Mutex
	var states []events.BannerState
	require.NoError(t, bus.Subscribe(events.TopicBanner, func(s events.BannerState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}))

	i, err := NewInterceptor(transport, docs, device.NewManager(docs, log), net, bus, log,
		Options{Origin: testOrigin, Backoff: time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = i.Do(postJSON(t, testOrigin+"/proyectos/a/", `{}`))
	require.NoError(t, err)

	net.SetOnline(ctx, true)
	require.NoError(t, i.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []events.BannerState{events.BannerOffline, events.BannerSyncing, events.BannerHidden}, states)
}
