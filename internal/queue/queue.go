// Package queue implements the mutation queue: a wrapper around the
// outgoing HTTP primitive that, while offline, serializes qualifying write
// requests into a durable FIFO queue and replays them in order once
// connectivity returns. The calling code receives a synthetic 202 for a
// queued mutation and proceeds as if the server had accepted it.
package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dcornejo/ayudasync/internal/device"
	"github.com/dcornejo/ayudasync/internal/docstore"
	"github.com/dcornejo/ayudasync/internal/events"
	"github.com/dcornejo/ayudasync/internal/logging"
	"github.com/google/uuid"
)

const (
	// HeaderQueued marks the synthetic response of an intercepted mutation.
	HeaderQueued = "X-Offline-Queued"

	// HeaderRequestID and HeaderDeviceID are attached on replay as
	// idempotency hints for the server.
	HeaderRequestID = "X-Offline-Request-Id"
	HeaderDeviceID  = "X-Offline-Device-Id"

	docKeyQueue = "mutation_queue"

	// DefaultCapacity caps the queue; the oldest entry is evicted on
	// overflow.
	DefaultCapacity = 200

	// DefaultMaxRetries is the per-flush retry limit for the head item.
	DefaultMaxRetries = 3
)

// defaultRelevantPaths are the mutation-relevant resource families. Paths
// outside these bypass interception entirely.
var defaultRelevantPaths = []string{"/proyectos", "/eventos", "/comunidades", "/regiones"}

// Transport is the real network-call primitive being wrapped.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Connectivity is the slice of netstate.Monitor the queue needs.
type Connectivity interface {
	Online() bool
	SetOnline(ctx context.Context, online bool)
	CheckNow(ctx context.Context) bool
}

// Mutation is one queued write request. Items are removed only after a
// confirmed successful replay.
type Mutation struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Method      string      `json:"method"`
	Header      http.Header `json:"header,omitempty"`
	Body        Body        `json:"body"`
	Credentials string      `json:"credentials,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Retries     int         `json:"retries"`
	LastError   string      `json:"last_error,omitempty"`
}

// Interceptor owns the queue state explicitly: one instance is constructed
// at startup and everything (queue document, single-flight flag) hangs off
// it rather than off package globals.
type Interceptor struct {
	transport Transport
	docs      docstore.Store
	device    *device.Manager
	net       Connectivity
	bus       *events.Bus
	log       logging.Logger

	origin        *url.URL
	relevantPaths []string
	capacity      int
	maxRetries    int
	backoff       time.Duration

	mu       sync.Mutex // guards queue document read-modify-persist
	flushing atomic.Bool
}

// Options tunes the interceptor. Zero values fall back to defaults.
type Options struct {
	Origin        string // page origin; cross-origin requests bypass
	RelevantPaths []string
	Capacity      int
	MaxRetries    int
	Backoff       time.Duration
}

func NewInterceptor(transport Transport, docs docstore.Store, dev *device.Manager, net Connectivity, bus *events.Bus, log logging.Logger, opts Options) (*Interceptor, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", opts.Origin)
	}

	i := &Interceptor{
		transport:     transport,
		docs:          docs,
		device:        dev,
		net:           net,
		bus:           bus,
		log:           log,
		origin:        origin,
		relevantPaths: opts.RelevantPaths,
		capacity:      opts.Capacity,
		maxRetries:    opts.MaxRetries,
		backoff:       opts.Backoff,
	}
	if len(i.relevantPaths) == 0 {
		i.relevantPaths = defaultRelevantPaths
	}
	if i.capacity <= 0 {
		i.capacity = DefaultCapacity
	}
	if i.maxRetries <= 0 {
		i.maxRetries = DefaultMaxRetries
	}
	if i.backoff <= 0 {
		i.backoff = 2 * time.Second
	}
	return i, nil
}

// Do routes a request through the interceptor. Bypassed requests hit the
// real transport untouched; qualifying mutations are queued when the device
// is offline or the send fails while connectivity is down.
func (i *Interceptor) Do(req *http.Request) (*http.Response, error) {
	if i.bypass(req) {
		return i.transport.Do(req)
	}

	ctx := req.Context()

	// Buffer the body up front so it can still be serialized after a
	// failed send has consumed the original reader.
	data, err := readBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	if !i.net.Online() {
		return i.enqueue(ctx, req, data)
	}

	if len(data) > 0 {
		req.Body = io.NopCloser(bytes.NewReader(data))
	}
	resp, err := i.transport.Do(req)
	if err != nil {
		i.net.SetOnline(ctx, false)
		return i.enqueue(ctx, req, data)
	}
	if resp.StatusCode/100 != 2 && !i.net.CheckNow(ctx) {
		// The error status came from a dying connection, not the server's
		// verdict; queue instead of surfacing it.
		_ = resp.Body.Close()
		return i.enqueue(ctx, req, data)
	}
	return resp, nil
}

// bypass reports whether the request must pass straight through: foreign
// origin, read-only method, or a path outside the mutation-relevant
// resource families.
func (i *Interceptor) bypass(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, "":
		return true
	}

	if req.URL.Host != "" && req.URL.Host != i.origin.Host {
		return true
	}
	if req.URL.Scheme != "" && req.URL.Scheme != i.origin.Scheme {
		return true
	}

	path := req.URL.Path
	for _, family := range i.relevantPaths {
		if strings.Contains(path, family) {
			return false
		}
	}
	return true
}

// enqueue serializes the request, appends it FIFO (evicting the oldest on
// overflow), persists the queue, and answers with a synthetic 202 so the
// caller proceeds as if the mutation were accepted.
func (i *Interceptor) enqueue(ctx context.Context, req *http.Request, data []byte) (*http.Response, error) {
	body, err := EncodeBody(req.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize mutation body: %w", err)
	}
	if body.DroppedFiles > 0 {
		i.log.Warn(ctx, "binary payload dropped from queued mutation",
			"url", req.URL.String(), "dropped", body.DroppedFiles)
	}

	m := Mutation{
		ID:          uuid.NewString(),
		URL:         req.URL.String(),
		Method:      req.Method,
		Header:      req.Header.Clone(),
		Body:        body,
		Credentials: "include",
		CreatedAt:   time.Now(),
	}

	i.mu.Lock()
	q := i.loadQueue(ctx)
	q = append(q, m)
	if len(q) > i.capacity {
		i.log.Warn(ctx, "mutation queue full, evicting oldest", "evicted", q[0].ID)
		q = q[len(q)-i.capacity:]
	}
	i.saveQueue(ctx, q)
	depth := len(q)
	i.mu.Unlock()

	i.log.Info(ctx, "mutation queued", "id", m.ID, "method", m.Method, "url", m.URL, "depth", depth)
	i.bus.Publish(events.TopicBanner, events.BannerOffline)

	return syntheticResponse(req, m.ID), nil
}

// Depth returns the number of queued mutations.
func (i *Interceptor) Depth(ctx context.Context) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.loadQueue(ctx))
}

// loadQueue reads the queue document. Unreadable state degrades to an empty
// queue; the queue prioritizes availability. The caller holds mu.
func (i *Interceptor) loadQueue(ctx context.Context) []Mutation {
	var q []Mutation
	if _, err := docstore.GetJSON(ctx, i.docs, docKeyQueue, &q); err != nil {
		i.log.Warn(ctx, "mutation queue unreadable, starting empty", "error", err)
		return nil
	}
	return q
}

func (i *Interceptor) saveQueue(ctx context.Context, q []Mutation) {
	if err := docstore.PutJSON(ctx, i.docs, docKeyQueue, q); err != nil {
		i.log.Warn(ctx, "mutation queue not persisted", "error", err)
	}
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func syntheticResponse(req *http.Request, id string) *http.Response {
	payload := fmt.Sprintf(
		`{"queued":true,"id":%q,"message":"Sin conexión: la operación quedó guardada y se enviará al restablecerse la red."}`,
		id,
	)

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(HeaderQueued, "true")

	return &http.Response{
		Status:        "202 Accepted",
		StatusCode:    http.StatusAccepted,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(payload)),
		ContentLength: int64(len(payload)),
		Request:       req,
	}
}
