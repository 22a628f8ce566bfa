// Package netstate tracks connectivity to the admin server. The browser
// equivalent is navigator.onLine plus online/offline events; here a periodic
// probe plays that role, and transitions are published on the event bus so
// the mutation queue can flush on reconnect.
package netstate

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dcornejo/ayudasync/internal/events"
	"github.com/dcornejo/ayudasync/internal/logging"
)

// Prober checks server reachability. An error means offline.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber probes with a HEAD request against a lightweight endpoint.
type HTTPProber struct {
	client *http.Client
	url    string
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{client: &http.Client{Timeout: timeout}, url: url}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// Monitor holds the current connectivity state. It starts online, matching
// the optimistic browser default, and corrects itself on the first probe or
// on the first failed request reported by the queue.
type Monitor struct {
	prober Prober
	bus    *events.Bus
	log    logging.Logger

	mu     sync.Mutex
	online bool
}

func NewMonitor(prober Prober, bus *events.Bus, log logging.Logger) *Monitor {
	return &Monitor{prober: prober, bus: bus, log: log, online: true}
}

// Online reports the last known connectivity state without probing.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a state observed elsewhere (a failed mutation, an
// embedding environment that reports connectivity itself). Transitions
// publish the matching bus topic.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}
	if online {
		m.log.Info(ctx, "connectivity restored")
		m.bus.Publish(events.TopicNetOnline)
	} else {
		m.log.Info(ctx, "connectivity lost")
		m.bus.Publish(events.TopicNetOffline)
	}
}

// CheckNow probes immediately, records the result, and returns it.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	err := m.prober.Probe(ctx)
	m.SetOnline(ctx, err == nil)
	return err == nil
}

// Watch probes on the given interval until ctx is done.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}
