package queue

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dcornejo/ayudasync/internal/common"
	"github.com/dcornejo/ayudasync/internal/events"
	"github.com/sethvargo/go-retry"
)

// Start subscribes the interceptor to connectivity transitions so a flush
// runs whenever the network comes back, and kicks one off immediately when
// the queue is non-empty at startup.
func (i *Interceptor) Start(ctx context.Context) error {
	if err := i.bus.SubscribeAsync(events.TopicNetOnline, func() {
		_ = i.Flush(ctx)
	}); err != nil {
		return err
	}

	if i.Depth(ctx) > 0 && i.net.Online() {
		go func() { _ = i.Flush(ctx) }()
	}
	return nil
}

// Flush replays the queue strictly in FIFO order, one item at a time; no
// replay begins until the previous one has terminally succeeded or the
// flush has aborted. A single-flight flag makes concurrent triggers no-ops.
//
// The head item gets up to maxRetries retries within one flush, backing off
// proportionally to the attempt count. When retries are exhausted, or
// connectivity is confirmed lost again, the whole flush stops: the item and
// everything behind it stay queued in order for a later attempt.
func (i *Interceptor) Flush(ctx context.Context) error {
	if !i.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer i.flushing.Store(false)

	i.bus.Publish(events.TopicBanner, events.BannerSyncing)

	for {
		i.mu.Lock()
		q := i.loadQueue(ctx)
		i.mu.Unlock()

		if len(q) == 0 {
			i.bus.Publish(events.TopicBanner, events.BannerHidden)
			return nil
		}
		head := q[0]

		err := retry.Do(ctx, retry.WithMaxRetries(uint64(i.maxRetries), linearBackoff(i.backoff)), func(ctx context.Context) error {
			rerr := i.replayOne(ctx, head)
			if rerr == nil {
				return nil
			}
			i.recordFailure(ctx, head.ID, rerr)
			if !i.net.CheckNow(ctx) {
				// Confirmed offline again; abort instead of burning retries.
				return rerr
			}
			return retry.RetryableError(rerr)
		})
		if err != nil {
			i.log.Warn(ctx, "flush aborted", "id", head.ID, "error", err)
			i.bus.Publish(events.TopicBanner, events.BannerOffline)
			return fmt.Errorf("replay of %s: %w", head.ID, common.ErrReplayFailed)
		}

		i.popHead(ctx, head.ID)
		i.log.Info(ctx, "mutation replayed", "id", head.ID, "method", head.Method, "url", head.URL)
	}
}

// replayOne reconstructs the request from its tagged serialization and
// performs the real call. Only a 2xx response counts as success.
func (i *Interceptor) replayOne(ctx context.Context, m Mutation) error {
	body, contentType, err := DecodeBody(m.Body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, m.Method, m.URL, body)
	if err != nil {
		return err
	}
	for name, values := range m.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if contentType != "" {
		// Multipart bodies are rebuilt with a fresh boundary.
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(HeaderRequestID, m.ID)
	req.Header.Set(HeaderDeviceID, i.device.DeviceID(ctx))

	resp, err := i.transport.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("server rejected replay: %s", resp.Status)
	}
	return nil
}

// recordFailure increments the persisted retry counter and last error of
// the item, re-reading the queue first so interleaved writes are not lost.
func (i *Interceptor) recordFailure(ctx context.Context, id string, rerr error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	q := i.loadQueue(ctx)
	for n := range q {
		if q[n].ID == id {
			q[n].Retries++
			q[n].LastError = rerr.Error()
			break
		}
	}
	i.saveQueue(ctx, q)
}

// popHead removes the confirmed-replayed head item.
func (i *Interceptor) popHead(ctx context.Context, id string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	q := i.loadQueue(ctx)
	if len(q) > 0 && q[0].ID == id {
		q = q[1:]
	}
	i.saveQueue(ctx, q)
}

// linearBackoff waits attempt*base between retries of the same item.
func linearBackoff(base time.Duration) retry.Backoff {
	var attempt int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n := atomic.AddInt64(&attempt, 1)
		return time.Duration(n) * base, false
	})
}
