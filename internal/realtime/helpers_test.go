package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cinestream/backend/internal/ads"
	"github.com/cinestream/backend/internal/catalog"
	"github.com/cinestream/backend/pkg/queue"
)

// manualClock runs timers only when Advance passes their deadline.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	c    *manualClock
	seq  int
	at   time.Time
	f    func()
	done bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) ads.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{c: c, seq: c.seq, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool {
			if c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].seq < c.timers[j].seq
			}
			return c.timers[i].at.Before(c.timers[j].at)
		})
		var next *manualTimer
		for _, t := range c.timers {
			if !t.done {
				next = t
				break
			}
		}
		if next == nil || next.at.After(target) {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []queue.ImpressionPayload
}

func (q *recordingQueue) EnqueueImpression(_ context.Context, p queue.ImpressionPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, p)
	return nil
}

func (q *recordingQueue) all() []queue.ImpressionPayload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.ImpressionPayload(nil), q.jobs...)
}

type mapCatalog map[string]*catalog.Content

func (m mapCatalog) Get(_ context.Context, id string) (*catalog.Content, error) {
	if c, ok := m[id]; ok {
		return c, nil
	}
	return nil, catalog.ErrNotFound
}

// drain returns every message queued for s without blocking.
func drain(s *Session) []WSMessage {
	var out []WSMessage
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func events(msgs []WSMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event)
	}
	return out
}

func decode[T any](t *testing.T, msg WSMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}
