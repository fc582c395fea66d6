// Package dedup provides a time-bounded guard against re-processing redelivered
// realtime events. The transport is at-least-once: clients resend events until
// acknowledged, so handlers for side-effecting events run through Guard, which
// suppresses duplicates of the same event ID for a TTL window.
//
// This is a best-effort, in-process guard, not an exactly-once mechanism: an
// entry expires after the TTL and the same ID would be processed again.
package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults, overridable via options.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultCapacity      = 1000
	DefaultSweepInterval = time.Minute
)

type entry struct {
	recordedAt time.Time
	eventType  string
}

// Cache remembers which event IDs were processed recently.
// Construction is inert: no background work starts until Start is called.
// All methods are safe for concurrent use.
//
// INVARIANT: an entry older than ttl is treated as absent by every read;
// the periodic sweep and lazy expiry-on-read both enforce this.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	ttl     time.Duration
	cap     int
	every   time.Duration
	entries map[string]entry

	running bool
	stopCh  chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects a time source. Tests use this to simulate TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTTL overrides the dedup window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCapacity overrides the soft entry bound.
func WithCapacity(n int) Option {
	return func(c *Cache) { c.cap = n }
}

// WithSweepInterval overrides the periodic sweep interval.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.every = d }
}

// New creates a Cache. No sweeper goroutine is started; call Start.
func New(opts ...Option) *Cache {
	c := &Cache{
		now:     time.Now,
		ttl:     DefaultTTL,
		cap:     DefaultCapacity,
		every:   DefaultSweepInterval,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasProcessed reports whether eventID was processed within the TTL window.
// A stale entry found during the lookup is removed (lazy expiry).
// PRE: eventID is non-empty
// POST: Returns false for absent or expired IDs; expired entries are removed
func (c *Cache) HasProcessed(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasProcessedLocked(eventID, c.now())
}

func (c *Cache) hasProcessedLocked(eventID string, now time.Time) bool {
	e, ok := c.entries[eventID]
	if !ok {
		return false
	}
	if now.Sub(e.recordedAt) > c.ttl {
		delete(c.entries, eventID)
		return false
	}
	return true
}

// MarkProcessed records that eventID was handled. At capacity it sweeps
// expired entries first; this is best-effort, the bound is soft.
// PRE: eventID is non-empty; eventType is a diagnostic label only
// POST: entries[eventID] is recorded with the current time
func (c *Cache) MarkProcessed(eventID, eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.reserveLocked(eventID, eventType, now)
}

func (c *Cache) reserveLocked(eventID, eventType string, now time.Time) {
	if len(c.entries) >= c.cap {
		if removed := c.sweepLocked(now); removed == 0 {
			slog.Warn("dedup_capacity_exceeded", "size", len(c.entries), "capacity", c.cap)
		}
	}
	c.entries[eventID] = entry{recordedAt: now, eventType: eventType}
}

// Guard runs action at most once per TTL window for a given eventID.
//
// The ID is reserved before the action runs (insert-if-absent under the lock),
// so a concurrent duplicate delivery is suppressed for the whole duration of
// the in-flight action, not just after it completes. If the action fails the
// reservation is removed: failures are never deduplicated, only successes,
// which leaves redelivery as the retry mechanism.
//
// PRE: eventID is non-empty (the event model's EnsureID guarantees this on
// the realtime path)
// POST: Returns (false, nil) for a suppressed duplicate; (true, nil) after a
// successful run; (false, err) when action failed, with the ID unmarked
func (c *Cache) Guard(ctx context.Context, eventID, eventType string, action func(context.Context) error) (bool, error) {
	c.mu.Lock()
	now := c.now()
	if c.hasProcessedLocked(eventID, now) {
		c.mu.Unlock()
		return false, nil
	}
	c.reserveLocked(eventID, eventType, now)
	c.mu.Unlock()

	if err := action(ctx); err != nil {
		c.mu.Lock()
		// Only remove our own reservation; a sweep may already have done it.
		if e, ok := c.entries[eventID]; ok && e.recordedAt.Equal(now) {
			delete(c.entries, eventID)
		}
		c.mu.Unlock()
		return false, err
	}
	return true, nil
}

// Sweep removes every expired entry in one pass and returns the count.
// Invoked by the periodic sweeper and opportunistically at capacity.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	removed := c.sweepLocked(c.now())
	remaining := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		slog.Info("dedup_sweep", "removed", removed, "remaining", remaining)
	}
	return removed
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.recordedAt) > c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Stats is a read-only snapshot for the stats endpoint.
type Stats struct {
	Size         int            `json:"size"`
	CountsByType map[string]int `json:"counts_by_type"`
}

// Stats returns the current entry count and a per-type breakdown.
// Expiry is not forced: stale entries not yet swept are included.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int, 8)
	for _, e := range c.entries {
		counts[e.eventType]++
	}
	return Stats{Size: len(c.entries), CountsByType: counts}
}

// Clear empties the cache unconditionally. Used for test isolation and as
// the local-state reset step of lobby cleanup.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Start launches the periodic sweeper. Idempotent: a second call while
// running is a no-op.
// POST: a sweeper goroutine runs until Stop
func (c *Cache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	go c.sweepLoop(c.stopCh)
}

// Stop cancels the periodic sweeper. Idempotent.
// POST: the sweeper goroutine exits; entries are retained
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
	c.stopCh = nil
}

func (c *Cache) sweepLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(c.every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-stopCh:
			slog.Info("dedup_sweeper_stopped")
			return
		}
	}
}
