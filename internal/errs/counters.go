package errs

import (
	"strconv"
	"sync"
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/metrics"
)

const (
	DefaultThreshold = 10
	DefaultWindow    = time.Minute
)

// Counters counts failures per "<code>:<status>" inside a rolling window. It
// is advisory only and never changes request behaviour. Entries live until
// Reset.
type Counters struct {
	mu        sync.Mutex
	entries   map[string]*counterEntry
	threshold int64
	window    time.Duration
	now       func() time.Time
}

type counterEntry struct {
	count       int64
	windowStart time.Time
}

// NewCounters creates an isolated counter set. A zero window never rolls.
func NewCounters(threshold int, window time.Duration) *Counters {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Counters{
		entries:   make(map[string]*counterEntry),
		threshold: int64(threshold),
		window:    window,
		now:       time.Now,
	}
}

// Record increments the entry for f and reports whether this increment
// reached the threshold.
func (c *Counters) Record(f *domain.FailureInfo) (count int64, reached bool) {
	metrics.ErrorsTotal.WithLabelValues(f.Code, strconv.Itoa(f.StatusOr(domain.NoStatusFallback))).Inc()
	return c.Increment(f.CounterKey())
}

// Increment adds one to key.
func (c *Counters) Increment(key string) (count int64, reached bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &counterEntry{windowStart: now}
		c.entries[key] = e
	}
	if c.window > 0 && now.Sub(e.windowStart) >= c.window {
		e.count = 0
		e.windowStart = now
	}
	e.count++
	return e.count, e.count == c.threshold
}

// Get returns the current count for key.
func (c *Counters) Get(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.count
	}
	return 0
}

// Snapshot copies all counts.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.count
	}
	return out
}

// Reset drops every entry. This is the administrative reset.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Threshold returns the warning threshold.
func (c *Counters) Threshold() int64 { return c.threshold }

// Window returns the observation window.
func (c *Counters) Window() time.Duration { return c.window }
