// Package clock resolves a tamper-resistant notion of current time.
//
// The clock prefers a network-synchronized offset over the device wall clock
// and falls back to a monotonic uptime-based clock when network time is
// unavailable. Callers never see an error; Now always returns a
// monotonically-reasonable epoch-millisecond timestamp.
package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock provides the current time in epoch milliseconds. Injected everywhere
// instead of time.Now so tests can drive time explicitly.
type Clock interface {
	Now() int64
}

// TimeFetcher fetches an authoritative epoch-millisecond timestamp from an
// external source. Implementations fail with an error on network problems.
type TimeFetcher interface {
	FetchAuthoritativeTime(ctx context.Context) (int64, error)
}

// ResyncInterval is how long a successful sync stays fresh before Now
// triggers another background fetch.
const ResyncInterval = 5 * time.Minute

// fetchTimeout bounds a single authoritative-time fetch.
const fetchTimeout = 5 * time.Second

// Opts holds configuration options for the tamper-resistant clock.
type Opts struct {
	WallNow  func() int64 // wall clock in epoch ms
	UptimeMs func() int64 // monotonic uptime in ms
}

// Option defines a configuration option for the tamper-resistant clock.
type Option func(*Opts)

// WithWallClock overrides the wall-clock reading (used in tests).
func WithWallClock(fn func() int64) Option {
	return func(o *Opts) { o.WallNow = fn }
}

// WithUptime overrides the monotonic uptime reading (used in tests).
func WithUptime(fn func() int64) Option {
	return func(o *Opts) { o.UptimeMs = fn }
}

// TamperResistant implements Clock with a network offset and a monotonic
// fallback that is immune to user-initiated wall-clock changes.
type TamperResistant struct {
	fetcher  TimeFetcher
	wallNow  func() int64
	uptimeMs func() int64

	mu            sync.Mutex
	networkOffset int64
	lastSyncMs    int64
	bootOffset    int64
	usingBoot     bool
	syncing       bool
}

// NewTamperResistant creates a clock backed by the given fetcher. The first
// sync happens lazily on the first Now call.
func NewTamperResistant(fetcher TimeFetcher, opts ...Option) *TamperResistant {
	cfg := Opts{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.WallNow == nil {
		cfg.WallNow = func() int64 { return time.Now().UnixMilli() }
	}
	if cfg.UptimeMs == nil {
		start := time.Now()
		cfg.UptimeMs = func() int64 { return time.Since(start).Milliseconds() }
	}
	return &TamperResistant{
		fetcher:  fetcher,
		wallNow:  cfg.WallNow,
		uptimeMs: cfg.UptimeMs,
	}
}

// Now returns the current epoch-millisecond time. A stale sync schedules a
// background refetch; the calling tick is never delayed by the network.
func (c *TamperResistant) Now() int64 {
	wall := c.wallNow()

	c.mu.Lock()
	needSync := c.fetcher != nil && !c.syncing && wall-c.lastSyncMs > ResyncInterval.Milliseconds()
	if needSync {
		c.syncing = true
	}
	usingBoot := c.usingBoot
	netOffset := c.networkOffset
	bootOffset := c.bootOffset
	c.mu.Unlock()

	if needSync {
		go c.sync()
	}

	if usingBoot {
		return c.uptimeMs() + bootOffset
	}
	return wall + netOffset
}

// Sync performs one blocking sync attempt. Used at startup; errors are
// swallowed the same way the background path swallows them.
func (c *TamperResistant) Sync(ctx context.Context) {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return
	}
	c.syncing = true
	c.mu.Unlock()
	c.syncWithContext(ctx)
}

func (c *TamperResistant) sync() {
	c.syncWithContext(context.Background())
}

// syncWithContext fetches authoritative time and updates offsets. On failure
// it switches to the uptime-based clock until a later sync succeeds. Callers
// must have set c.syncing under the lock.
func (c *TamperResistant) syncWithContext(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	authoritative, err := c.fetcher.FetchAuthoritativeTime(ctx)
	wall := c.wallNow()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncing = false

	if err != nil {
		// Capture the boot offset once per fallback activation so the
		// monotonic clock stays anchored to the last trusted reading.
		if !c.usingBoot {
			c.bootOffset = wall + c.networkOffset - c.uptimeMs()
			c.usingBoot = true
			slog.Warn("clock: network time unavailable, falling back to uptime clock", "error", err)
		} else {
			slog.Debug("clock: network time still unavailable", "error", err)
		}
		// Record the attempt so failed fetches are not retried on every tick.
		c.lastSyncMs = wall
		return
	}

	c.networkOffset = authoritative - wall
	c.lastSyncMs = wall
	c.usingBoot = false
	slog.Debug("clock: network time synced", "offset_ms", c.networkOffset)
}
