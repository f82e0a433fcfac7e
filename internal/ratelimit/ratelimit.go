// Package ratelimit provides per-source request budgeting with failure
// backoff. Each source gets a replenishing token budget per rolling
// interval and at most one concurrent in-flight call; a failing source
// backs off exponentially without its callers implementing backoff.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/gigharvest/internal/logger"
)

// Backoff and window defaults.
const (
	// DefaultInterval is the rolling window the budget replenishes over.
	DefaultInterval = time.Minute
	// DefaultBaseDelay is the first retry delay after a failure.
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps the exponential failure backoff.
	DefaultMaxDelay = 5 * time.Minute
	// backoffBase is the growth factor for failure backoff.
	backoffBase = 2
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithInterval overrides the budget window, mainly for tests.
func WithInterval(interval time.Duration) Option {
	return func(l *Limiter) { l.interval = interval }
}

// WithBackoff overrides the failure backoff bounds.
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(l *Limiter) {
		l.baseDelay = base
		l.maxDelay = maxDelay
	}
}

// Limiter throttles calls per source. Budgets are per-source, never
// global: one misbehaving source cannot starve the others.
type Limiter struct {
	logger    logger.Interface
	interval  time.Duration
	baseDelay time.Duration
	maxDelay  time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

// entry tracks one source's budget, pacing and backoff state. Its mutex
// serializes the source to one in-flight call.
type entry struct {
	mu sync.Mutex

	pacer       *rate.Limiter
	windowStart time.Time
	used        int
	budget      int

	retryDelay time.Duration
}

// New creates a rate limiter.
func New(log logger.Interface, opts ...Option) *Limiter {
	l := &Limiter{
		logger:    log.WithComponent("ratelimit"),
		interval:  DefaultInterval,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Schedule blocks until the source has budget, then runs fn. The source
// is serialized to one in-flight call; a pending failure backoff delay is
// honored first. fn's error grows the backoff; success resets it.
func (l *Limiter) Schedule(ctx context.Context, source string, budget int, fn func(context.Context) error) error {
	e := l.entry(source)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.configure(budget, l.interval)

	if e.retryDelay > 0 {
		l.logger.Debug("Honoring failure backoff",
			"source", source,
			"delay", e.retryDelay,
		)
		if err := sleepCtx(ctx, e.retryDelay); err != nil {
			return err
		}
	}

	if err := l.acquireToken(ctx, e); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", source, err)
	}

	err := fn(ctx)
	if err != nil {
		e.retryDelay = l.nextDelay(e.retryDelay)
		l.logger.Debug("Call failed, backoff grown",
			"source", source,
			"next_delay", e.retryDelay,
		)
		return err
	}

	e.retryDelay = 0
	return nil
}

// Reset clears all per-source state. Used when the plugin table reloads.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// entry returns the state for a source, creating it on first use. The
// entry is permanent so its mutex keeps serializing the source across
// budget changes.
func (l *Limiter) entry(source string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[source]
	if !ok {
		e = &entry{windowStart: time.Now()}
		l.entries[source] = e
	}
	return e
}

// configure applies the source's current budget, re-pacing on change but
// keeping window and backoff state. Caller holds e.mu.
func (e *entry) configure(budget int, interval time.Duration) {
	if budget <= 0 {
		budget = 1
	}
	if e.pacer == nil || e.budget != budget {
		e.pacer = rate.NewLimiter(rate.Every(interval/time.Duration(budget)), 1)
		e.budget = budget
	}
}

// acquireToken enforces the fixed budget window, then paces the request
// evenly inside it.
func (l *Limiter) acquireToken(ctx context.Context, e *entry) error {
	now := time.Now()
	if now.Sub(e.windowStart) >= l.interval {
		e.windowStart = now
		e.used = 0
	}

	if e.used >= e.budget {
		wait := e.windowStart.Add(l.interval).Sub(now)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		e.windowStart = time.Now()
		e.used = 0
	}

	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}

	e.used++
	return nil
}

// nextDelay grows the failure backoff exponentially up to the cap.
func (l *Limiter) nextDelay(current time.Duration) time.Duration {
	if current == 0 {
		return l.baseDelay
	}
	next := current * backoffBase
	if next > l.maxDelay {
		return l.maxDelay
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
