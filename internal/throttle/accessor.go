// Package throttle turns an expensive factory into a memoized, quota-limited accessor.
//
// Concurrent callers that arrive while no usable value is cached share one factory
// invocation. Once produced, the value is reused until it is invalidated or exceeds
// its max age. Invocations are spaced window/quota apart so no window holds more than
// quota of them; when the quota is spent callers are served the last successful value,
// or wait for the next slot when there is none.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrQuotaExhausted is returned when the quota is spent, no previous value exists
// and the caller's context ended before the window refilled.
var ErrQuotaExhausted = errors.New("factory quota exhausted")

const flightKey = "factory"

// Factory produces the value guarded by an Accessor.
type Factory[T any] func(ctx context.Context) (T, error)

// Stats describes the accessor's factory usage.
type Stats struct {
	Invocations int
	Failures    int
	StaleServed int
	ProducedAt  time.Time
}

type settings struct {
	maxAge time.Duration
	now    func() time.Time
	logger arbor.ILogger
	name   string
}

// Option configures an Accessor.
type Option func(*settings)

// WithMaxAge sets how long a produced value is reused before the factory is invoked again.
// Zero or negative disables age based expiry.
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *settings) {
		s.maxAge = maxAge
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithName labels log lines emitted by the accessor.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// Accessor memoizes the result of a Factory under a quota.
type Accessor[T any] struct {
	factory Factory[T]
	limiter *rate.Limiter
	group   singleflight.Group
	cfg     settings

	mu         sync.Mutex
	value      T
	hasValue   bool
	valid      bool
	generation uint64
	waiting    bool
	producedAt time.Time
	stats      Stats
}

// New creates an Accessor allowing at most quota factory invocations per window.
func New[T any](factory Factory[T], quota int, window time.Duration, opts ...Option) *Accessor[T] {
	if quota < 1 {
		quota = 1
	}
	cfg := settings{
		maxAge: window,
		now:    time.Now,
		name:   "resource",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := rate.Inf
	if window > 0 {
		limit = rate.Every(window / time.Duration(quota))
	}

	return &Accessor[T]{
		factory: factory,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
	}
}

// Get returns the cached value, invoking the factory when there is none usable.
// Callers joining an in-flight invocation stop waiting when their own ctx ends;
// the invocation itself runs detached from any single caller's cancellation.
func (a *Accessor[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if v, ok := a.cached(); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := a.group.DoChan(flightKey, func() (interface{}, error) {
		return a.refresh(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared && a.cfg.logger != nil {
			a.cfg.logger.Debug().Str("accessor", a.cfg.name).Msg("Joined in-flight factory call")
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		if a.waitingForQuota() {
			return zero, fmt.Errorf("%w: %v", ErrQuotaExhausted, ctx.Err())
		}
		return zero, ctx.Err()
	}
}

// Invalidate discards the cached value so the next Get invokes the factory.
// The discarded value remains the fallback when the quota is exhausted. An
// invocation already in flight does not produce a valid value.
func (a *Accessor[T]) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid = false
	a.generation++
}

// Stats returns a snapshot of factory usage.
func (a *Accessor[T]) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Accessor[T]) cached() (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fresh() {
		return a.value, true
	}
	var zero T
	return zero, false
}

// fresh must be called with mu held.
func (a *Accessor[T]) fresh() bool {
	if !a.hasValue || !a.valid {
		return false
	}
	if a.cfg.maxAge > 0 && a.cfg.now().Sub(a.producedAt) >= a.cfg.maxAge {
		return false
	}
	return true
}

func (a *Accessor[T]) waitingForQuota() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.waiting
}

func (a *Accessor[T]) refresh(ctx context.Context) (T, error) {
	var zero T

	a.mu.Lock()
	if a.fresh() {
		v := a.value
		a.mu.Unlock()
		return v, nil
	}
	stale, hasStale := a.value, a.hasValue
	generation := a.generation
	a.mu.Unlock()

	now := a.cfg.now()
	r := a.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		if hasStale {
			r.CancelAt(now)
			a.mu.Lock()
			a.stats.StaleServed++
			a.mu.Unlock()
			if a.cfg.logger != nil {
				a.cfg.logger.Warn().Str("accessor", a.cfg.name).Msg("Factory quota exhausted, serving previous value")
			}
			return stale, nil
		}
		if a.cfg.logger != nil {
			a.cfg.logger.Warn().Str("accessor", a.cfg.name).Dur("delay", delay).Msg("Factory quota exhausted, waiting for next slot")
		}
		if err := a.wait(ctx, delay); err != nil {
			r.CancelAt(a.cfg.now())
			return zero, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
	}

	a.mu.Lock()
	a.stats.Invocations++
	a.mu.Unlock()

	v, err := a.factory(ctx)
	if err != nil {
		a.mu.Lock()
		a.stats.Failures++
		a.mu.Unlock()
		return zero, err
	}

	a.mu.Lock()
	a.value = v
	a.hasValue = true
	a.valid = a.generation == generation
	a.producedAt = a.cfg.now()
	a.stats.ProducedAt = a.producedAt
	a.mu.Unlock()

	if a.cfg.logger != nil {
		a.cfg.logger.Debug().Str("accessor", a.cfg.name).Msg("Factory produced new value")
	}
	return v, nil
}

// wait blocks for delay, the time until the limiter's next slot.
func (a *Accessor[T]) wait(ctx context.Context, delay time.Duration) error {
	a.mu.Lock()
	a.waiting = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.waiting = false
		a.mu.Unlock()
	}()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
