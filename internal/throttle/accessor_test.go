package throttle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// runConcurrent starts n callers that block in the factory until release is closed.
func runConcurrent[T any](t *testing.T, a *Accessor[T], n int, release chan struct{}) ([]T, []error) {
	t.Helper()

	values := make([]T, n)
	errs := make([]error, n)

	var ready, done sync.WaitGroup
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			values[i], errs[i] = a.Get(context.Background())
		}(i)
	}

	ready.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	return values, errs
}

func TestAccessor_ConcurrentColdStartSharesOneInvocation(t *testing.T) {
	var calls int32
	release := make(chan struct{})

	a := New(func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		<-release
		if n == 1 {
			return "session-1", nil
		}
		return "unexpected", nil
	}, 3, time.Hour)

	values, errs := runConcurrent(t, a, 20, release)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := range values {
		require.NoError(t, errs[i])
		assert.Equal(t, "session-1", values[i])
	}
}

func TestAccessor_ConcurrentColdStartSharesRejection(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	loginErr := errors.New("login failed")

	a := New(func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 0, loginErr
	}, 3, time.Hour)

	_, errs := runConcurrent(t, a, 10, release)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range errs {
		assert.ErrorIs(t, err, loginErr)
	}
}

func TestAccessor_CachesValue(t *testing.T) {
	var calls int
	a := New(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, 5, time.Hour)

	for i := 0; i < 5; i++ {
		v, err := a.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, a.Stats().Invocations)
}

func TestAccessor_FailureIsNotCached(t *testing.T) {
	clock := newFakeClock()
	var calls int
	a := New(func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	}, 5, time.Hour, WithClock(clock.Now))

	_, err := a.Get(context.Background())
	require.Error(t, err)

	clock.Advance(13 * time.Minute)

	v, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)

	stats := a.Stats()
	assert.Equal(t, 2, stats.Invocations)
	assert.Equal(t, 1, stats.Failures)
}

func TestAccessor_Invalidate(t *testing.T) {
	clock := newFakeClock()
	var calls int
	a := New(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, 5, time.Hour, WithClock(clock.Now))

	v, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	a.Invalidate()
	clock.Advance(13 * time.Minute)

	v, err = a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestAccessor_MaxAgeExpiry(t *testing.T) {
	clock := newFakeClock()
	var calls int
	a := New(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, 4, 4*time.Hour, WithClock(clock.Now), WithMaxAge(time.Hour))

	v, _ := a.Get(context.Background())
	assert.Equal(t, 1, v)

	clock.Advance(30 * time.Minute)
	v, _ = a.Get(context.Background())
	assert.Equal(t, 1, v)

	clock.Advance(31 * time.Minute)
	v, _ = a.Get(context.Background())
	assert.Equal(t, 2, v)
	assert.Equal(t, clock.Now(), a.Stats().ProducedAt)
}

func TestAccessor_QuotaExhaustedServesStale(t *testing.T) {
	clock := newFakeClock()
	var calls int
	a := New(func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}, 1, 24*time.Hour, WithClock(clock.Now), WithMaxAge(time.Minute))

	v, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Expired, but the single invocation for this window is spent.
	clock.Advance(2 * time.Minute)
	v, err = a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	a.Invalidate()
	v, err = a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, a.Stats().StaleServed)

	// Window refilled.
	clock.Advance(24 * time.Hour)
	v, err = a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestAccessor_QuotaExhaustedWithoutValueWaits(t *testing.T) {
	var calls int
	a := New(func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("bad credentials")
	}, 1, 24*time.Hour)

	_, err := a.Get(context.Background())
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = a.Get(ctx)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 1, calls)
}

func TestAccessor_AtMostQuotaInvocationsPerWindow(t *testing.T) {
	clock := newFakeClock()
	var calls []time.Time
	a := New(func(ctx context.Context) (int, error) {
		calls = append(calls, clock.Now())
		return len(calls), nil
	}, 3, 3*time.Hour, WithClock(clock.Now))

	start := clock.Now()
	for clock.Now().Before(start.Add(3 * time.Hour)) {
		a.Invalidate()
		_, err := a.Get(context.Background())
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), time.Hour)
	}
	assert.Equal(t, 177, a.Stats().StaleServed)
}

func TestAccessor_FailingFactoryStaysWithinQuota(t *testing.T) {
	const (
		quota  = 3
		window = 600 * time.Millisecond
	)

	var mu sync.Mutex
	var calls []time.Time
	a := New(func(ctx context.Context) (int, error) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		return 0, errors.New("captcha required")
	}, quota, window)

	start := time.Now()
	ctx, cancel := context.WithDeadline(context.Background(), start.Add(window))
	defer cancel()

	for ctx.Err() == nil {
		_, _ = a.Get(ctx)
	}

	mu.Lock()
	defer mu.Unlock()
	inWindow := 0
	for _, c := range calls {
		if c.Before(start.Add(window)) {
			inWindow++
		}
	}
	assert.Equal(t, quota, inWindow)
}

func TestAccessor_WaiterHonoursOwnDeadline(t *testing.T) {
	var calls atomic.Int32
	a := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("bad credentials")
	}, 1, 24*time.Hour)

	_, err := a.Get(context.Background())
	require.Error(t, err)

	blockedCtx, cancelBlocked := context.WithCancel(context.Background())
	blocked := make(chan error, 1)
	go func() {
		_, err := a.Get(blockedCtx)
		blocked <- err
	}()
	require.Eventually(t, a.waitingForQuota, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	began := time.Now()
	_, err = a.Get(ctx)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Less(t, time.Since(began), time.Second)

	cancelBlocked()
	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQuotaExhausted)
	case <-time.After(time.Second):
		t.Fatal("waiting caller did not return after its context was cancelled")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestAccessor_CancelledCallerDoesNotRejectOthers(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	a := New(func(ctx context.Context) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "session-1", ctx.Err()
	}, 1, time.Hour)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := a.Get(firstCtx)
		first <- err
	}()
	<-entered

	type result struct {
		value string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		v, err := a.Get(context.Background())
		second <- result{v, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "session-1", got.value)
	assert.Equal(t, 1, a.Stats().Invocations)
}

func TestAccessor_InjectedClockDrivesQuota(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	a := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("bad credentials")
	}, 1, 24*time.Hour, WithClock(clock.Now))

	_, err := a.Get(context.Background())
	require.Error(t, err)

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := a.Get(ctx)
		cancel()
		assert.ErrorIs(t, err, ErrQuotaExhausted)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestAccessor_InvalidateDuringRefresh(t *testing.T) {
	clock := newFakeClock()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	a := New(func(ctx context.Context) (int, error) {
		n := calls.Add(1)
		if n == 1 {
			close(entered)
			<-release
		}
		return int(n), nil
	}, 2, 2*time.Hour, WithClock(clock.Now))

	done := make(chan int, 1)
	go func() {
		v, _ := a.Get(context.Background())
		done <- v
	}()

	<-entered
	a.Invalidate()
	close(release)
	assert.Equal(t, 1, <-done)

	// The value produced across the invalidation is not reused.
	clock.Advance(61 * time.Minute)
	v, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAccessor_PointerValues(t *testing.T) {
	type handle struct{ token string }

	a := New(func(ctx context.Context) (*handle, error) {
		return &handle{token: "abc"}, nil
	}, 1, time.Hour)

	first, err := a.Get(context.Background())
	require.NoError(t, err)
	second, err := a.Get(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "abc", second.token)
}
