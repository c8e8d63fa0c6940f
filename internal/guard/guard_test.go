package guard

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "propertygate/internal/common/errors"
)

// fastGuard returns a guard whose backoff sleeps are recorded, not slept
func fastGuard(config Config) (*Guard, *[]time.Duration) {
	g := New("test", config)
	var waits []time.Duration
	var mu sync.Mutex
	g.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}
	return g, &waits
}

func TestGuard_SuccessFirstAttempt(t *testing.T) {
	g, waits := fastGuard(DefaultConfig())

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestGuard_RetriesTransientWithCappedBackoff(t *testing.T) {
	config := DefaultConfig()
	config.RPS = 0
	g, waits := fastGuard(config)

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.UpstreamError("boom", nil)
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
	assert.Equal(t, 3, calls)
	// 1s then 2s; the third attempt is the last so no further wait
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestGuard_NoRetryOnClientError(t *testing.T) {
	g, waits := fastGuard(DefaultConfig())

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.ValidationError("bad request").WithCode(http.StatusText(http.StatusBadRequest))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestGuard_NoRetryOnAuthError(t *testing.T) {
	g, _ := fastGuard(DefaultConfig())

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.AuthError("refresh failed", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuard_RateLimitGetsLongerFloor(t *testing.T) {
	config := DefaultConfig()
	config.RPS = 0
	g, waits := fastGuard(config)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		return apperrors.RateLimitError("provider-A")
	})

	require.Error(t, err)
	require.Len(t, *waits, 2)
	// Computed backoff would be 1s and 2s; the floor lifts both to 5s
	assert.Equal(t, 5*time.Second, (*waits)[0])
	assert.Equal(t, 5*time.Second, (*waits)[1])
}

func TestGuard_BoundsInFlight(t *testing.T) {
	config := DefaultConfig()
	config.MaxInFlight = 2
	config.RPS = 0
	g := New("test", config)

	var current, peak int64
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				<-release
				atomic.AddInt64(&current, -1)
				return nil
			})
		}()
	}

	// Let goroutines reach the semaphore
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestGuard_ContextCancelledDuringBackoff(t *testing.T) {
	config := DefaultConfig()
	config.RPS = 0
	g := New("test", config)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, func(ctx context.Context) error {
			calls++
			return apperrors.UpstreamError("boom", nil)
		})
	}()

	// Cancel while the guard sits in its first backoff
	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
