package orchestrate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "propertygate/internal/common/errors"
	"propertygate/internal/models"
)

// fakeClock drives the orchestrator's time without real sleeps: each sleep
// advances the clock by the requested duration.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return nil
}

type fakeLegacy struct {
	createID  string
	createErr error

	// statuses is consumed one per poll; the last entry repeats
	statuses   []pollAnswer
	polls      int
	resultTree map[string]interface{}
	resultErr  error
	fetches    int
}

type pollAnswer struct {
	complete bool
	status   string
	err      error
}

func (f *fakeLegacy) CreateRequest(ctx context.Context, query models.SearchQuery) (string, error) {
	return f.createID, f.createErr
}

func (f *fakeLegacy) CheckStatus(ctx context.Context, requestID string) (bool, string, error) {
	i := f.polls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.polls++
	a := f.statuses[i]
	return a.complete, a.status, a.err
}

func (f *fakeLegacy) FetchResult(ctx context.Context, requestID string) (map[string]interface{}, error) {
	f.fetches++
	return f.resultTree, f.resultErr
}

func newTestOrchestrator(provider LegacyClient, clock *fakeClock) *AsyncOrchestrator {
	o := NewAsyncOrchestrator(provider, DefaultAsyncConfig(), nil)
	o.now = clock.now
	o.sleep = clock.sleep
	return o
}

func TestAsync_CompletesAndFetches(t *testing.T) {
	provider := &fakeLegacy{
		createID: "4481723",
		statuses: []pollAnswer{
			{false, "In Process", nil},
			{false, "In Process", nil},
			{true, "Complete", nil},
		},
		resultTree: map[string]interface{}{
			"Result": map[string]interface{}{
				"Property": map[string]interface{}{"APN": "6327-030-021"},
			},
		},
	}
	o := newTestOrchestrator(provider, newFakeClock())

	tree, handle, err := o.Run(context.Background(), models.SearchQuery{Street: "123 Main St"})
	require.NoError(t, err)

	assert.Equal(t, models.AsyncComplete, handle.State)
	assert.Equal(t, "4481723", handle.RequestID)
	assert.Equal(t, 3, handle.PollCount)
	assert.Equal(t, 1, provider.fetches)
	assert.NotNil(t, tree)
	assert.True(t, handle.State.Terminal())
}

func TestAsync_NoCompletionSignalTimesOut(t *testing.T) {
	// 20s budget at a 2s interval allows exactly 10 polls; with no
	// completion signal the terminal state is TimedOut, not Failed.
	provider := &fakeLegacy{
		createID: "4481723",
		statuses: []pollAnswer{{false, "In Process", nil}},
	}
	o := newTestOrchestrator(provider, newFakeClock())

	tree, handle, err := o.Run(context.Background(), models.SearchQuery{Street: "123 Main St"})
	require.NoError(t, err)

	assert.Nil(t, tree)
	assert.Equal(t, models.AsyncTimedOut, handle.State)
	assert.Equal(t, 10, handle.PollCount)
	assert.Equal(t, 10, provider.polls)
	assert.Zero(t, provider.fetches)
}

func TestAsync_TransientPollErrorsDoNotTerminate(t *testing.T) {
	provider := &fakeLegacy{
		createID: "4481723",
		statuses: []pollAnswer{
			{false, "", apperrors.UpstreamError("blip", nil)},
			{false, "", apperrors.RateLimitError("titlewire")},
			{true, "Complete", nil},
		},
		resultTree: map[string]interface{}{"Result": map[string]interface{}{}},
	}
	o := newTestOrchestrator(provider, newFakeClock())

	_, handle, err := o.Run(context.Background(), models.SearchQuery{Street: "123 Main St"})
	require.NoError(t, err)

	assert.Equal(t, models.AsyncComplete, handle.State)
	assert.Equal(t, 3, handle.PollCount)
}

func TestAsync_NonTransientPollErrorFails(t *testing.T) {
	provider := &fakeLegacy{
		createID: "4481723",
		statuses: []pollAnswer{{false, "", apperrors.AuthError("bad credentials", nil)}},
	}
	o := newTestOrchestrator(provider, newFakeClock())

	_, handle, err := o.Run(context.Background(), models.SearchQuery{Street: "123 Main St"})
	require.Error(t, err)

	assert.Equal(t, models.AsyncFailed, handle.State)
	assert.NotEmpty(t, handle.ErrorText)
	assert.Zero(t, provider.fetches)
}

func TestAsync_ProviderFailureStatus(t *testing.T) {
	provider := &fakeLegacy{
		createID: "4481723",
		statuses: []pollAnswer{{false, "Request Failed", nil}},
	}
	o := newTestOrchestrator(provider, newFakeClock())

	_, handle, err := o.Run(context.Background(), models.SearchQuery{Street: "123 Main St"})
	require.NoError(t, err)

	assert.Equal(t, models.AsyncFailed, handle.State)
	assert.Equal(t, "Request Failed", handle.ErrorText)
	assert.Equal(t, 1, handle.PollCount)
}

func TestAsync_CreateFailurePropagates(t *testing.T) {
	provider := &fakeLegacy{createErr: apperrors.UpstreamError("create down", nil)}
	o := newTestOrchestrator(provider, newFakeClock())

	_, handle, err := o.Run(context.Background(), models.SearchQuery{Street: "123 Main St"})
	require.Error(t, err)
	assert.Nil(t, handle)
}

func TestAsync_CancelledMidWait(t *testing.T) {
	provider := &fakeLegacy{
		createID: "4481723",
		statuses: []pollAnswer{{false, "In Process", nil}},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(provider, clock)

	ctx, cancel := context.WithCancel(context.Background())
	o.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, handle, err := o.Run(ctx, models.SearchQuery{Street: "123 Main St"})
	require.Error(t, err)
	assert.Equal(t, models.AsyncFailed, handle.State)
	assert.Zero(t, provider.polls)
}
