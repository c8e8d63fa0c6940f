package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "propertygate/internal/common/errors"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Config{
		MaxFailures:           3,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	})

	fail := func() error { return apperrors.UpstreamError("boom", nil) }

	for i := 0; i < 3; i++ {
		require.Error(t, b.Execute(context.Background(), fail))
	}
	assert.True(t, b.IsOpen())

	// Calls through an open breaker surface as upstream errors without
	// invoking fn
	called := false
	err := b.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
	assert.False(t, called)
}

func TestBreaker_CleanOutcomesDoNotTrip(t *testing.T) {
	b := New("test", Config{
		MaxFailures:           2,
		Timeout:               time.Minute,
		MaxConcurrentRequests: 1,
	})

	// No-match and caller mistakes are not provider ill health
	for i := 0; i < 10; i++ {
		_ = b.Execute(context.Background(), func() error {
			return apperrors.NotFoundError("parcel")
		})
		_ = b.Execute(context.Background(), func() error {
			return apperrors.ValidationError("missing street")
		})
	}
	assert.False(t, b.IsOpen())
}

func TestBreaker_SuccessKeepsClosed(t *testing.T) {
	b := New("test", DefaultConfig())

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	}
	assert.False(t, b.IsOpen())

	stats := b.Stats()
	assert.Equal(t, "closed", stats["state"])
}

func TestBreaker_InvalidConfigFallsBackToDefault(t *testing.T) {
	b := New("test", Config{})
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	assert.False(t, b.IsOpen())
}
