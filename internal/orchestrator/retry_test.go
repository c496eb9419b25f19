package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchscout/searchscout/internal/pattern"
)

func TestRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(3, time.Second, 30*time.Second)

	retryable := &pattern.FetchError{Kind: pattern.FetchTimeout, URL: "https://a.example/"}
	terminal := &pattern.FetchError{Kind: pattern.FetchNavigation, URL: "https://a.example/"}

	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(retryable, 1))
	require.True(t, p.ShouldRetry(retryable, 2))
	require.False(t, p.ShouldRetry(retryable, 3), "budget exhausted")
	require.False(t, p.ShouldRetry(terminal, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.True(t, p.ShouldRetry(&pattern.PersistenceError{Kind: pattern.PersistenceConnection, Err: errors.New("down")}, 1))
	require.False(t, p.ShouldRetry(&pattern.PersistenceError{Kind: pattern.PersistenceConflict, Err: errors.New("dup")}, 1))
}

func TestRetryPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	base := time.Second
	p := newRetryPolicy(5, base, 30*time.Second)

	tests := []struct {
		attempt int
		min     time.Duration
	}{
		{attempt: 1, min: base},
		{attempt: 2, min: 2 * base},
		{attempt: 3, min: 4 * base},
	}
	for _, tt := range tests {
		for range 20 {
			got := p.Backoff(tt.attempt)
			require.GreaterOrEqual(t, got, tt.min, "attempt %d", tt.attempt)
			require.Less(t, got, tt.min+tt.min/4+time.Nanosecond, "attempt %d jitter over 25%%", tt.attempt)
		}
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(10, time.Second, 4*time.Second)
	got := p.Backoff(8)
	require.LessOrEqual(t, got, 5*time.Second)
	require.GreaterOrEqual(t, got, 4*time.Second)
}

func TestRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(0, 0, 0)
	require.Equal(t, 3, p.maxAttempts)
	require.Equal(t, time.Second, p.baseDelay)
	require.Equal(t, 30*time.Second, p.maxDelay)
}
