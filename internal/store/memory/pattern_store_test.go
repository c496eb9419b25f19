package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/searchscout/searchscout/internal/pattern"
)

func TestPatternStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewPatternStore()
	now := time.Unix(1700000000, 0).UTC()
	p := pattern.SearchPattern{
		Domain:         "example.com",
		Type:           pattern.TypeQueryParam,
		Confidence:     0.75,
		Evidence:       pattern.Evidence{Template: "/search?q={query}"},
		DiscoveredAt:   now,
		LastVerifiedAt: now,
	}

	require.NoError(t, store.Upsert(context.Background(), p))
	got, err := store.FetchCurrent(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestPatternStoreUpsertReplaces(t *testing.T) {
	t.Parallel()

	store := NewPatternStore()
	now := time.Unix(1700000000, 0).UTC()
	first := pattern.SearchPattern{Domain: "example.com", Type: pattern.TypeQueryParam, Confidence: 0.6, DiscoveredAt: now}
	second := pattern.SearchPattern{Domain: "example.com", Type: pattern.TypeAPIEndpoint, Confidence: 0.9, DiscoveredAt: now}

	require.NoError(t, store.Upsert(context.Background(), first))
	require.NoError(t, store.Upsert(context.Background(), second))

	got, err := store.FetchCurrent(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, pattern.TypeAPIEndpoint, got.Type)
	require.Equal(t, 1, store.Len())
}

func TestPatternStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewPatternStore()
	_, err := store.FetchCurrent(context.Background(), "missing.example")
	require.ErrorIs(t, err, pattern.ErrPatternNotFound)

	err = store.MarkVerified(context.Background(), "missing.example", time.Now().UTC())
	require.ErrorIs(t, err, pattern.ErrPatternNotFound)
}

func TestPatternStoreMarkVerified(t *testing.T) {
	t.Parallel()

	store := NewPatternStore()
	discovered := time.Unix(1700000000, 0).UTC()
	verified := discovered.Add(24 * time.Hour)
	p := pattern.SearchPattern{Domain: "example.com", Type: pattern.TypeFormSubmit, Confidence: 0.7, DiscoveredAt: discovered, LastVerifiedAt: discovered}

	require.NoError(t, store.Upsert(context.Background(), p))
	require.NoError(t, store.MarkVerified(context.Background(), "example.com", verified))

	got, err := store.FetchCurrent(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, verified, got.LastVerifiedAt)
	require.Equal(t, discovered, got.DiscoveredAt)
}
