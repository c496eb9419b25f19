package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/searchscout/searchscout/internal/pattern"
)

var testTime = time.Unix(1700000000, 0).UTC()

func samplePattern() pattern.SearchPattern {
	return pattern.SearchPattern{
		Domain:         "example.com",
		Type:           pattern.TypeQueryParam,
		Confidence:     0.8,
		Evidence:       pattern.Evidence{Template: "/search?q={query}"},
		DiscoveredAt:   testTime,
		LastVerifiedAt: testTime,
	}
}

func TestUpsertInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	p := samplePattern()
	mock.ExpectExec("INSERT INTO search_patterns").
		WithArgs(
			p.Domain,
			string(p.Type),
			p.Confidence,
			[]byte(`{"template":"/search?q={query}"}`),
			p.DiscoveredAt,
			p.LastVerifiedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Upsert(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertIdempotent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	p := samplePattern()
	args := []any{
		p.Domain,
		string(p.Type),
		p.Confidence,
		[]byte(`{"template":"/search?q={query}"}`),
		p.DiscoveredAt,
		p.LastVerifiedAt,
	}

	// The second identical upsert hits ON CONFLICT and updates in place,
	// leaving exactly one current row.
	mock.ExpectExec("INSERT INTO search_patterns").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO search_patterns").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.Upsert(context.Background(), p))
	require.NoError(t, store.Upsert(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertClassifiesIntegrityViolation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO search_patterns").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err = store.Upsert(context.Background(), samplePattern())
	var pe *pattern.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, pattern.PersistenceConflict, pe.Kind)
	require.False(t, pattern.IsRetryable(err))
}

func TestUpsertClassifiesConnectionLoss(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO search_patterns").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	err = store.Upsert(context.Background(), samplePattern())
	var pe *pattern.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, pattern.PersistenceConnection, pe.Kind)
	require.True(t, pattern.IsRetryable(err))
}

func TestFetchCurrentReturnsPattern(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"pattern_type", "confidence", "evidence", "discovered_at", "last_verified_at"}).
		AddRow("query_param", 0.8, []byte(`{"template":"/search?q={query}"}`), testTime, testTime)
	mock.ExpectQuery("SELECT pattern_type, confidence, evidence").
		WithArgs("example.com").
		WillReturnRows(rows)

	got, err := store.FetchCurrent(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, pattern.TypeQueryParam, got.Type)
	require.InDelta(t, 0.8, got.Confidence, 1e-9)
	require.Equal(t, "/search?q={query}", got.Evidence.Template)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchCurrentNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT pattern_type, confidence, evidence").
		WithArgs("missing.example").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.FetchCurrent(context.Background(), "missing.example")
	require.ErrorIs(t, err, pattern.ErrPatternNotFound)
}

func TestMarkVerified(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE search_patterns SET last_verified_at").
		WithArgs("example.com", testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkVerified(context.Background(), "example.com", testTime))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkVerifiedMissingDomain(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "search_patterns")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE search_patterns SET last_verified_at").
		WithArgs("missing.example", testTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.MarkVerified(context.Background(), "missing.example", testTime)
	require.ErrorIs(t, err, pattern.ErrPatternNotFound)
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad; drop table")
	require.Error(t, err)

	_, err = NewWithPool(nil, "search_patterns")
	require.Error(t, err)
}
