// Package postgres provides the Postgres-backed pattern store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/searchscout/searchscout/internal/pattern"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for pattern rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PatternStore persists the single current search pattern per domain.
type PatternStore struct {
	pool  pool
	table string
}

// New creates a Postgres-backed PatternStore using the provided config.
func New(ctx context.Context, cfg Config) (*PatternStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "search_patterns"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PatternStore{pool: p, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*PatternStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "search_patterns"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PatternStore{pool: p, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *PatternStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert writes the current pattern for a domain, replacing any prior
// row. The domain column carries a unique constraint, so concurrent
// writers cannot produce duplicate current rows.
func (s *PatternStore) Upsert(ctx context.Context, p pattern.SearchPattern) error {
	if p.Domain == "" {
		return fmt.Errorf("pattern domain is required")
	}
	evidenceJSON, err := json.Marshal(p.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	domain,
	pattern_type,
	confidence,
	evidence,
	discovered_at,
	last_verified_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)
ON CONFLICT (domain) DO UPDATE SET
	pattern_type = EXCLUDED.pattern_type,
	confidence = EXCLUDED.confidence,
	evidence = EXCLUDED.evidence,
	discovered_at = EXCLUDED.discovered_at,
	last_verified_at = EXCLUDED.last_verified_at`, s.table)

	args := []any{
		p.Domain,
		string(p.Type),
		p.Confidence,
		evidenceJSON,
		p.DiscoveredAt,
		p.LastVerifiedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return classify(fmt.Errorf("upsert pattern: %w", err))
	}
	return nil
}

// FetchCurrent loads the current pattern for a domain.
func (s *PatternStore) FetchCurrent(ctx context.Context, domain string) (pattern.SearchPattern, error) {
	query := fmt.Sprintf(`
SELECT pattern_type, confidence, evidence, discovered_at, last_verified_at
FROM %s
WHERE domain = $1`, s.table)

	var (
		typ          string
		confidence   float64
		evidenceJSON []byte
		discovered   time.Time
		verified     time.Time
	)
	row := s.pool.QueryRow(ctx, query, domain)
	if err := row.Scan(&typ, &confidence, &evidenceJSON, &discovered, &verified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pattern.SearchPattern{}, pattern.ErrPatternNotFound
		}
		return pattern.SearchPattern{}, classify(fmt.Errorf("fetch pattern: %w", err))
	}

	var evidence pattern.Evidence
	if len(evidenceJSON) > 0 {
		if err := json.Unmarshal(evidenceJSON, &evidence); err != nil {
			return pattern.SearchPattern{}, fmt.Errorf("unmarshal evidence: %w", err)
		}
	}
	return pattern.SearchPattern{
		Domain:         domain,
		Type:           pattern.Type(typ),
		Confidence:     confidence,
		Evidence:       evidence,
		DiscoveredAt:   discovered,
		LastVerifiedAt: verified,
	}, nil
}

// MarkVerified bumps last_verified_at for a domain whose live pattern
// still matches the stored one.
func (s *PatternStore) MarkVerified(ctx context.Context, domain string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET last_verified_at = $2 WHERE domain = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, domain, at)
	if err != nil {
		return classify(fmt.Errorf("mark verified: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return pattern.ErrPatternNotFound
	}
	return nil
}

// classify maps driver errors onto the persistence taxonomy: integrity
// violations (SQLSTATE class 23) are terminal conflicts, transport
// failures are retryable connection errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
			return &pattern.PersistenceError{Kind: pattern.PersistenceConflict, Err: err}
		}
		return &pattern.PersistenceError{Kind: pattern.PersistenceConnection, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &pattern.PersistenceError{Kind: pattern.PersistenceConnection, Err: err}
	}
	return &pattern.PersistenceError{Kind: pattern.PersistenceConnection, Err: err}
}
