// Package pg stores matchers in PostgreSQL through a pgx connection pool.
package pg

import (
	"context"
	"errors"
	"fmt"

	"eve-industry/internal/logger"
	"eve-industry/internal/matcher"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddl = `
CREATE TABLE IF NOT EXISTS industry_matchers (
	name       TEXT PRIMARY KEY,
	owner      BIGINT NOT NULL,
	kind       TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_industry_matchers_owner ON industry_matchers(owner);
`

// Repository is a matcher.Repository backed by Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	r := &Repository{pool: pool}
	if err := r.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Success("DB", "Connected to postgres")
	return r, nil
}

// Close releases the pool.
func (r *Repository) Close() { r.pool.Close() }

func (r *Repository) ensureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Repository) GetMatcher(ctx context.Context, name string) (*matcher.Matcher, error) {
	var (
		owner int64
		kind  string
		blob  []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT owner, kind, data::text FROM industry_matchers WHERE name = $1`, name,
	).Scan(&owner, &kind, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, matcher.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load matcher %q: %w", name, err)
	}
	return decode(name, owner, kind, blob)
}

func (r *Repository) UpsertMatcher(ctx context.Context, m *matcher.Matcher) error {
	blob, err := matcher.MarshalData(m.Data)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO industry_matchers (name, owner, kind, data, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, now())
		ON CONFLICT (name) DO UPDATE
		SET owner = EXCLUDED.owner, kind = EXCLUDED.kind, data = EXCLUDED.data, updated_at = now()`,
		m.Name, m.Owner, string(m.Kind), string(blob),
	)
	return err
}

func (r *Repository) DeleteMatcher(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM industry_matchers WHERE name = $1`, name)
	return err
}

func (r *Repository) ListMatchers(ctx context.Context, owner int64) ([]*matcher.Matcher, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, kind, data::text FROM industry_matchers WHERE owner = $1 ORDER BY name`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*matcher.Matcher
	for rows.Next() {
		var (
			name, kind string
			blob       []byte
		)
		if err := rows.Scan(&name, &kind, &blob); err != nil {
			return nil, err
		}
		m, err := decode(name, owner, kind, blob)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func decode(name string, owner int64, kind string, blob []byte) (*matcher.Matcher, error) {
	k, err := matcher.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", name, err)
	}
	data, err := matcher.UnmarshalData(k, blob)
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", name, err)
	}
	return &matcher.Matcher{Name: name, Owner: owner, Kind: k, Data: data}, nil
}
