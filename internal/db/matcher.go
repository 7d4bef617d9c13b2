package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eve-industry/internal/matcher"
)

// GetMatcher loads a matcher by name.
func (d *DB) GetMatcher(ctx context.Context, name string) (*matcher.Matcher, error) {
	var (
		owner      int64
		kind, blob string
	)
	err := d.sql.QueryRowContext(ctx,
		"SELECT owner, kind, data FROM matchers WHERE name = ?", name,
	).Scan(&owner, &kind, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, matcher.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load matcher %q: %w", name, err)
	}
	return decodeRow(name, owner, kind, blob)
}

// UpsertMatcher writes the whole matcher, replacing any previous row.
func (d *DB) UpsertMatcher(ctx context.Context, m *matcher.Matcher) error {
	blob, err := matcher.MarshalData(m.Data)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO matchers (name, owner, kind, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, kind = excluded.kind,
		 data = excluded.data, updated_at = excluded.updated_at`,
		m.Name, m.Owner, string(m.Kind), string(blob), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteMatcher removes a matcher row. Deleting a missing name is not an error.
func (d *DB) DeleteMatcher(ctx context.Context, name string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM matchers WHERE name = ?", name)
	return err
}

// ListMatchers returns every matcher owned by owner.
func (d *DB) ListMatchers(ctx context.Context, owner int64) ([]*matcher.Matcher, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT name, kind, data FROM matchers WHERE owner = ? ORDER BY name", owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*matcher.Matcher
	for rows.Next() {
		var name, kind, blob string
		if err := rows.Scan(&name, &kind, &blob); err != nil {
			return nil, err
		}
		m, err := decodeRow(name, owner, kind, blob)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func decodeRow(name string, owner int64, kind, blob string) (*matcher.Matcher, error) {
	k, err := matcher.ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", name, err)
	}
	data, err := matcher.UnmarshalData(k, []byte(blob))
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", name, err)
	}
	return &matcher.Matcher{Name: name, Owner: owner, Kind: k, Data: data}, nil
}
