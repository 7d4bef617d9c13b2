// Package rdb stores matchers in Redis. Each matcher is a hash at
// matcher:<name> with owner, kind and data fields; a set per owner indexes
// the names.
package rdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"eve-industry/internal/logger"
	"eve-industry/internal/matcher"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "eve-industry:"

// Repository is a matcher.Repository backed by Redis.
type Repository struct {
	client *redis.Client
}

// Open connects using a redis:// URL and pings the server.
func Open(ctx context.Context, url string) (*Repository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Success("DB", "Connected to redis at "+opts.Addr)
	return New(client), nil
}

// New wraps an existing client.
func New(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Close closes the underlying client.
func (r *Repository) Close() error { return r.client.Close() }

func matcherKey(name string) string { return keyPrefix + "matcher:" + name }

func ownerKey(owner int64) string {
	return keyPrefix + "owner:" + strconv.FormatInt(owner, 10) + ":matchers"
}

func (r *Repository) GetMatcher(ctx context.Context, name string) (*matcher.Matcher, error) {
	vals, err := r.client.HGetAll(ctx, matcherKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("load matcher %q: %w", name, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%q: %w", name, matcher.ErrNotFound)
	}
	return decode(name, vals)
}

func (r *Repository) UpsertMatcher(ctx context.Context, m *matcher.Matcher) error {
	blob, err := matcher.MarshalData(m.Data)
	if err != nil {
		return err
	}
	prevOwner, err := r.client.HGet(ctx, matcherKey(m.Name), "owner").Int64()
	hadPrev := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("load matcher owner %q: %w", m.Name, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, matcherKey(m.Name), map[string]any{
			"owner": m.Owner,
			"kind":  string(m.Kind),
			"data":  string(blob),
		})
		if hadPrev && prevOwner != m.Owner {
			pipe.SRem(ctx, ownerKey(prevOwner), m.Name)
		}
		pipe.SAdd(ctx, ownerKey(m.Owner), m.Name)
		return nil
	})
	return err
}

func (r *Repository) DeleteMatcher(ctx context.Context, name string) error {
	owner, err := r.client.HGet(ctx, matcherKey(name), "owner").Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load matcher owner %q: %w", name, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, matcherKey(name))
		pipe.SRem(ctx, ownerKey(owner), name)
		return nil
	})
	return err
}

func (r *Repository) ListMatchers(ctx context.Context, owner int64) ([]*matcher.Matcher, error) {
	names, err := r.client.SMembers(ctx, ownerKey(owner)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*matcher.Matcher, 0, len(names))
	for _, name := range names {
		m, err := r.GetMatcher(ctx, name)
		if errors.Is(err, matcher.ErrNotFound) {
			// Index entry outlived its hash; drop it.
			r.client.SRem(ctx, ownerKey(owner), name)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func decode(name string, vals map[string]string) (*matcher.Matcher, error) {
	owner, err := strconv.ParseInt(vals["owner"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("matcher %q owner: %w", name, err)
	}
	kind, err := matcher.ParseKind(vals["kind"])
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", name, err)
	}
	data, err := matcher.UnmarshalData(kind, []byte(vals["data"]))
	if err != nil {
		return nil, fmt.Errorf("matcher %q: %w", name, err)
	}
	return &matcher.Matcher{Name: name, Owner: owner, Kind: kind, Data: data}, nil
}
