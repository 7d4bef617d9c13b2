package rdb

import (
	"context"
	"testing"

	"eve-industry/internal/matcher"
	"eve-industry/internal/matcher/matchertest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestRepositoryConformance(t *testing.T) {
	matchertest.RunRepository(t, func(t *testing.T) matcher.Repository {
		repo, _ := newTestRepo(t)
		return repo
	})
}

func TestOwnerChangeMovesIndex(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)

	m := matcher.New("shared", 1, matcher.KindProdBlock)
	require.NoError(t, repo.UpsertMatcher(ctx, m))
	m.Owner = 2
	require.NoError(t, repo.UpsertMatcher(ctx, m))

	members, err := mr.Members(ownerKey(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, members)
	old, err := repo.client.SMembers(ctx, ownerKey(1)).Result()
	require.NoError(t, err)
	assert.Empty(t, old, "old owner index should be empty")
}

func TestListDropsDanglingIndex(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)

	require.NoError(t, repo.UpsertMatcher(ctx, matcher.New("keep", 5, matcher.KindBlueprint)))
	_, err := mr.SAdd(ownerKey(5), "ghost")
	require.NoError(t, err)

	ms, err := repo.ListMatchers(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "keep", ms[0].Name)
	ghost, err := repo.client.SIsMember(ctx, ownerKey(5), "ghost").Result()
	require.NoError(t, err)
	assert.False(t, ghost)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestOpenPings(t *testing.T) {
	mr := miniredis.RunT(t)
	repo, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, repo.Close())
}
