// Package matchertest holds a conformance suite every matcher.Repository
// implementation runs in its own tests.
package matchertest

import (
	"context"
	"testing"

	"eve-industry/internal/matcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepository exercises repo through a fresh Store. newRepo must return an
// empty repository each call.
func RunRepository(t *testing.T, newRepo func(t *testing.T) matcher.Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("MissingIsNotFound", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.GetMatcher(ctx, "nope")
		assert.ErrorIs(t, err, matcher.ErrNotFound)
	})

	t.Run("RoundTripEveryKind", func(t *testing.T) {
		repo := newRepo(t)
		cases := []struct {
			kind    matcher.Kind
			payload matcher.Payload
		}{
			{matcher.KindBlueprint, matcher.Efficiency{ME: 0.9, TE: 0.8}},
			{matcher.KindStructure, matcher.Facility{StructureID: 1035466617946}},
			{matcher.KindProdBlock, matcher.Block{Level: 3}},
		}
		for _, tc := range cases {
			m := matcher.New("m-"+string(tc.kind), 42, tc.kind)
			m.Data[matcher.KeyGroup]["Frigate"] = tc.payload
			require.NoError(t, repo.UpsertMatcher(ctx, m))

			got, err := repo.GetMatcher(ctx, m.Name)
			require.NoError(t, err)
			assert.Equal(t, m.Kind, got.Kind)
			assert.Equal(t, int64(42), got.Owner)
			assert.Equal(t, tc.payload, got.Data[matcher.KeyGroup]["Frigate"])
			for _, kt := range matcher.KeyTypes {
				assert.NotNil(t, got.Data[kt], "table %s missing", kt)
			}
		}
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		repo := newRepo(t)
		m := matcher.New("caps", 1, matcher.KindProdBlock)
		m.Data[matcher.KeyCategory]["Ship"] = matcher.Block{Level: 1}
		require.NoError(t, repo.UpsertMatcher(ctx, m))
		m.Data[matcher.KeyCategory]["Ship"] = matcher.Block{Level: 2}
		require.NoError(t, repo.UpsertMatcher(ctx, m))

		got, err := repo.GetMatcher(ctx, "caps")
		require.NoError(t, err)
		assert.Equal(t, matcher.Block{Level: 2}, got.Data[matcher.KeyCategory]["Ship"])
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.UpsertMatcher(ctx, matcher.New("a", 7, matcher.KindBlueprint)))
		require.NoError(t, repo.UpsertMatcher(ctx, matcher.New("b", 7, matcher.KindStructure)))
		require.NoError(t, repo.UpsertMatcher(ctx, matcher.New("c", 8, matcher.KindBlueprint)))

		ms, err := repo.ListMatchers(ctx, 7)
		require.NoError(t, err)
		assert.Len(t, ms, 2)

		require.NoError(t, repo.DeleteMatcher(ctx, "a"))
		_, err = repo.GetMatcher(ctx, "a")
		assert.ErrorIs(t, err, matcher.ErrNotFound)

		ms, err = repo.ListMatchers(ctx, 7)
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, "b", ms[0].Name)
	})

	t.Run("StoreScenario", func(t *testing.T) {
		s := matcher.NewStore(newRepo(t), nil)
		_, err := s.Create(ctx, "main", 99, matcher.KindBlueprint)
		require.NoError(t, err)
		_, err = s.SetOverride(ctx, "main", 99, matcher.KeyBlueprint, "Rifter Blueprint", matcher.Efficiency{ME: 0.9, TE: 0.8})
		require.NoError(t, err)

		p, ok, err := s.Resolve(ctx, "main", 99, matcher.KeyBlueprint, "Rifter Blueprint")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, matcher.Efficiency{ME: 0.9, TE: 0.8}, p)

		require.NoError(t, s.UnsetOverride(ctx, "main", 99, matcher.KeyBlueprint, "Rifter Blueprint"))
		_, ok, err = s.Resolve(ctx, "main", 99, matcher.KeyBlueprint, "Rifter Blueprint")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
