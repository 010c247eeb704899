// Package storetest holds the behaviour every catalog store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) catalog.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("missing collection", func(t *testing.T) { missing(t, newStore(t)) })
	t.Run("replace bumps version", func(t *testing.T) { bumps(t, newStore(t)) })
	t.Run("conditional replace", func(t *testing.T) { conditional(t, newStore(t)) })
	t.Run("first write race", func(t *testing.T) { firstWrite(t, newStore(t)) })
	t.Run("collections are independent", func(t *testing.T) { independent(t, newStore(t)) })
	t.Run("concurrent unconditional writes", func(t *testing.T) { concurrent(t, newStore(t)) })

	t.Run("batch", func(t *testing.T) {
		s := newStore(t)
		b, ok := s.(catalog.Batcher)
		if !ok {
			t.Skip("store has no batch write")
		}
		batch(t, s, b)
	})
}

func missing(t *testing.T, s catalog.Store) {
	snap, err := s.Load(context.Background(), catalog.ProductsKey)
	require.NoError(t, err)
	assert.False(t, snap.Found)
	assert.Zero(t, snap.Version)
}

func bumps(t *testing.T, s catalog.Store) {
	ctx := context.Background()

	v, err := s.Replace(ctx, catalog.CategoriesKey, []byte(`[{"id":"1","name":"Cakes"}]`), catalog.AnyVersion)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.Replace(ctx, catalog.CategoriesKey, []byte(`[]`), catalog.AnyVersion)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	snap, err := s.Load(ctx, catalog.CategoriesKey)
	require.NoError(t, err)
	assert.True(t, snap.Found)
	assert.Equal(t, int64(2), snap.Version)
	assert.JSONEq(t, `[]`, string(snap.Data))
}

func conditional(t *testing.T, s catalog.Store) {
	ctx := context.Background()

	v, err := s.Replace(ctx, catalog.ProductsKey, []byte(`[]`), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	_, err = s.Replace(ctx, catalog.ProductsKey, []byte(`[{"id":"x"}]`), 0)
	assert.ErrorIs(t, err, catalog.ErrVersionConflict)

	_, err = s.Replace(ctx, catalog.ProductsKey, []byte(`[{"id":"x"}]`), 7)
	assert.ErrorIs(t, err, catalog.ErrVersionConflict)

	v, err = s.Replace(ctx, catalog.ProductsKey, []byte(`[{"id":"y"}]`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	snap, err := s.Load(ctx, catalog.ProductsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"y"}]`, string(snap.Data))
}

func firstWrite(t *testing.T, s catalog.Store) {
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Replace(ctx, catalog.CategoriesKey, []byte(`[]`), 0); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func independent(t *testing.T, s catalog.Store) {
	ctx := context.Background()

	_, err := s.Replace(ctx, catalog.CategoriesKey, []byte(`[{"id":"1"}]`), catalog.AnyVersion)
	require.NoError(t, err)

	snap, err := s.Load(ctx, catalog.ProductsKey)
	require.NoError(t, err)
	assert.False(t, snap.Found)
}

func concurrent(t *testing.T, s catalog.Store) {
	ctx := context.Background()
	const writers = 8

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Replace(ctx, catalog.ProductsKey, []byte(`[]`), catalog.AnyVersion)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := s.Load(ctx, catalog.ProductsKey)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), snap.Version)
}

func batch(t *testing.T, s catalog.Store, b catalog.Batcher) {
	ctx := context.Background()

	_, err := s.Replace(ctx, catalog.CategoriesKey, []byte(`[{"id":"1"}]`), catalog.AnyVersion)
	require.NoError(t, err)
	_, err = s.Replace(ctx, catalog.ProductsKey, []byte(`[{"id":"p","categoryId":"1"}]`), catalog.AnyVersion)
	require.NoError(t, err)

	// a stale product version must leave the categories untouched too
	err = b.ReplaceAll(ctx, []catalog.Write{
		{Collection: catalog.CategoriesKey, Data: []byte(`[]`), IfVersion: 1},
		{Collection: catalog.ProductsKey, Data: []byte(`[]`), IfVersion: 5},
	})
	assert.ErrorIs(t, err, catalog.ErrVersionConflict)

	snap, err := s.Load(ctx, catalog.CategoriesKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(snap.Data))
	assert.Equal(t, int64(1), snap.Version)

	err = b.ReplaceAll(ctx, []catalog.Write{
		{Collection: catalog.CategoriesKey, Data: []byte(`[]`), IfVersion: 1},
		{Collection: catalog.ProductsKey, Data: []byte(`[]`), IfVersion: 1},
	})
	require.NoError(t, err)

	for _, name := range []string{catalog.CategoriesKey, catalog.ProductsKey} {
		snap, err := s.Load(ctx, name)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(snap.Data), name)
		assert.Equal(t, int64(2), snap.Version, name)
	}
}
