package catalog_test

import (
	"context"
	"testing"

	"github.com/geocoder89/storefront/internal/catalog"
	domain "github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_RoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore()
	c := catalog.NewCollection[domain.Category](store, domain.CategoriesKey)

	want := []domain.Category{{ID: "9", Name: "Z"}, {ID: "1", Name: "A"}, {ID: "5", Name: "M"}}
	_, err := c.Replace(ctx, want, domain.AnyVersion)
	require.NoError(t, err)

	got, version, err := c.Load(ctx, domain.SeedCategories())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(1), version)
}

func TestCollection_PersistedShapeIsAPlainArray(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore()
	c := catalog.NewCollection[domain.Product](store, domain.ProductsKey)

	_, err := c.Replace(ctx, []domain.Product{{ID: "1", Name: "n", Description: "d", CategoryID: "c"}}, domain.AnyVersion)
	require.NoError(t, err)

	snap, err := store.Load(ctx, domain.ProductsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","name":"n","description":"d","categoryId":"c"}]`, string(snap.Data))

	_, err = c.Replace(ctx, nil, domain.AnyVersion)
	require.NoError(t, err)
	snap, _ = store.Load(ctx, domain.ProductsKey)
	assert.Equal(t, "[]", string(snap.Data))
}

func TestCollection_NilSeedWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore()
	c := catalog.NewCollection[domain.Product](store, domain.ProductsKey)

	got, _, err := c.Load(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	snap, err := store.Load(ctx, domain.ProductsKey)
	require.NoError(t, err)
	assert.False(t, snap.Found)
}

func TestCollection_SeedRaceKeepsFirstWriter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCatalogStore()
	c := catalog.NewCollection[domain.Category](store, domain.CategoriesKey)

	// the other process seeds between our Load and our seed write
	racing := &raceStore{Store: store, before: func() {
		_, _ = store.Replace(ctx, domain.CategoriesKey, []byte(`[{"id":"x","name":"Theirs"}]`), 0)
	}}

	got, _, err := catalog.NewCollection[domain.Category](racing, domain.CategoriesKey).Load(ctx, domain.SeedCategories())
	require.NoError(t, err)
	assert.Equal(t, []domain.Category{{ID: "x", Name: "Theirs"}}, got)

	persisted, _, err := c.Load(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, got, persisted)
}

type raceStore struct {
	domain.Store
	before func()
	fired  bool
}

func (r *raceStore) Replace(ctx context.Context, name string, data []byte, ifVersion int64) (int64, error) {
	if !r.fired {
		r.fired = true
		r.before()
	}
	return r.Store.Replace(ctx, name, data, ifVersion)
}
