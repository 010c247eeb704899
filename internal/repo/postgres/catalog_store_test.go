package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/geocoder89/storefront/internal/repo/storetest"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func TestCatalogStore(t *testing.T) {
	pool := setupPool(t)

	storetest.Run(t, func(t *testing.T) catalog.Store {
		if _, err := pool.Exec(context.Background(), `TRUNCATE catalog_collections`); err != nil {
			t.Fatalf("failed to truncate catalog_collections: %v", err)
		}
		return postgres.NewCatalogStore(pool, nil)
	})
}
