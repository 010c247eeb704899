package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogStore keeps each collection as one JSONB row with a version counter.
type CatalogStore struct {
	pool *pgxpool.Pool
	obs  Observer
}

func NewCatalogStore(pool *pgxpool.Pool, obs Observer) *CatalogStore {
	return &CatalogStore{pool: pool, obs: observerOrNoop(obs)}
}

func (s *CatalogStore) Load(ctx context.Context, collection string) (catalog.Snapshot, error) {
	var snap catalog.Snapshot

	err := s.obs.ObserveDB("catalog.load", func() error {
		err := s.pool.QueryRow(ctx,
			`SELECT data, version FROM catalog_collections WHERE name = $1`,
			collection,
		).Scan(&snap.Data, &snap.Version)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err == nil {
			snap.Found = true
		}
		return err
	})

	return snap, err
}

func (s *CatalogStore) Replace(ctx context.Context, collection string, data []byte, ifVersion int64) (int64, error) {
	var version int64

	err := s.obs.ObserveDB("catalog.replace", func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var err error
			version, err = s.replaceTx(ctx, tx, catalog.Write{Collection: collection, Data: data, IfVersion: ifVersion})
			return err
		})
	})

	return version, err
}

// ReplaceAll rewrites every collection in one transaction, so a category
// delete and its product cascade commit together.
func (s *CatalogStore) ReplaceAll(ctx context.Context, writes []catalog.Write) error {
	return s.obs.ObserveDB("catalog.replace_all", func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for _, w := range writes {
				if _, err := s.replaceTx(ctx, tx, w); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *CatalogStore) replaceTx(ctx context.Context, tx pgx.Tx, w catalog.Write) (int64, error) {
	var current int64

	err := tx.QueryRow(ctx,
		`SELECT version FROM catalog_collections WHERE name = $1 FOR UPDATE`,
		w.Collection,
	).Scan(&current)

	if errors.Is(err, pgx.ErrNoRows) {
		if err := catalog.CheckVersion(0, w.IfVersion); err != nil {
			return 0, err
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO catalog_collections (name, data, version, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (name) DO NOTHING`,
			w.Collection, w.Data,
		)
		if err != nil {
			return 0, err
		}
		if tag.RowsAffected() == 1 {
			return 1, nil
		}

		// another writer created the row first
		if w.IfVersion != catalog.AnyVersion {
			return 0, catalog.ErrVersionConflict
		}
		return s.replaceTx(ctx, tx, w)
	}
	if err != nil {
		return 0, err
	}

	if err := catalog.CheckVersion(current, w.IfVersion); err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE catalog_collections
		SET data = $2, version = version + 1, updated_at = NOW()
		WHERE name = $1`,
		w.Collection, w.Data,
	)
	if err != nil {
		return 0, err
	}

	return current + 1, nil
}
