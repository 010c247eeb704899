package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/geocoder89/storefront/internal/domain/catalog"
)

// Collection is a typed view over one persisted collection.
type Collection[T any] struct {
	store domain.Store
	name  string
}

func NewCollection[T any](store domain.Store, name string) Collection[T] {
	return Collection[T]{store: store, name: name}
}

func (c Collection[T]) Name() string {
	return c.name
}

// Load returns the persisted records. When nothing has been persisted yet the
// seed is written back and returned, so seeding happens once. A nil seed
// yields an empty list and writes nothing.
func (c Collection[T]) Load(ctx context.Context, seed []T) ([]T, int64, error) {
	snap, err := c.store.Load(ctx, c.name)
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", c.name, err)
	}

	if snap.Found {
		records, err := c.decode(snap.Data)
		if err != nil {
			return nil, 0, err
		}
		return records, snap.Version, nil
	}

	if seed == nil {
		return []T{}, snap.Version, nil
	}

	version, err := c.Replace(ctx, seed, snap.Version)
	if errors.Is(err, domain.ErrVersionConflict) {
		// another writer seeded first; take theirs
		return c.Load(ctx, nil)
	}
	if err != nil {
		return nil, 0, err
	}

	out := make([]T, len(seed))
	copy(out, seed)
	return out, version, nil
}

func (c Collection[T]) Replace(ctx context.Context, records []T, ifVersion int64) (int64, error) {
	data, err := c.Encode(records)
	if err != nil {
		return 0, err
	}

	version, err := c.store.Replace(ctx, c.name, data, ifVersion)
	if err != nil {
		return 0, fmt.Errorf("replace %s: %w", c.name, err)
	}
	return version, nil
}

// Encode serializes records as a plain JSON array; nil becomes [].
func (c Collection[T]) Encode(records []T) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return data, nil
}

func (c Collection[T]) decode(data []byte) ([]T, error) {
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}
