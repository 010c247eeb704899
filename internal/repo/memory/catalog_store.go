package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/storefront/internal/domain/catalog"
)

type collectionRow struct {
	data    []byte
	version int64
}

// CatalogStore keeps collections in process memory.
type CatalogStore struct {
	mu    sync.RWMutex
	items map[string]collectionRow
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		items: make(map[string]collectionRow),
	}
}

func (s *CatalogStore) Load(_ context.Context, collection string) (catalog.Snapshot, error) {
	s.mu.RLock()
	row, ok := s.items[collection]
	s.mu.RUnlock()

	if !ok {
		return catalog.Snapshot{}, nil
	}

	return catalog.Snapshot{Data: clone(row.data), Version: row.version, Found: true}, nil
}

func (s *CatalogStore) Replace(_ context.Context, collection string, data []byte, ifVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.items[collection]
	if err := catalog.CheckVersion(row.version, ifVersion); err != nil {
		return 0, err
	}

	row = collectionRow{data: clone(data), version: row.version + 1}
	s.items[collection] = row

	return row.version, nil
}

// ReplaceAll applies every write or none of them.
func (s *CatalogStore) ReplaceAll(_ context.Context, writes []catalog.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if err := catalog.CheckVersion(s.items[w.Collection].version, w.IfVersion); err != nil {
			return err
		}
	}

	for _, w := range writes {
		prev := s.items[w.Collection]
		s.items[w.Collection] = collectionRow{data: clone(w.Data), version: prev.version + 1}
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
