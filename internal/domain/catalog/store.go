package catalog

import (
	"context"
	"errors"
)

// AnyVersion makes Replace overwrite unconditionally (last writer wins).
const AnyVersion int64 = -1

var ErrVersionConflict = errors.New("collection was modified concurrently")

// Snapshot is one whole persisted collection. Version is 0 until the first
// write and grows by one on every Replace.
type Snapshot struct {
	Data    []byte
	Version int64
	Found   bool
}

// Store persists serialized collections by name. There is no partial update:
// every write replaces the whole collection.
type Store interface {
	Load(ctx context.Context, collection string) (Snapshot, error)
	Replace(ctx context.Context, collection string, data []byte, ifVersion int64) (int64, error)
}

type Write struct {
	Collection string
	Data       []byte
	IfVersion  int64
}

// Batcher is implemented by stores that can replace several collections in a
// single transaction.
type Batcher interface {
	ReplaceAll(ctx context.Context, writes []Write) error
}

// CheckVersion reports ErrVersionConflict when a conditional write targets a
// stale version.
func CheckVersion(current, ifVersion int64) error {
	if ifVersion != AnyVersion && ifVersion != current {
		return ErrVersionConflict
	}
	return nil
}
