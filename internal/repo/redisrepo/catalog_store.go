// Package redisrepo keeps catalog collections in Redis hashes.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "storefront:catalog:"
	fieldData     = "data"
	fieldVersion  = "version"
)

// CatalogStore stores each collection as a hash {data, version}. Conditional
// writes use WATCH/MULTI.
type CatalogStore struct {
	client *redis.Client
	prefix string
}

func NewCatalogStore(client *redis.Client, prefix string) *CatalogStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &CatalogStore{client: client, prefix: prefix}
}

func (s *CatalogStore) key(collection string) string {
	return s.prefix + collection
}

func (s *CatalogStore) Load(ctx context.Context, collection string) (catalog.Snapshot, error) {
	vals, err := s.client.HMGet(ctx, s.key(collection), fieldData, fieldVersion).Result()
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("redis hmget: %w", err)
	}

	data, ok := vals[0].(string)
	if !ok {
		return catalog.Snapshot{}, nil
	}

	version, err := parseVersion(vals[1])
	if err != nil {
		return catalog.Snapshot{}, err
	}

	return catalog.Snapshot{Data: []byte(data), Version: version, Found: true}, nil
}

func (s *CatalogStore) Replace(ctx context.Context, collection string, data []byte, ifVersion int64) (int64, error) {
	var next int64

	err := s.watch(ctx, func(tx *redis.Tx) error {
		versions, err := s.currentVersions(ctx, tx, []catalog.Write{{Collection: collection, IfVersion: ifVersion}})
		if err != nil {
			return err
		}

		next = versions[0] + 1
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, s.key(collection), fieldData, data, fieldVersion, next)
			return nil
		})
		return err
	}, ifVersion == catalog.AnyVersion, s.key(collection))

	if err != nil {
		return 0, err
	}
	return next, nil
}

// ReplaceAll writes every collection in one MULTI/EXEC block.
func (s *CatalogStore) ReplaceAll(ctx context.Context, writes []catalog.Write) error {
	keys := make([]string, 0, len(writes))
	unconditional := true
	for _, w := range writes {
		keys = append(keys, s.key(w.Collection))
		if w.IfVersion != catalog.AnyVersion {
			unconditional = false
		}
	}

	return s.watch(ctx, func(tx *redis.Tx) error {
		versions, err := s.currentVersions(ctx, tx, writes)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for i, w := range writes {
				p.HSet(ctx, s.key(w.Collection), fieldData, w.Data, fieldVersion, versions[i]+1)
			}
			return nil
		})
		return err
	}, unconditional, keys...)
}

func (s *CatalogStore) currentVersions(ctx context.Context, tx *redis.Tx, writes []catalog.Write) ([]int64, error) {
	out := make([]int64, len(writes))

	for i, w := range writes {
		raw, err := tx.HGet(ctx, s.key(w.Collection), fieldVersion).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis hget: %w", err)
		}

		current := int64(0)
		if err == nil {
			if current, err = parseVersion(raw); err != nil {
				return nil, err
			}
		}

		if err := catalog.CheckVersion(current, w.IfVersion); err != nil {
			return nil, err
		}
		out[i] = current
	}

	return out, nil
}

func (s *CatalogStore) watch(ctx context.Context, fn func(*redis.Tx) error, retry bool, keys ...string) error {
	return watchLoop(ctx, retry, retryDelay, func() error {
		return s.client.Watch(ctx, fn, keys...)
	})
}

// watchLoop runs one WATCH/EXEC round per call to try. A lost round is a
// version conflict for conditional writes. Unconditional writes keep going
// until they commit or ctx ends, since every lost round means another writer
// committed.
func watchLoop(ctx context.Context, retry bool, delay func(int) time.Duration, try func() error) error {
	for attempt := 0; ; attempt++ {
		err := try()
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if !retry {
			return catalog.ErrVersionConflict
		}

		select {
		case <-time.After(delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// retryDelay doubles from 1ms up to 32ms, plus up to 1ms of jitter so racing
// writers spread out.
func retryDelay(attempt int) time.Duration {
	const (
		base     = time.Millisecond
		capDelay = 32 * time.Millisecond
	)

	delay := capDelay
	if attempt < 5 {
		delay = base << attempt
	}
	return delay + time.Duration(rand.Int63n(int64(time.Millisecond)))
}

func parseVersion(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis catalog version %q: %w", s, err)
	}
	return n, nil
}
