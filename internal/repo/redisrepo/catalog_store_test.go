package redisrepo_test

import (
	"context"
	"os"
	"testing"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/geocoder89/storefront/internal/redisclient"
	"github.com/geocoder89/storefront/internal/repo/redisrepo"
	"github.com/geocoder89/storefront/internal/repo/storetest"
	"github.com/google/uuid"
)

func TestCatalogStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := redisclient.Connect(ctx, redisclient.Config{Addr: addr})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	storetest.Run(t, func(t *testing.T) catalog.Store {
		prefix := "storefront-test:" + uuid.NewString() + ":"
		t.Cleanup(func() {
			keys, _ := client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		})
		return redisrepo.NewCatalogStore(client, prefix)
	})
}
