package mongorepo_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"github.com/geocoder89/storefront/internal/repo/mongorepo"
	"github.com/geocoder89/storefront/internal/repo/storetest"
	"github.com/google/uuid"
)

func TestCatalogStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	ctx := context.Background()

	storetest.Run(t, func(t *testing.T) catalog.Store {
		name := "storefront_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

		client, db, err := mongorepo.Connect(ctx, mongorepo.Config{URI: uri, Database: name})
		if err != nil {
			t.Fatalf("connect mongo: %v", err)
		}
		t.Cleanup(func() {
			_ = db.Drop(ctx)
			_ = client.Disconnect(ctx)
		})

		return mongorepo.NewCatalogStore(db)
	})
}
