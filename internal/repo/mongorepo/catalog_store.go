// Package mongorepo keeps catalog collections as MongoDB documents.
package mongorepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/storefront/internal/domain/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "catalog_collections"

type collectionDoc struct {
	Name    string `bson:"_id"`
	Data    string `bson:"data"`
	Version int64  `bson:"version"`
}

// CatalogStore keeps one document per catalog collection. The version field
// makes conditional writes a filtered update.
type CatalogStore struct {
	coll *mongo.Collection
}

func NewCatalogStore(db *mongo.Database) *CatalogStore {
	return &CatalogStore{coll: db.Collection(collectionName)}
}

func (s *CatalogStore) Load(ctx context.Context, collection string) (catalog.Snapshot, error) {
	var doc collectionDoc

	err := s.coll.FindOne(ctx, bson.M{"_id": collection}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return catalog.Snapshot{}, nil
		}
		return catalog.Snapshot{}, fmt.Errorf("find collection: %w", err)
	}

	return catalog.Snapshot{Data: []byte(doc.Data), Version: doc.Version, Found: true}, nil
}

func (s *CatalogStore) Replace(ctx context.Context, collection string, data []byte, ifVersion int64) (int64, error) {
	switch ifVersion {
	case catalog.AnyVersion:
		return s.overwrite(ctx, collection, data)
	case 0:
		return s.insertFirst(ctx, collection, data)
	default:
		return s.swap(ctx, collection, data, ifVersion)
	}
}

func (s *CatalogStore) overwrite(ctx context.Context, collection string, data []byte) (int64, error) {
	var doc collectionDoc

	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{
			"$set": bson.M{"data": string(data)},
			"$inc": bson.M{"version": int64(1)},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("overwrite collection: %w", err)
	}

	return doc.Version, nil
}

func (s *CatalogStore) insertFirst(ctx context.Context, collection string, data []byte) (int64, error) {
	_, err := s.coll.InsertOne(ctx, collectionDoc{Name: collection, Data: string(data), Version: 1})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, catalog.ErrVersionConflict
		}
		return 0, fmt.Errorf("insert collection: %w", err)
	}
	return 1, nil
}

func (s *CatalogStore) swap(ctx context.Context, collection string, data []byte, ifVersion int64) (int64, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": collection, "version": ifVersion},
		bson.M{
			"$set": bson.M{"data": string(data)},
			"$inc": bson.M{"version": int64(1)},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("update collection: %w", err)
	}
	if res.MatchedCount == 0 {
		return 0, catalog.ErrVersionConflict
	}
	return ifVersion + 1, nil
}
