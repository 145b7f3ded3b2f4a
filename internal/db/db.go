// Package db defines the narrow store facade the mapper talks through.
// Adapters live in subpackages; the mapper never touches a driver directly.
package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Store is the collaborator contract consumed by the mapper. Payloads and
// filters are plain bson values; the adapter owns their wire encoding.
type Store interface {
	InsertOne(ctx context.Context, collection string, doc bson.M) (InsertInfo, error)
	UpdateOne(ctx context.Context, collection string, filter, update bson.M, upsert bool) (UpdateInfo, error)
	DeleteOne(ctx context.Context, collection string, filter bson.M) (DeleteInfo, error)

	// FindOne returns ErrNotFound when no document matches.
	FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error)
	Find(ctx context.Context, collection string, filter bson.M, opts FindOptions) ([]bson.M, error)
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)

	// EnsureIndexes is idempotent: recreating an index with an identical
	// definition is a no-op, a conflicting redefinition is ErrIndexConflict.
	EnsureIndexes(ctx context.Context, collection string, models []IndexModel) error
	ListIndexes(ctx context.Context, collection string) ([]IndexModel, error)
	DropIndexes(ctx context.Context, collection string) error

	DropCollection(ctx context.Context, collection string) error
	Close(ctx context.Context) error
}

// InsertInfo reports the identity assigned by an insert.
type InsertInfo struct {
	InsertedID any
}

// UpdateInfo reports match/modify counts of an update.
type UpdateInfo struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DeleteInfo reports the match count of a delete.
type DeleteInfo struct {
	DeletedCount int64
}

// FindOptions narrows a find: zero values mean "no limit", "no skip",
// "natural order".
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  bson.D
}
