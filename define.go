package umongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Values holds document field values keyed by field name.
type Values map[string]any

// Def declares a document type for Instance.Register.
type Def struct {
	// Name is the concrete type name, recorded as the discriminator value
	// for polymorphic documents.
	Name string
	// Collection is the physical collection. Defaults to the lowercased
	// name; inherited types always share their root's collection.
	Collection string
	// Inherit points at the registered parent type, nil for a root.
	Inherit *DocumentType
	// AllowInheritance permits child types to extend this one.
	AllowInheritance bool
	// Fields are the declared field descriptors, in order.
	Fields []*Field
	// Indexes declares explicit (possibly compound) indexes.
	Indexes []Index
	// Hooks are optional lifecycle callbacks.
	Hooks Hooks
}

// EmbeddedDef declares a nested-document schema for RegisterEmbedded.
type EmbeddedDef struct {
	Name   string
	Fields []*Field
}

// Index declares an explicit index over declared field names.
type Index struct {
	Keys   []string
	Unique bool
}

// InsertResult reports a successful insert to the post-insert hook.
type InsertResult struct {
	InsertedID any
}

// UpdateResult reports a successful update to the post-update hook.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DeleteResult reports a successful delete to the post-delete hook.
type DeleteResult struct {
	DeletedCount int64
}

// Hooks are optional lifecycle callbacks on a document type. A nil callback
// is a no-op. Each hook is awaited before the lifecycle proceeds; an error
// aborts the operation.
type Hooks struct {
	PreInsert  func(ctx context.Context, d *Doc, payload bson.M) error
	PostInsert func(ctx context.Context, d *Doc, res InsertResult, payload bson.M) error
	PreUpdate  func(ctx context.Context, d *Doc, query, payload bson.M) error
	PostUpdate func(ctx context.Context, d *Doc, res UpdateResult, payload bson.M) error
	PreDelete  func(ctx context.Context, d *Doc) error
	PostDelete func(ctx context.Context, d *Doc, res DeleteResult) error
}
