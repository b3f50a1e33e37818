// Package store abstracts the document store the migration engine mutates.
// The engine treats it as an opaque capability: filtered bulk updates,
// counts, collection management. Adapters live in the mongostore and
// memstore subpackages.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Filter is a query document in the store's native filter syntax.
type Filter = bson.M

// Update is a mutation document ($set, $unset, $rename).
type Update = bson.M

// TransformFunc rewrites one field value. It returns the replacement value
// and whether the document must be written back; returning changed=false
// leaves the document untouched, which keeps converters idempotent.
type TransformFunc func(value any) (newValue any, changed bool, err error)

// Collection is a named document collection.
type Collection interface {
	Name() string

	CountDocuments(ctx context.Context, filter Filter) (int64, error)
	Find(ctx context.Context, filter Filter) ([]bson.M, error)
	InsertOne(ctx context.Context, doc bson.M) error
	ReplaceOne(ctx context.Context, filter Filter, doc bson.M, upsert bool) error
	UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)

	// TransformField applies fn to the named field of every document that
	// carries it and writes back the changed ones. It returns the number of
	// rewritten documents.
	TransformField(ctx context.Context, field string, fn TransformFunc) (int64, error)

	Drop(ctx context.Context) error
}

// Store is a handle to one logical database.
type Store interface {
	Collection(name string) Collection
	RenameCollection(ctx context.Context, oldName, newName string) error
}
