// Package mongostore adapts a MongoDB database to the store interfaces.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/goliatone/go-schema-migrate/internal/store"
)

// Store wraps one mongo database.
type Store struct {
	db *mongo.Database
}

var _ store.Store = (*Store)(nil)

// New wraps an existing database handle. Connection management is the
// caller's responsibility.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Connect dials a MongoDB deployment and returns a store over the named
// database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return New(client.Database(database)), nil
}

// Collection returns a handle to the named collection.
func (s *Store) Collection(name string) store.Collection {
	return &collection{coll: s.db.Collection(name)}
}

// RenameCollection renames a collection via the admin renameCollection
// command.
func (s *Store) RenameCollection(ctx context.Context, oldName, newName string) error {
	admin := s.db.Client().Database("admin")
	cmd := bson.D{
		{Key: "renameCollection", Value: s.db.Name() + "." + oldName},
		{Key: "to", Value: s.db.Name() + "." + newName},
	}
	if err := admin.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("mongostore: rename collection %q to %q: %w", oldName, newName, err)
	}
	return nil
}

type collection struct {
	coll *mongo.Collection
}

var _ store.Collection = (*collection)(nil)

func (c *collection) Name() string { return c.coll.Name() }

func (c *collection) CountDocuments(ctx context.Context, filter store.Filter) (int64, error) {
	return c.coll.CountDocuments(ctx, filter)
}

func (c *collection) Find(ctx context.Context, filter store.Filter) ([]bson.M, error) {
	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c *collection) ReplaceOne(ctx context.Context, filter store.Filter, doc bson.M, upsert bool) error {
	_, err := c.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(upsert))
	return err
}

func (c *collection) UpdateMany(ctx context.Context, filter store.Filter, update store.Update) (int64, error) {
	result, err := c.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	result, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// TransformField streams the documents carrying the field and writes back
// the ones the transform changed, one UpdateOne per document keyed by _id.
func (c *collection) TransformField(ctx context.Context, field string, fn store.TransformFunc) (int64, error) {
	cursor, err := c.coll.Find(ctx, bson.M{field: bson.M{"$exists": true}})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rewritten int64
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return rewritten, err
		}
		newValue, changed, err := fn(doc[field])
		if err != nil {
			return rewritten, err
		}
		if !changed {
			continue
		}
		_, err = c.coll.UpdateOne(ctx,
			bson.M{"_id": doc["_id"]},
			bson.M{"$set": bson.M{field: newValue}},
		)
		if err != nil {
			return rewritten, err
		}
		rewritten++
	}
	return rewritten, cursor.Err()
}

func (c *collection) Drop(ctx context.Context) error {
	return c.coll.Drop(ctx)
}
