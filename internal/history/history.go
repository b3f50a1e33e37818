// Package history persists migration state in the target database: which
// migrations have been applied, and the schema snapshot the applied
// migrations produced.
package history

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
)

// Default collection names. Both live alongside the migrated data so the
// history always matches the database it describes.
const (
	DefaultAppliedCollection  = "schema_migrations"
	DefaultSnapshotCollection = "schema_migrations_snapshot"
)

const snapshotDocID = "current"

// History reads and writes migration state through a store.
type History struct {
	store        store.Store
	appliedColl  string
	snapshotColl string
}

// Option configures a History.
type Option func(*History)

// WithAppliedCollection overrides the applied-migrations collection name.
func WithAppliedCollection(name string) Option {
	return func(h *History) {
		if name != "" {
			h.appliedColl = name
		}
	}
}

// WithSnapshotCollection overrides the snapshot collection name.
func WithSnapshotCollection(name string) Option {
	return func(h *History) {
		if name != "" {
			h.snapshotColl = name
		}
	}
}

// New returns a History backed by st.
func New(st store.Store, opts ...Option) *History {
	h := &History{
		store:        st,
		appliedColl:  DefaultAppliedCollection,
		snapshotColl: DefaultSnapshotCollection,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Applied returns the set of applied migration names.
func (h *History) Applied(ctx context.Context) (map[string]bool, error) {
	docs, err := h.store.Collection(h.appliedColl).Find(ctx, store.Filter{})
	if err != nil {
		return nil, domain.MigrationErrorf("load applied migrations: %v", err)
	}
	applied := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if name, ok := doc["name"].(string); ok && name != "" {
			applied[name] = true
		}
	}
	return applied, nil
}

// MarkApplied records a migration as applied. Re-marking is idempotent.
func (h *History) MarkApplied(ctx context.Context, name string) error {
	err := h.store.Collection(h.appliedColl).ReplaceOne(ctx,
		store.Filter{"name": name},
		bson.M{"name": name, "applied_at": time.Now().UTC()},
		true,
	)
	if err != nil {
		return domain.MigrationErrorf("mark %q applied: %v", name, err)
	}
	return nil
}

// MarkUnapplied removes a migration's applied record.
func (h *History) MarkUnapplied(ctx context.Context, name string) error {
	_, err := h.store.Collection(h.appliedColl).DeleteMany(ctx, store.Filter{"name": name})
	if err != nil {
		return domain.MigrationErrorf("mark %q unapplied: %v", name, err)
	}
	return nil
}

// LoadSnapshot returns the stored schema snapshot. The second return value
// is false when no snapshot has been saved yet.
func (h *History) LoadSnapshot(ctx context.Context) (schema.Schema, bool, error) {
	docs, err := h.store.Collection(h.snapshotColl).Find(ctx, store.Filter{"_id": snapshotDocID})
	if err != nil {
		return nil, false, domain.MigrationErrorf("load schema snapshot: %v", err)
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	payload, ok := docs[0]["snapshot"].(string)
	if !ok {
		return nil, false, domain.MigrationErrorf("schema snapshot document has no payload")
	}
	s, err := schema.UnmarshalSnapshot([]byte(payload))
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// SaveSnapshot stores the schema snapshot, replacing any previous one.
func (h *History) SaveSnapshot(ctx context.Context, s schema.Schema) error {
	data, err := schema.MarshalSnapshot(s)
	if err != nil {
		return err
	}
	err = h.store.Collection(h.snapshotColl).ReplaceOne(ctx,
		store.Filter{"_id": snapshotDocID},
		bson.M{"_id": snapshotDocID, "snapshot": string(data), "updated_at": time.Now().UTC()},
		true,
	)
	if err != nil {
		return domain.MigrationErrorf("save schema snapshot: %v", err)
	}
	return nil
}
