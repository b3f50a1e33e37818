// Package memstore implements store.Store on plain in-memory maps. It
// supports the filter and update subset the migration actions use and backs
// the engine's tests.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-schema-migrate/internal/store"
)

// Store is an in-memory document store.
type Store struct {
	mu          sync.Mutex
	collections map[string][]bson.M
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{collections: map[string][]bson.M{}}
}

// Seed replaces the contents of a collection.
func (s *Store) Seed(name string, docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		copied = append(copied, cloneDoc(doc))
	}
	s.collections[name] = copied
}

// Dump returns a deep copy of a collection's documents.
func (s *Store) Dump(name string) []bson.M {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[name]
	copied := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		copied = append(copied, cloneDoc(doc))
	}
	return copied
}

// Collection returns a handle to the named collection, creating it lazily.
func (s *Store) Collection(name string) store.Collection {
	return &collection{store: s, name: name}
}

// RenameCollection moves the documents under a new name.
func (s *Store) RenameCollection(_ context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[newName]; ok {
		return fmt.Errorf("memstore: collection %q already exists", newName)
	}
	s.collections[newName] = s.collections[oldName]
	delete(s.collections, oldName)
	return nil
}

type collection struct {
	store *Store
	name  string
}

var _ store.Collection = (*collection)(nil)

func (c *collection) Name() string { return c.name }

func (c *collection) CountDocuments(_ context.Context, filter store.Filter) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var count int64
	for _, doc := range c.store.collections[c.name] {
		if matches(doc, filter) {
			count++
		}
	}
	return count, nil
}

func (c *collection) Find(_ context.Context, filter store.Filter) ([]bson.M, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var out []bson.M
	for _, doc := range c.store.collections[c.name] {
		if matches(doc, filter) {
			out = append(out, cloneDoc(doc))
		}
	}
	return out, nil
}

func (c *collection) InsertOne(_ context.Context, doc bson.M) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.collections[c.name] = append(c.store.collections[c.name], cloneDoc(doc))
	return nil
}

func (c *collection) ReplaceOne(_ context.Context, filter store.Filter, doc bson.M, upsert bool) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.collections[c.name]
	for i, existing := range docs {
		if matches(existing, filter) {
			docs[i] = cloneDoc(doc)
			return nil
		}
	}
	if upsert {
		c.store.collections[c.name] = append(docs, cloneDoc(doc))
	}
	return nil
}

func (c *collection) UpdateMany(_ context.Context, filter store.Filter, update store.Update) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var modified int64
	for _, doc := range c.store.collections[c.name] {
		if !matches(doc, filter) {
			continue
		}
		if applyUpdate(doc, update) {
			modified++
		}
	}
	return modified, nil
}

func (c *collection) DeleteMany(_ context.Context, filter store.Filter) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	docs := c.store.collections[c.name]
	kept := docs[:0]
	var removed int64
	for _, doc := range docs {
		if matches(doc, filter) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	c.store.collections[c.name] = kept
	return removed, nil
}

func (c *collection) TransformField(_ context.Context, field string, fn store.TransformFunc) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	var rewritten int64
	for _, doc := range c.store.collections[c.name] {
		value, ok := doc[field]
		if !ok {
			continue
		}
		newValue, changed, err := fn(value)
		if err != nil {
			return rewritten, err
		}
		if changed {
			doc[field] = newValue
			rewritten++
		}
	}
	return rewritten, nil
}

func (c *collection) Drop(_ context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	delete(c.store.collections, c.name)
	return nil
}

// matches evaluates the filter subset the engine uses: implicit AND of
// equality, $exists, $in, $nin, and $ne conditions.
func matches(doc bson.M, filter store.Filter) bool {
	for field, condition := range filter {
		value, present := doc[field]
		cond, isOp := condition.(bson.M)
		if !isOp {
			if !present || !reflect.DeepEqual(value, condition) {
				return false
			}
			continue
		}
		for op, arg := range cond {
			switch op {
			case "$exists":
				want, _ := arg.(bool)
				if present != want {
					return false
				}
			case "$eq":
				if !present || !reflect.DeepEqual(value, arg) {
					return false
				}
			case "$ne":
				if present && reflect.DeepEqual(value, arg) {
					return false
				}
			case "$in":
				if !present || !contains(arg, value) {
					return false
				}
			case "$nin":
				if present && contains(arg, value) {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func contains(list any, value any) bool {
	v := reflect.ValueOf(list)
	if v.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if reflect.DeepEqual(v.Index(i).Interface(), value) {
			return true
		}
	}
	return false
}

func applyUpdate(doc bson.M, update store.Update) bool {
	changed := false
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			continue
		}
		switch op {
		case "$set":
			for field, value := range fields {
				if existing, present := doc[field]; !present || !reflect.DeepEqual(existing, value) {
					doc[field] = value
					changed = true
				}
			}
		case "$unset":
			for field := range fields {
				if _, present := doc[field]; present {
					delete(doc, field)
					changed = true
				}
			}
		case "$rename":
			for oldName, newNameValue := range fields {
				newName, _ := newNameValue.(string)
				if value, present := doc[oldName]; present && newName != "" {
					doc[newName] = value
					delete(doc, oldName)
					changed = true
				}
			}
		}
	}
	return changed
}

func cloneDoc(doc bson.M) bson.M {
	copied := make(bson.M, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	return copied
}
