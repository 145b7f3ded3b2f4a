// Package memory implements the store facade in process memory. It backs the
// test suite and small prototypes: documents are held as ordered bson maps per
// collection and filters are evaluated by a small matcher covering the query
// operators the mapper emits.
package memory

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kunla/umongo/internal/db"
)

// Store is an in-process db.Store. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	docs    []bson.M // insertion order
	indexes []db.IndexModel
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{
			indexes: []db.IndexModel{{
				Name: "_id_",
				Keys: bson.D{{Key: "_id", Value: 1}},
			}},
		}
		s.collections[name] = c
	}
	return c
}

// InsertOne appends a deep copy of doc, assigning an ObjectID identity when
// the payload carries none.
func (s *Store) InsertOne(_ context.Context, collection string, doc bson.M) (db.InsertInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyDoc(doc)
	id, ok := stored["_id"]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		stored["_id"] = id
	}
	c := s.coll(collection)
	c.docs = append(c.docs, stored)
	return db.InsertInfo{InsertedID: id}, nil
}

// UpdateOne applies $set/$unset to the first matching document.
func (s *Store) UpdateOne(
	_ context.Context, collection string, filter, update bson.M, upsert bool,
) (db.UpdateInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	for _, doc := range c.docs {
		if !matchDoc(doc, filter) {
			continue
		}
		modified := applyUpdate(doc, update)
		info := db.UpdateInfo{MatchedCount: 1}
		if modified {
			info.ModifiedCount = 1
		}
		return info, nil
	}

	if upsert {
		stored := bson.M{}
		for k, v := range filter {
			if _, isOp := v.(bson.M); !isOp && k[0] != '$' {
				stored[k] = copyValue(v)
			}
		}
		applyUpdate(stored, update)
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = primitive.NewObjectID()
		}
		c.docs = append(c.docs, stored)
		return db.UpdateInfo{}, nil
	}
	return db.UpdateInfo{}, nil
}

// DeleteOne removes the first matching document.
func (s *Store) DeleteOne(_ context.Context, collection string, filter bson.M) (db.DeleteInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	for i, doc := range c.docs {
		if matchDoc(doc, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return db.DeleteInfo{DeletedCount: 1}, nil
		}
	}
	return db.DeleteInfo{}, nil
}

// FindOne returns a copy of the first matching document or db.ErrNotFound.
func (s *Store) FindOne(_ context.Context, collection string, filter bson.M) (bson.M, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, db.ErrNotFound
	}
	for _, doc := range c.docs {
		if matchDoc(doc, filter) {
			return copyDoc(doc), nil
		}
	}
	return nil, db.ErrNotFound
}

// Find returns copies of matching documents in insertion (or sorted) order.
func (s *Store) Find(
	_ context.Context, collection string, filter bson.M, opts db.FindOptions,
) ([]bson.M, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []bson.M
	if c, ok := s.collections[collection]; ok {
		for _, doc := range c.docs {
			if matchDoc(doc, filter) {
				matched = append(matched, copyDoc(doc))
			}
		}
	}

	if len(opts.Sort) > 0 {
		sortDocs(matched, opts.Sort)
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// Count returns the number of matching documents.
func (s *Store) Count(_ context.Context, collection string, filter bson.M) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if c, ok := s.collections[collection]; ok {
		for _, doc := range c.docs {
			if matchDoc(doc, filter) {
				n++
			}
		}
	}
	return n, nil
}

// EnsureIndexes records index models. Recreating an identical index is a
// no-op; a same-name model with different keys or flags is a conflict.
func (s *Store) EnsureIndexes(_ context.Context, collection string, models []db.IndexModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	for _, m := range models {
		if err := m.Validate(); err != nil {
			return err
		}
		if m.Name == "" {
			m.Name = m.KeyName()
		}
		conflict := false
		exists := false
		for _, have := range c.indexes {
			if have.Name == m.Name {
				if have.Equal(m) {
					exists = true
				} else {
					conflict = true
				}
				break
			}
		}
		if conflict {
			return &db.Error{Op: "ensure index " + m.Name, Err: db.ErrIndexConflict}
		}
		if !exists {
			c.indexes = append(c.indexes, m)
		}
	}
	return nil
}

// ListIndexes returns the recorded index models, including the implicit _id_.
func (s *Store) ListIndexes(_ context.Context, collection string) ([]db.IndexModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	out := make([]db.IndexModel, len(c.indexes))
	copy(out, c.indexes)
	return out, nil
}

// DropIndexes removes all indexes except the implicit _id_.
func (s *Store) DropIndexes(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.coll(collection)
	kept := c.indexes[:0]
	for _, m := range c.indexes {
		if m.Name == "_id_" {
			kept = append(kept, m)
		}
	}
	c.indexes = kept
	return nil
}

// DropCollection removes all documents and indexes of a collection.
func (s *Store) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(context.Context) error { return nil }

func sortDocs(docs []bson.M, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			dir := 1
			if v, ok := k.Value.(int); ok {
				dir = v
			}
			cmp := compareValues(docs[i][k.Key], docs[j][k.Key])
			if cmp == 0 {
				continue
			}
			if dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
