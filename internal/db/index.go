package db

import (
	"errors"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// IndexModel describes a single secondary index: an ordered key set plus the
// unique/sparse flags. The name is derived from the keys when left empty.
type IndexModel struct {
	Name   string
	Keys   bson.D // attribute -> direction (1 ascending)
	Unique bool
	Sparse bool
}

// KeyName builds the conventional index name ("field_1_other_1").
func (m IndexModel) KeyName() string {
	parts := make([]string, 0, len(m.Keys))
	for _, k := range m.Keys {
		dir := 1
		if v, ok := k.Value.(int); ok {
			dir = v
		}
		parts = append(parts, k.Key+"_"+strconv.Itoa(dir))
	}
	return strings.Join(parts, "_")
}

// Equal reports whether two models describe the same index.
func (m IndexModel) Equal(o IndexModel) bool {
	if m.Unique != o.Unique || m.Sparse != o.Sparse || len(m.Keys) != len(o.Keys) {
		return false
	}
	for i, k := range m.Keys {
		if o.Keys[i].Key != k.Key {
			return false
		}
	}
	return true
}

// Validate checks that the model is well-formed.
func (m IndexModel) Validate() error {
	if len(m.Keys) == 0 {
		return errors.New("db: index requires at least one key")
	}
	seen := make(map[string]bool, len(m.Keys))
	for _, k := range m.Keys {
		if k.Key == "" {
			return errors.New("db: index key name is required")
		}
		if seen[k.Key] {
			return errors.New("db: duplicate index key " + k.Key)
		}
		seen[k.Key] = true
	}
	return nil
}
