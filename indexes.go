package umongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/kunla/umongo/internal/db"
)

// indexModels derives the index descriptors of a type from its inheritance
// chain. The derivation is recomputed on every call: descriptors are derived
// data owned by the schema, never persisted on their own.
//
// Policy for polymorphic hierarchies: unique fields and explicit indexes
// declared on a subtype are compounded with the discriminator so uniqueness
// is scoped per concrete type; anything declared on the root stays global
// across the hierarchy. An inheritable root also gets a plain discriminator
// index for the implicit find filters.
func (dt *DocumentType) indexModels() []db.IndexModel {
	var models []db.IndexModel
	for _, t := range dt.chain() {
		subtype := t.parent != nil
		for _, f := range t.ownFields {
			if !f.unique {
				continue
			}
			keys := bson.D{{Key: f.attribute, Value: 1}}
			if subtype {
				keys = append(keys, bson.E{Key: clsAttribute, Value: 1})
			}
			models = append(models, db.IndexModel{
				Keys:   keys,
				Unique: true,
				Sparse: !f.required,
			})
		}
		for _, ix := range t.indexes {
			keys := make(bson.D, 0, len(ix.Keys)+1)
			for _, name := range ix.Keys {
				attr, err := t.schema.attrOf(name)
				if err != nil {
					continue // rejected at Register; unreachable for bound types
				}
				keys = append(keys, bson.E{Key: attr, Value: 1})
			}
			if subtype {
				keys = append(keys, bson.E{Key: clsAttribute, Value: 1})
			}
			models = append(models, db.IndexModel{Keys: keys, Unique: ix.Unique})
		}
		if t.parent == nil && t.allowInheritance {
			models = append(models, db.IndexModel{Keys: bson.D{{Key: clsAttribute, Value: 1}}})
		}
	}
	for i := range models {
		models[i].Name = models[i].KeyName()
	}
	return models
}

// EnsureIndexes creates the derived indexes on the physical collection.
// Idempotent: recreating identical indexes is a no-op, a conflicting
// redefinition surfaces the store's error.
func (dt *DocumentType) EnsureIndexes(ctx context.Context) error {
	models := dt.indexModels()
	if err := dt.inst.store.EnsureIndexes(ctx, dt.collection, models); err != nil {
		return err
	}
	dt.inst.logger.Debug("indexes ensured",
		zap.String("collection", dt.collection),
		zap.String("type", dt.name),
		zap.Int("count", len(models)),
	)
	return nil
}

// checkUnique enforces declared unique indexes before a write: one
// count per index, scoped to the index key set, excluding the document's own
// identity. Absent values do not participate (sparse semantics). Every
// failing index contributes to a single ValidationError.
func (d *Doc) checkUnique(ctx context.Context, scope map[string]struct{}) error {
	fe := FieldErrors{}
	for _, model := range d.dt.indexModels() {
		if !model.Unique {
			continue
		}

		var fieldNames []string
		query := bson.M{}
		skip := false
		inScope := scope == nil
		for _, key := range model.Keys {
			if key.Key == clsAttribute {
				query[clsAttribute] = d.dt.name
				continue
			}
			f, ok := d.dt.schema.byAttr[key.Key]
			if !ok {
				skip = true
				break
			}
			v, set := d.values[f.name]
			if !set {
				skip = true
				break
			}
			if scope != nil {
				if _, dirty := scope[f.name]; dirty {
					inScope = true
				}
			}
			fieldNames = append(fieldNames, f.name)
			query[key.Key] = f.toWire(v)
		}
		if skip || !inScope || len(fieldNames) == 0 {
			continue
		}
		if id := d.ID(); id != nil {
			query["_id"] = bson.M{"$ne": id}
		}

		n, err := d.dt.inst.store.Count(ctx, d.dt.collection, query)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if len(fieldNames) == 1 {
			fe.Append(fieldNames[0], msgUniqueField)
		} else {
			msg := compoundUniqueMessage(fieldNames)
			for _, name := range fieldNames {
				fe.Append(name, msg)
			}
		}
	}
	if len(fe) > 0 {
		return &ValidationError{Fields: fe}
	}
	return nil
}
