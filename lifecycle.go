package umongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/kunla/umongo/internal/db"
)

type commitConfig struct {
	conditions bson.M
}

// CommitOption configures a Commit or Delete call.
type CommitOption func(*commitConfig)

// WithConditions adds extra query conditions to a conditional update or
// delete: the operation fails with ErrUpdate/ErrDelete when the stored
// document no longer matches. Passing conditions while the document was
// never inserted is a programming error and panics: there is no identity to
// condition on.
func WithConditions(conditions bson.M) CommitOption {
	return func(c *commitConfig) { c.conditions = conditions }
}

// Commit persists the document. A transient document is inserted (full
// payload, identity assigned); a created document with dirty fields issues a
// partial update; a created document with no dirty fields is a no-op. On any
// validation failure the document state is left untouched.
func (d *Doc) Commit(ctx context.Context, opts ...CommitOption) error {
	cfg := commitConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	if !d.created {
		if cfg.conditions != nil {
			panic("umongo: cannot use conditions on a document not yet created")
		}
		return d.insert(ctx)
	}
	if len(d.dirty) == 0 {
		return nil
	}
	return d.update(ctx, cfg.conditions)
}

func (d *Doc) insert(ctx context.Context) error {
	if err := d.validate(ctx, nil); err != nil {
		return err
	}
	if err := d.checkUnique(ctx, nil); err != nil {
		return err
	}

	if _, ok := d.values[idFieldName]; !ok {
		d.values[idFieldName] = primitive.NewObjectID()
	}
	payload := d.Payload()

	if h := d.dt.hooks.PreInsert; h != nil {
		if err := h(ctx, d, payload); err != nil {
			return err
		}
	}

	info, err := d.dt.inst.store.InsertOne(ctx, d.dt.collection, payload)
	if err != nil {
		return err
	}
	d.dt.inst.logger.Debug("document inserted",
		zap.String("collection", d.dt.collection),
		zap.String("type", d.dt.name),
		zap.Any("id", info.InsertedID),
	)

	if h := d.dt.hooks.PostInsert; h != nil {
		if err := h(ctx, d, InsertResult{InsertedID: info.InsertedID}, payload); err != nil {
			return err
		}
	}

	d.created = true
	d.clearDirty()
	return nil
}

func (d *Doc) update(ctx context.Context, conditions bson.M) error {
	scope := make(map[string]struct{}, len(d.dirty))
	for name := range d.dirty {
		scope[name] = struct{}{}
	}
	if err := d.validate(ctx, scope); err != nil {
		return err
	}
	if err := d.checkUnique(ctx, scope); err != nil {
		return err
	}

	payload := d.UpdatePayload()
	query := bson.M{"_id": d.ID()}
	for k, v := range d.dt.schema.cookFilter(conditions) {
		query[k] = v
	}

	if h := d.dt.hooks.PreUpdate; h != nil {
		if err := h(ctx, d, query, payload); err != nil {
			return err
		}
	}

	info, err := d.dt.inst.store.UpdateOne(ctx, d.dt.collection, query, payload, false)
	if err != nil {
		return err
	}
	if info.MatchedCount == 0 {
		// Conditions not met or document vanished: keep the dirty-set so the
		// caller can retry.
		return ErrUpdate
	}
	d.dt.inst.logger.Debug("document updated",
		zap.String("collection", d.dt.collection),
		zap.Any("id", d.ID()),
		zap.Int64("modified", info.ModifiedCount),
	)

	if h := d.dt.hooks.PostUpdate; h != nil {
		res := UpdateResult{MatchedCount: info.MatchedCount, ModifiedCount: info.ModifiedCount}
		if err := h(ctx, d, res, payload); err != nil {
			return err
		}
	}

	d.clearDirty()
	return nil
}

// Delete removes the stored document. The in-memory instance keeps its field
// values and identity, so a deliberate re-commit reinserts it.
func (d *Doc) Delete(ctx context.Context, opts ...CommitOption) error {
	cfg := commitConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	if !d.created {
		return ErrNotCreated
	}

	if h := d.dt.hooks.PreDelete; h != nil {
		if err := h(ctx, d); err != nil {
			return err
		}
	}

	query := bson.M{"_id": d.ID()}
	for k, v := range d.dt.schema.cookFilter(cfg.conditions) {
		query[k] = v
	}
	info, err := d.dt.inst.store.DeleteOne(ctx, d.dt.collection, query)
	if err != nil {
		return err
	}
	if info.DeletedCount == 0 {
		return ErrDelete
	}
	d.dt.inst.logger.Debug("document deleted",
		zap.String("collection", d.dt.collection),
		zap.Any("id", d.ID()),
	)

	if h := d.dt.hooks.PostDelete; h != nil {
		if err := h(ctx, d, DeleteResult{DeletedCount: info.DeletedCount}); err != nil {
			return err
		}
	}

	d.created = false
	d.clearDirty()
	return nil
}

// Reload replaces the in-memory state with the stored document, dropping any
// uncommitted mutation. Fails with ErrNotCreated when the document was never
// inserted or no longer exists.
func (d *Doc) Reload(ctx context.Context) error {
	if !d.created {
		return ErrNotCreated
	}
	raw, err := d.dt.inst.store.FindOne(ctx, d.dt.collection, bson.M{"_id": d.ID()})
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotCreated
	}
	if err != nil {
		return err
	}
	vals, err := d.dt.schema.fromWireDoc(raw)
	if err != nil {
		return err
	}
	d.values = vals
	d.clearDirty()
	return nil
}

// IOValidate runs structural then asynchronous validation over the whole
// document without touching the store state. Commit performs the same passes
// before writing, so the reported messages match.
func (d *Doc) IOValidate(ctx context.Context) error {
	return d.validate(ctx, nil)
}

func (d *Doc) validate(ctx context.Context, scope map[string]struct{}) error {
	if fe := d.validateFields(scope); len(fe) > 0 {
		return &ValidationError{Fields: fe}
	}
	fe, err := d.ioValidateFields(ctx, scope)
	if err != nil {
		return err
	}
	if len(fe) > 0 {
		return &ValidationError{Fields: fe}
	}
	return nil
}
