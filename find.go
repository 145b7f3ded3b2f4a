package umongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kunla/umongo/internal/db"
)

// defaultPageSize is the batch size of paginated finds when the caller sets
// no limit.
const defaultPageSize = 100

type findConfig struct {
	limit    int64
	skip     int64
	sort     bson.D
	pageSize int64
}

// FindOption narrows a find operation.
type FindOption func(*findConfig)

// Limit caps the total number of returned documents.
func Limit(n int64) FindOption {
	return func(c *findConfig) { c.limit = n }
}

// Skip discards the first n matching documents.
func Skip(n int64) FindOption {
	return func(c *findConfig) { c.skip = n }
}

// Sort orders results by the given keys (field name -> direction).
func Sort(keys bson.D) FindOption {
	return func(c *findConfig) { c.sort = keys }
}

// PageSize sets the batch size of a paginated find. Only FindPaged honors
// it; eager finds fetch everything at once.
func PageSize(n int64) FindOption {
	return func(c *findConfig) { c.pageSize = n }
}

// cookSort translates sort keys through storage attribute aliases.
func (dt *DocumentType) cookSort(sort bson.D) bson.D {
	if len(sort) == 0 {
		return sort
	}
	out := make(bson.D, len(sort))
	for i, k := range sort {
		out[i] = bson.E{Key: dt.schema.cookPath(k.Key), Value: k.Value}
	}
	return out
}

// searchFilter translates field names in a caller filter through storage
// attribute aliases and augments it with the implicit discriminator clause: a
// find on a subtype matches that subtype and its descendants; a find on the
// root spans the whole hierarchy.
func (dt *DocumentType) searchFilter(filter bson.M) bson.M {
	out := dt.schema.cookFilter(filter)
	if dt.parent != nil {
		names := dt.descendantNames()
		if len(names) == 1 {
			out[clsAttribute] = names[0]
		} else {
			out[clsAttribute] = bson.M{"$in": names}
		}
	}
	return out
}

// normalizeFilter accepts a bson.M filter, a raw identity, or nil.
func normalizeFilter(filter any) (bson.M, error) {
	switch f := filter.(type) {
	case nil:
		return bson.M{}, nil
	case bson.M:
		return f, nil
	case primitive.ObjectID:
		return bson.M{"_id": f}, nil
	default:
		return nil, fmt.Errorf("umongo: unsupported filter type %T", filter)
	}
}

// FindOne returns the first matching document hydrated as its concrete
// type, or nil when nothing matches. The filter may be a bson.M query, an
// identity value, or nil.
func (dt *DocumentType) FindOne(ctx context.Context, filter any) (*Doc, error) {
	q, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	raw, err := dt.inst.store.FindOne(ctx, dt.collection, dt.searchFilter(q))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dt.hydrate(raw)
}

// Find eagerly materializes every matching document in query order.
func (dt *DocumentType) Find(ctx context.Context, filter bson.M, opts ...FindOption) ([]*Doc, error) {
	cfg := findConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	raws, err := dt.inst.store.Find(ctx, dt.collection, dt.searchFilter(filter), db.FindOptions{
		Limit: cfg.limit,
		Skip:  cfg.skip,
		Sort:  dt.cookSort(cfg.sort),
	})
	if err != nil {
		return nil, err
	}
	docs := make([]*Doc, 0, len(raws))
	for _, raw := range raws {
		d, err := dt.hydrate(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Count returns the number of matching documents, honoring the implicit
// discriminator clause.
func (dt *DocumentType) Count(ctx context.Context, filter bson.M) (int64, error) {
	return dt.inst.store.Count(ctx, dt.collection, dt.searchFilter(filter))
}

// Cursor is a restartable pagination continuation: Next yields the following
// batch plus a further continuation, or an empty batch and a nil cursor when
// the result set is exhausted.
type Cursor struct {
	dt        *DocumentType
	filter    bson.M
	sort      bson.D
	offset    int64
	remaining int64 // -1 when unlimited
	pageSize  int64
}

// FindPaged starts a paginated find: it returns the first batch and a
// continuation, or a nil continuation when nothing matched.
func (dt *DocumentType) FindPaged(
	ctx context.Context, filter bson.M, opts ...FindOption,
) ([]*Doc, *Cursor, error) {
	cfg := findConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	c := &Cursor{
		dt:        dt,
		filter:    dt.searchFilter(filter),
		sort:      dt.cookSort(cfg.sort),
		offset:    cfg.skip,
		remaining: -1,
		pageSize:  defaultPageSize,
	}
	if cfg.limit > 0 {
		c.remaining = cfg.limit
		c.pageSize = cfg.limit
	}
	if cfg.pageSize > 0 {
		c.pageSize = cfg.pageSize
	}
	return c.Next(ctx)
}

// Next fetches the following batch.
func (c *Cursor) Next(ctx context.Context) ([]*Doc, *Cursor, error) {
	fetch := c.pageSize
	if c.remaining >= 0 && c.remaining < fetch {
		fetch = c.remaining
	}
	if c.remaining == 0 {
		return []*Doc{}, nil, nil
	}

	raws, err := c.dt.inst.store.Find(ctx, c.dt.collection, c.filter, db.FindOptions{
		Limit: fetch,
		Skip:  c.offset,
		Sort:  c.sort,
	})
	if err != nil {
		return nil, nil, err
	}
	docs := make([]*Doc, 0, len(raws))
	for _, raw := range raws {
		d, err := c.dt.hydrate(raw)
		if err != nil {
			return nil, nil, err
		}
		docs = append(docs, d)
	}

	if len(docs) == 0 {
		return docs, nil, nil
	}
	next := *c
	next.offset += int64(len(docs))
	if next.remaining > 0 {
		next.remaining -= int64(len(docs))
	}
	return docs, &next, nil
}
