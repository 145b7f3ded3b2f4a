// Package mongo adapts the store facade onto the official MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kunla/umongo/internal/db"
)

const defaultConnectTimeout = 10 * time.Second

// Config holds connection parameters for a driver-owned client.
type Config struct {
	URI      string
	Database string
}

// Store implements db.Store on top of a mongo.Database.
type Store struct {
	database *mongo.Database
	client   *mongo.Client // owned client, nil when wrapping an external database
}

// NewStore connects to MongoDB and pings it before returning.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{database: client.Database(cfg.Database), client: client}, nil
}

// NewStoreWithDatabase wraps an externally managed database handle. Close
// will not disconnect the underlying client.
func NewStoreWithDatabase(database *mongo.Database) *Store {
	return &Store{database: database}
}

func (s *Store) InsertOne(ctx context.Context, collection string, doc bson.M) (db.InsertInfo, error) {
	res, err := s.database.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return db.InsertInfo{}, err
	}
	return db.InsertInfo{InsertedID: res.InsertedID}, nil
}

func (s *Store) UpdateOne(
	ctx context.Context, collection string, filter, update bson.M, upsert bool,
) (db.UpdateInfo, error) {
	res, err := s.database.Collection(collection).
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return db.UpdateInfo{}, err
	}
	return db.UpdateInfo{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter bson.M) (db.DeleteInfo, error) {
	res, err := s.database.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return db.DeleteInfo{}, err
	}
	return db.DeleteInfo{DeletedCount: res.DeletedCount}, nil
}

func (s *Store) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := s.database.Collection(collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) Find(
	ctx context.Context, collection string, filter bson.M, opts db.FindOptions,
) ([]bson.M, error) {
	findOpts := options.Find()
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if filter == nil {
		filter = bson.M{}
	}

	cur, err := s.database.Collection(collection).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return s.database.Collection(collection).CountDocuments(ctx, filter)
}

func (s *Store) EnsureIndexes(ctx context.Context, collection string, models []db.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	driverModels := make([]mongo.IndexModel, 0, len(models))
	for _, m := range models {
		if err := m.Validate(); err != nil {
			return err
		}
		opt := options.Index()
		if m.Name != "" {
			opt.SetName(m.Name)
		}
		if m.Unique {
			opt.SetUnique(true)
		}
		if m.Sparse {
			opt.SetSparse(true)
		}
		driverModels = append(driverModels, mongo.IndexModel{Keys: m.Keys, Options: opt})
	}
	_, err := s.database.Collection(collection).Indexes().CreateMany(ctx, driverModels)
	return err
}

func (s *Store) ListIndexes(ctx context.Context, collection string) ([]db.IndexModel, error) {
	cur, err := s.database.Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}

	models := make([]db.IndexModel, 0, len(raw))
	for _, entry := range raw {
		m := db.IndexModel{}
		if name, ok := entry["name"].(string); ok {
			m.Name = name
		}
		switch key := entry["key"].(type) {
		case bson.D:
			m.Keys = key
		case bson.M:
			for k, v := range key {
				m.Keys = append(m.Keys, bson.E{Key: k, Value: v})
			}
		}
		if u, ok := entry["unique"].(bool); ok {
			m.Unique = u
		}
		if sp, ok := entry["sparse"].(bool); ok {
			m.Sparse = sp
		}
		models = append(models, m)
	}
	return models, nil
}

func (s *Store) DropIndexes(ctx context.Context, collection string) error {
	_, err := s.database.Collection(collection).Indexes().DropAll(ctx)
	return err
}

func (s *Store) DropCollection(ctx context.Context, collection string) error {
	return s.database.Collection(collection).Drop(ctx)
}

// Close disconnects the client when this store owns it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
