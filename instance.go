package umongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kunla/umongo/internal/db"
	dbMemory "github.com/kunla/umongo/internal/db/memory"
	dbMongo "github.com/kunla/umongo/internal/db/mongo"
)

// Instance binds registered document types to one database. It is the
// entry point of the mapper.
type Instance struct {
	store    db.Store
	logger   *zap.Logger
	types    map[string]*DocumentType
	embedded map[string]*EmbeddedType
}

type instanceConfig struct {
	driver        string
	mongoURI      string
	mongoDatabase string
	mongoHandle   *mongo.Database
	logger        *zap.Logger
}

// Option configures an Instance.
type Option func(*instanceConfig)

// WithMongo connects to MongoDB at uri and maps documents into database.
func WithMongo(uri, database string) Option {
	return func(c *instanceConfig) {
		c.driver = "mongo"
		c.mongoURI = uri
		c.mongoDatabase = database
	}
}

// WithMongoDatabase maps documents into an externally managed database
// handle. Closing the instance will not disconnect the handle's client.
func WithMongoDatabase(database *mongo.Database) Option {
	return func(c *instanceConfig) {
		c.driver = "mongo-handle"
		c.mongoHandle = database
	}
}

// WithMemoryStore backs the instance with the in-process store. Useful for
// tests and prototypes.
func WithMemoryStore() Option {
	return func(c *instanceConfig) { c.driver = "memory" }
}

// WithLogger sets the logger for store round-trip debug logs.
// Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *instanceConfig) { c.logger = logger }
}

// New creates an Instance and connects its store.
func New(opts ...Option) (*Instance, error) {
	cfg := &instanceConfig{}
	for _, o := range opts {
		o(cfg)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Instance{
		store:    store,
		logger:   logger,
		types:    make(map[string]*DocumentType),
		embedded: make(map[string]*EmbeddedType),
	}, nil
}

func createStore(cfg *instanceConfig) (db.Store, error) {
	switch cfg.driver {
	case "mongo":
		s, err := dbMongo.NewStore(context.Background(), dbMongo.Config{
			URI:      cfg.mongoURI,
			Database: cfg.mongoDatabase,
		})
		if err != nil {
			return nil, fmt.Errorf("umongo: create mongo store: %w", err)
		}
		return s, nil
	case "mongo-handle":
		return dbMongo.NewStoreWithDatabase(cfg.mongoHandle), nil
	case "memory":
		return dbMemory.NewStore(), nil
	default:
		return nil, errors.New("umongo: store required (use WithMongo, WithMongoDatabase or WithMemoryStore)")
	}
}

// Close releases the underlying store.
func (i *Instance) Close(ctx context.Context) error {
	return i.store.Close(ctx)
}

// Register binds a document definition to the instance and returns the
// frozen type. Registration composes the parent schema, binds storage
// attribute aliases and attaches reference integrity checks.
func (i *Instance) Register(def Def) (*DocumentType, error) {
	if def.Name == "" {
		return nil, errors.New("umongo: document type name is required")
	}
	if _, ok := i.types[def.Name]; ok {
		return nil, fmt.Errorf("umongo: type %q already registered", def.Name)
	}

	parent := def.Inherit
	var base *docSchema
	collection := def.Collection
	switch {
	case parent != nil:
		if parent.inst != i {
			return nil, fmt.Errorf("umongo: parent type %q belongs to another instance", parent.name)
		}
		if !parent.allowInheritance {
			return nil, fmt.Errorf("umongo: type %q does not allow inheritance", parent.name)
		}
		if collection != "" && collection != parent.collection {
			return nil, fmt.Errorf(
				"umongo: type %q cannot override collection %q of its root", def.Name, parent.collection,
			)
		}
		base = parent.schema
		collection = parent.collection
	default:
		if collection == "" {
			collection = strings.ToLower(def.Name)
		}
		base = newDocSchema()
		var err error
		base, err = base.extend([]*Field{ObjectIDField(idFieldName, Attribute("_id"))})
		if err != nil {
			return nil, err
		}
	}

	schema, err := base.extend(def.Fields)
	if err != nil {
		return nil, fmt.Errorf("umongo: register %q: %w", def.Name, err)
	}

	dt := &DocumentType{
		inst:             i,
		name:             def.Name,
		collection:       collection,
		allowInheritance: def.AllowInheritance,
		parent:           parent,
		schema:           schema,
		indexes:          append([]Index(nil), def.Indexes...),
		hooks:            def.Hooks,
	}

	for _, declared := range def.Fields {
		bound, ok := schema.field(declared.name)
		if !ok {
			return nil, fmt.Errorf("umongo: register %q: field %q not bound", def.Name, declared.name)
		}
		attachRefCheck(bound)
		dt.ownFields = append(dt.ownFields, bound)
	}

	for _, ix := range dt.indexes {
		if len(ix.Keys) == 0 {
			return nil, fmt.Errorf("umongo: register %q: index without keys", def.Name)
		}
		for _, key := range ix.Keys {
			if _, ok := schema.field(key); !ok {
				return nil, fmt.Errorf("umongo: register %q: index on unknown field %q", def.Name, key)
			}
		}
	}

	if parent != nil {
		parent.children = append(parent.children, dt)
	}
	i.types[def.Name] = dt
	return dt, nil
}

// RegisterEmbedded binds a nested-document schema for use in EmbeddedField.
func (i *Instance) RegisterEmbedded(def EmbeddedDef) (*EmbeddedType, error) {
	if def.Name == "" {
		return nil, errors.New("umongo: embedded type name is required")
	}
	if _, ok := i.embedded[def.Name]; ok {
		return nil, fmt.Errorf("umongo: embedded type %q already registered", def.Name)
	}

	schema, err := newDocSchema().extend(def.Fields)
	if err != nil {
		return nil, fmt.Errorf("umongo: register embedded %q: %w", def.Name, err)
	}
	for _, f := range schema.fields {
		attachRefCheck(f)
	}

	et := &EmbeddedType{name: def.Name, schema: schema}
	i.embedded[def.Name] = et
	return et, nil
}

// EnsureIndexes creates the derived indexes of every registered type,
// aggregating per-type failures.
func (i *Instance) EnsureIndexes(ctx context.Context) error {
	var errs error
	for _, dt := range i.types {
		if err := dt.EnsureIndexes(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", dt.name, err))
		}
	}
	return errs
}

// attachRefCheck prepends the implicit reference integrity validator to
// reference-kind fields, recursing into list element descriptors.
func attachRefCheck(f *Field) {
	if f.kind == KindReference {
		f.ioValidators = append([]IOValidator{refIntegrityCheck}, f.ioValidators...)
	}
	if f.elem != nil {
		attachRefCheck(f.elem)
	}
}
