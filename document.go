package umongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// DocumentType is a registered, frozen document class bound to one physical
// collection. Inherited types share their root's collection and are told
// apart by the discriminator attribute.
type DocumentType struct {
	inst             *Instance
	name             string
	collection       string
	allowInheritance bool
	parent           *DocumentType
	children         []*DocumentType
	schema           *docSchema
	ownFields        []*Field
	indexes          []Index
	hooks            Hooks
}

// Name returns the registered type name.
func (dt *DocumentType) Name() string { return dt.name }

// Collection returns the physical collection name.
func (dt *DocumentType) Collection() string { return dt.collection }

// Fields returns the bound field descriptors, parent fields first.
func (dt *DocumentType) Fields() []*Field {
	out := make([]*Field, len(dt.schema.fields))
	copy(out, dt.schema.fields)
	return out
}

func (dt *DocumentType) isDescendantOf(other *DocumentType) bool {
	for t := dt.parent; t != nil; t = t.parent {
		if t == other {
			return true
		}
	}
	return false
}

// descendantNames collects dt's name plus every descendant's, depth first.
func (dt *DocumentType) descendantNames() []string {
	names := []string{dt.name}
	for _, c := range dt.children {
		names = append(names, c.descendantNames()...)
	}
	return names
}

// chain returns the inheritance chain, root first.
func (dt *DocumentType) chain() []*DocumentType {
	if dt.parent == nil {
		return []*DocumentType{dt}
	}
	return append(dt.parent.chain(), dt)
}

// New constructs a transient document. Defaults are applied first, then the
// provided values; provided fields start out dirty.
func (dt *DocumentType) New(vals Values) (*Doc, error) {
	d := &Doc{
		dt:     dt,
		values: make(Values),
		dirty:  make(map[string]struct{}),
	}
	if err := dt.schema.applyDefaults(d.values); err != nil {
		return nil, err
	}
	for name, v := range vals {
		if err := d.Set(name, v); err != nil {
			return nil, fmt.Errorf("umongo: field %q: %w", name, err)
		}
	}
	return d, nil
}

// Doc is a document instance: current field values, the dirty-set of fields
// mutated since last load or commit, and the created flag. A Doc must not be
// driven by two concurrent lifecycle operations; that exclusion is the
// caller's responsibility.
type Doc struct {
	dt      *DocumentType
	values  Values
	dirty   map[string]struct{}
	created bool
}

// Type returns the document's concrete type.
func (d *Doc) Type() *DocumentType { return d.dt }

// ID returns the identity value, nil while unassigned.
func (d *Doc) ID() any {
	id, ok := d.values[idFieldName]
	if !ok {
		return nil
	}
	return id
}

// IsCreated reports whether the document currently exists in the database.
func (d *Doc) IsCreated() bool { return d.created }

// IsModified reports whether any field was mutated since last load/commit.
func (d *Doc) IsModified() bool { return len(d.dirty) > 0 }

// Get returns the current value of a field, nil when unset.
func (d *Doc) Get(name string) any {
	v, ok := d.values[name]
	if !ok {
		return nil
	}
	return v
}

// Set mutates a field, recording it in the dirty-set. A nil value clears the
// field. The identity field is writable only before first insert.
func (d *Doc) Set(name string, v any) error {
	f, ok := d.dt.schema.field(name)
	if !ok {
		return fmt.Errorf("umongo: unknown field %q", name)
	}
	if name == idFieldName && d.created {
		return fmt.Errorf("umongo: identity of a created document is immutable")
	}

	if v == nil {
		delete(d.values, name)
		d.dirty[name] = struct{}{}
		return nil
	}

	coerced, err := f.coerce(v)
	if err != nil {
		return err
	}
	d.values[name] = coerced
	d.dirty[name] = struct{}{}
	return nil
}

// Values returns a shallow copy of the current field values.
func (d *Doc) Values() Values {
	out := make(Values, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Payload builds the full wire document (insert path), translated through
// storage attribute aliases, including the discriminator for polymorphic
// types.
func (d *Doc) Payload() bson.M {
	payload := d.dt.schema.toWireDoc(d.values)
	if d.dt.parent != nil {
		payload[clsAttribute] = d.dt.name
	}
	return payload
}

// UpdatePayload builds the partial-update directive covering only dirty
// fields, or nil when nothing changed — an empty update must not round-trip
// to the store.
func (d *Doc) UpdatePayload() bson.M {
	if len(d.dirty) == 0 {
		return nil
	}
	set := bson.M{}
	unset := bson.M{}
	for name := range d.dirty {
		f, ok := d.dt.schema.field(name)
		if !ok {
			continue
		}
		if v, present := d.values[name]; present {
			set[f.attribute] = f.toWire(v)
		} else {
			unset[f.attribute] = ""
		}
	}
	payload := bson.M{}
	if len(set) > 0 {
		payload["$set"] = set
	}
	if len(unset) > 0 {
		payload["$unset"] = unset
	}
	return payload
}

func (d *Doc) clearDirty() {
	d.dirty = make(map[string]struct{})
}

// hydrate rebuilds a created instance from raw wire data, selecting the
// concrete type through the discriminator when present.
func (dt *DocumentType) hydrate(raw bson.M) (*Doc, error) {
	concrete := dt
	if cls, ok := raw[clsAttribute].(string); ok {
		if t, registered := dt.inst.types[cls]; registered {
			concrete = t
		}
	}
	vals, err := concrete.schema.fromWireDoc(raw)
	if err != nil {
		return nil, err
	}
	return &Doc{
		dt:      concrete,
		values:  vals,
		dirty:   make(map[string]struct{}),
		created: true,
	}, nil
}
