package umongo

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind enumerates the field kinds a schema can declare.
type Kind int

const (
	// KindString holds a string value.
	KindString Kind = iota
	// KindInt holds an int64 value.
	KindInt
	// KindFloat holds a float64 value.
	KindFloat
	// KindBool holds a bool value.
	KindBool
	// KindDateTime holds a time.Time value.
	KindDateTime
	// KindObjectID holds a primitive.ObjectID value.
	KindObjectID
	// KindUUID holds a uuid.UUID value, stored as its string form.
	KindUUID
	// KindEmbedded holds a nested document validated against its own schema.
	KindEmbedded
	// KindList holds an ordered list of a single element descriptor.
	KindList
	// KindReference holds a lazy pointer to another document.
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindDateTime:
		return "datetime"
	case KindObjectID:
		return "objectid"
	case KindUUID:
		return "uuid"
	case KindEmbedded:
		return "embedded"
	case KindList:
		return "list"
	case KindReference:
		return "reference"
	}
	return "unknown"
}

// Validator is a synchronous per-field validator. A returned error's text is
// recorded as the field's validation message.
type Validator func(value any) error

// IOValidator is an asynchronous per-field validator. It may suspend on I/O.
// Returning a *ValidationError records its message on the field; any other
// error aborts the whole validation pass and propagates unmodified.
type IOValidator func(ctx context.Context, f *Field, value any) error

// Field is a declarative field descriptor. Descriptors are cloned and frozen
// when a schema is registered; the original stays reusable.
type Field struct {
	name         string
	attribute    string
	kind         Kind
	required     bool
	unique       bool
	hasDefault   bool
	defaultValue any
	validators   []Validator
	ioValidators []IOValidator
	elem         *Field        // KindList element descriptor
	embedded     *EmbeddedType // KindEmbedded nested schema
	refTarget    *DocumentType // KindReference target
}

// Name returns the in-memory field name.
func (f *Field) Name() string { return f.name }

// Attribute returns the wire name (storage attribute alias).
func (f *Field) Attribute() string { return f.attribute }

// Kind returns the declared field kind.
func (f *Field) Kind() Kind { return f.kind }

// IsRequired reports the required flag.
func (f *Field) IsRequired() bool { return f.required }

// IsUnique reports the uniqueness flag.
func (f *Field) IsUnique() bool { return f.unique }

// FieldOption configures a field descriptor at declaration.
type FieldOption func(*Field)

// Required marks the field as mandatory on insert.
func Required() FieldOption {
	return func(f *Field) { f.required = true }
}

// Unique declares a single-field unique index on the field.
func Unique() FieldOption {
	return func(f *Field) { f.unique = true }
}

// Attribute sets the storage attribute alias used in wire payloads.
func Attribute(attr string) FieldOption {
	return func(f *Field) { f.attribute = attr }
}

// Default sets the value applied at construction when none is provided.
func Default(v any) FieldOption {
	return func(f *Field) {
		f.hasDefault = true
		f.defaultValue = v
	}
}

// Validate attaches synchronous validators, run in declaration order.
func Validate(fns ...Validator) FieldOption {
	return func(f *Field) { f.validators = append(f.validators, fns...) }
}

// IOValidate attaches asynchronous validators, run as a sequential chain in
// declaration order.
func IOValidate(fns ...IOValidator) FieldOption {
	return func(f *Field) { f.ioValidators = append(f.ioValidators, fns...) }
}

func newField(name string, kind Kind, opts []FieldOption) *Field {
	f := &Field{name: name, attribute: name, kind: kind}
	for _, o := range opts {
		o(f)
	}
	return f
}

// StrField declares a string field.
func StrField(name string, opts ...FieldOption) *Field { return newField(name, KindString, opts) }

// IntField declares an integer field.
func IntField(name string, opts ...FieldOption) *Field { return newField(name, KindInt, opts) }

// FloatField declares a floating point field.
func FloatField(name string, opts ...FieldOption) *Field { return newField(name, KindFloat, opts) }

// BoolField declares a boolean field.
func BoolField(name string, opts ...FieldOption) *Field { return newField(name, KindBool, opts) }

// DateTimeField declares a datetime field.
func DateTimeField(name string, opts ...FieldOption) *Field {
	return newField(name, KindDateTime, opts)
}

// ObjectIDField declares an ObjectID field.
func ObjectIDField(name string, opts ...FieldOption) *Field {
	return newField(name, KindObjectID, opts)
}

// UUIDField declares a UUID field.
func UUIDField(name string, opts ...FieldOption) *Field { return newField(name, KindUUID, opts) }

// EmbeddedField declares a nested document field bound to a registered
// embedded type.
func EmbeddedField(name string, embedded *EmbeddedType, opts ...FieldOption) *Field {
	f := newField(name, KindEmbedded, opts)
	f.embedded = embedded
	return f
}

// ListField declares an ordered list field. The element descriptor's name is
// ignored; its kind, validators and nested schema apply to every element.
func ListField(name string, elem *Field, opts ...FieldOption) *Field {
	f := newField(name, KindList, opts)
	f.elem = elem
	return f
}

// Elem builds an anonymous element descriptor for ListField.
func Elem(kind Kind, opts ...FieldOption) *Field { return newField("", kind, opts) }

// RefField declares a lazy reference to another registered document type.
func RefField(name string, target *DocumentType, opts ...FieldOption) *Field {
	f := newField(name, KindReference, opts)
	f.refTarget = target
	return f
}

// ElemRef builds an anonymous reference element descriptor for ListField.
func ElemRef(target *DocumentType, opts ...FieldOption) *Field {
	f := newField("", KindReference, opts)
	f.refTarget = target
	return f
}

// ElemEmbedded builds an anonymous embedded element descriptor for ListField.
func ElemEmbedded(embedded *EmbeddedType, opts ...FieldOption) *Field {
	f := newField("", KindEmbedded, opts)
	f.embedded = embedded
	return f
}

func (f *Field) clone() *Field {
	c := *f
	c.validators = append([]Validator(nil), f.validators...)
	c.ioValidators = append([]IOValidator(nil), f.ioValidators...)
	if f.elem != nil {
		c.elem = f.elem.clone()
	}
	return &c
}

// coerce converts a user-supplied value into the field's in-memory
// representation or fails with a user-visible message.
func (f *Field) coerce(v any) (any, error) {
	switch f.kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, NewValidationError(msgNotValidString)
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		}
		return nil, NewValidationError(msgNotValidInteger)
	case KindFloat:
		switch n := v.(type) {
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, NewValidationError(msgNotValidNumber)
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, NewValidationError(msgNotValidBool)
	case KindDateTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case primitive.DateTime:
			return t.Time(), nil
		}
		return nil, NewValidationError(msgNotValidTime)
	case KindObjectID:
		switch id := v.(type) {
		case primitive.ObjectID:
			return id, nil
		case string:
			oid, err := primitive.ObjectIDFromHex(id)
			if err == nil {
				return oid, nil
			}
		}
		return nil, NewValidationError(msgNotValidOID)
	case KindUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u, nil
		case string:
			parsed, err := uuid.Parse(u)
			if err == nil {
				return parsed, nil
			}
		}
		return nil, NewValidationError(msgNotValidUUID)
	case KindEmbedded:
		return f.embedded.schema.coerceDoc(v)
	case KindList:
		return f.coerceList(v)
	case KindReference:
		return f.coerceRef(v)
	}
	return nil, NewValidationError("Unknown field kind.")
}

func (f *Field) coerceList(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, NewValidationError(msgNotValidList)
	}
	out := make([]any, rv.Len())
	for i := range out {
		elem, err := f.elem.coerce(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

func (f *Field) coerceRef(v any) (any, error) {
	switch ref := v.(type) {
	case *Reference:
		if ref.target != f.refTarget {
			return nil, NewValidationError(msgNotValidRef)
		}
		return ref, nil
	case *Doc:
		if ref.dt != f.refTarget && !ref.dt.isDescendantOf(f.refTarget) {
			return nil, NewValidationError(msgNotValidRef)
		}
		id := ref.ID()
		if id == nil {
			return nil, NewValidationError(msgNotValidRef)
		}
		return &Reference{target: f.refTarget, id: id}, nil
	case primitive.ObjectID:
		return &Reference{target: f.refTarget, id: ref}, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(ref)
		if err == nil {
			return &Reference{target: f.refTarget, id: oid}, nil
		}
	}
	return nil, NewValidationError(msgNotValidRef)
}

// toWire converts an in-memory value to its wire representation.
func (f *Field) toWire(v any) any {
	switch f.kind {
	case KindUUID:
		if u, ok := v.(uuid.UUID); ok {
			return u.String()
		}
	case KindEmbedded:
		if vals, ok := v.(Values); ok {
			return f.embedded.schema.toWireDoc(vals)
		}
	case KindList:
		if list, ok := v.([]any); ok {
			out := make(bson.A, len(list))
			for i, e := range list {
				out[i] = f.elem.toWire(e)
			}
			return out
		}
	case KindReference:
		if ref, ok := v.(*Reference); ok {
			return ref.id
		}
	}
	return v
}

// fromWire converts a wire value back to the in-memory representation.
func (f *Field) fromWire(v any) (any, error) {
	switch f.kind {
	case KindEmbedded:
		switch m := v.(type) {
		case bson.M:
			return f.embedded.schema.fromWireDoc(m)
		case map[string]any:
			return f.embedded.schema.fromWireDoc(bson.M(m))
		}
		return nil, fmt.Errorf("umongo: cannot hydrate embedded field from %T", v)
	case KindList:
		var elems []any
		switch l := v.(type) {
		case bson.A:
			elems = l
		case []any:
			elems = l
		default:
			return nil, fmt.Errorf("umongo: cannot hydrate list field from %T", v)
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			conv, err := f.elem.fromWire(e)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case KindReference:
		return &Reference{target: f.refTarget, id: v}, nil
	default:
		coerced, err := f.coerce(v)
		if err != nil {
			return nil, fmt.Errorf("umongo: cannot hydrate %s field from %T", f.kind, v)
		}
		return coerced, nil
	}
}
