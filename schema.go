package umongo

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// idFieldName is the implicit identity field present on every document
// schema, aliased to the _id attribute.
const idFieldName = "id"

// clsAttribute stores the discriminator value of polymorphic documents.
const clsAttribute = "_cls"

// docSchema is a bound, frozen field mapping. Child schemas extend their
// parent's mapping; field order is parent fields first, then own fields in
// declaration order.
type docSchema struct {
	fields []*Field
	byName map[string]*Field
	byAttr map[string]*Field
}

func newDocSchema() *docSchema {
	return &docSchema{
		byName: make(map[string]*Field),
		byAttr: make(map[string]*Field),
	}
}

// extend builds a child schema from a parent mapping plus newly declared
// fields. A redeclared name must keep the ancestor's kind; same-kind
// redeclaration replaces the ancestor's descriptor in place.
func (s *docSchema) extend(declared []*Field) (*docSchema, error) {
	child := newDocSchema()
	child.fields = append(child.fields, s.fields...)
	for name, f := range s.byName {
		child.byName[name] = f
	}
	for attr, f := range s.byAttr {
		child.byAttr[attr] = f
	}

	for _, f := range declared {
		if f.name == "" {
			return nil, fmt.Errorf("umongo: field name is required")
		}
		if f.attribute == clsAttribute {
			return nil, fmt.Errorf("umongo: attribute %q is reserved", clsAttribute)
		}
		bound := f.clone()
		if existing, ok := child.byName[f.name]; ok {
			if existing.kind != bound.kind {
				return nil, fmt.Errorf(
					"umongo: field %q redeclared with kind %s, ancestor declared %s",
					f.name, bound.kind, existing.kind,
				)
			}
			child.replace(existing, bound)
			continue
		}
		if clash, ok := child.byAttr[bound.attribute]; ok {
			return nil, fmt.Errorf(
				"umongo: attribute %q of field %q already bound to field %q",
				bound.attribute, bound.name, clash.name,
			)
		}
		child.fields = append(child.fields, bound)
		child.byName[bound.name] = bound
		child.byAttr[bound.attribute] = bound
	}
	return child, nil
}

func (s *docSchema) replace(old, bound *Field) {
	for i, f := range s.fields {
		if f == old {
			s.fields[i] = bound
			break
		}
	}
	delete(s.byAttr, old.attribute)
	s.byName[bound.name] = bound
	s.byAttr[bound.attribute] = bound
}

func (s *docSchema) field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

func (s *docSchema) attrOf(name string) (string, error) {
	f, ok := s.byName[name]
	if !ok {
		return "", fmt.Errorf("umongo: unknown field %q", name)
	}
	return f.attribute, nil
}

// coerceDoc converts a user-supplied nested document (for embedded fields)
// into coerced Values, rejecting unknown field names.
func (s *docSchema) coerceDoc(v any) (Values, error) {
	var src map[string]any
	switch m := v.(type) {
	case Values:
		src = m
	case map[string]any:
		src = m
	case bson.M:
		src = m
	default:
		return nil, NewValidationError(msgNotValidDoc)
	}

	out := make(Values, len(src))
	for name, raw := range src {
		f, ok := s.byName[name]
		if !ok {
			return nil, NewValidationError(msgUnknownField)
		}
		if raw == nil {
			continue
		}
		coerced, err := f.coerce(raw)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}
	return out, nil
}

// toWireDoc translates coerced Values through storage attribute aliases.
func (s *docSchema) toWireDoc(vals Values) bson.M {
	out := make(bson.M, len(vals))
	for name, v := range vals {
		if f, ok := s.byName[name]; ok {
			out[f.attribute] = f.toWire(v)
		}
	}
	return out
}

// fromWireDoc hydrates raw wire data back into Values keyed by field name.
// Attributes the schema does not know are skipped.
func (s *docSchema) fromWireDoc(raw bson.M) (Values, error) {
	out := make(Values, len(raw))
	for attr, v := range raw {
		f, ok := s.byAttr[attr]
		if !ok || v == nil {
			continue
		}
		conv, err := f.fromWire(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
		out[f.name] = conv
	}
	return out, nil
}

// applyDefaults fills declared defaults for absent fields.
func (s *docSchema) applyDefaults(vals Values) error {
	for _, f := range s.fields {
		if !f.hasDefault {
			continue
		}
		if _, ok := vals[f.name]; ok {
			continue
		}
		coerced, err := f.coerce(f.defaultValue)
		if err != nil {
			return fmt.Errorf("umongo: invalid default for field %q: %w", f.name, err)
		}
		vals[f.name] = coerced
	}
	return nil
}

// cookFilter translates field names in a query into storage attributes,
// recursing into $and/$or clauses and dotted paths. Names the schema does
// not know pass through untouched, so raw attribute queries keep working.
func (s *docSchema) cookFilter(filter bson.M) bson.M {
	out := make(bson.M, len(filter)+1)
	for k, v := range filter {
		if strings.HasPrefix(k, "$") {
			out[k] = s.cookClauseList(v)
			continue
		}
		out[s.cookPath(k)] = v
	}
	return out
}

func (s *docSchema) cookClauseList(v any) any {
	var clauses []any
	switch list := v.(type) {
	case bson.A:
		clauses = list
	case []any:
		clauses = list
	case []bson.M:
		for _, m := range list {
			clauses = append(clauses, m)
		}
	default:
		return v
	}
	out := make(bson.A, len(clauses))
	for i, c := range clauses {
		if m, ok := c.(bson.M); ok {
			out[i] = s.cookFilter(m)
		} else {
			out[i] = c
		}
	}
	return out
}

// cookPath rewrites a dotted path segment by segment, following embedded and
// list-of-embedded schemas.
func (s *docSchema) cookPath(path string) string {
	parts := strings.Split(path, ".")
	cur := s
	for i, p := range parts {
		if cur == nil {
			break
		}
		f, ok := cur.byName[p]
		if !ok {
			break
		}
		parts[i] = f.attribute
		switch {
		case f.kind == KindEmbedded:
			cur = f.embedded.schema
		case f.kind == KindList && f.elem != nil && f.elem.kind == KindEmbedded:
			cur = f.elem.embedded.schema
		default:
			cur = nil
		}
	}
	return strings.Join(parts, ".")
}

// EmbeddedType is a registered nested-document schema usable by
// EmbeddedField and ElemEmbedded.
type EmbeddedType struct {
	name   string
	schema *docSchema
}

// Name returns the embedded type name.
func (e *EmbeddedType) Name() string { return e.name }
