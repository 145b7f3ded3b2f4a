package umongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Reference is a lazy pointer to another document: a target type plus an
// identity. It is never resolved eagerly.
type Reference struct {
	target *DocumentType
	id     any
}

// NewReference builds a reference to a document of the given type.
func NewReference(target *DocumentType, id any) *Reference {
	return &Reference{target: target, id: id}
}

// Target returns the referenced document type.
func (r *Reference) Target() *DocumentType { return r.target }

// ID returns the referenced identity.
func (r *Reference) ID() any { return r.id }

// Fetch resolves the reference through the store. A dangling reference
// fails with the same validation message the implicit integrity check
// reports.
func (r *Reference) Fetch(ctx context.Context) (*Doc, error) {
	doc, err := r.target.FindOne(ctx, bson.M{"_id": r.id})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, NewValidationError(fmt.Sprintf(msgRefNotFound, r.target.name))
	}
	return doc, nil
}

// refIntegrityCheck is the implicit async validator attached to reference
// fields: it verifies the target document exists.
func refIntegrityCheck(ctx context.Context, _ *Field, value any) error {
	ref, ok := value.(*Reference)
	if !ok || ref == nil {
		return nil
	}
	n, err := ref.target.inst.store.Count(ctx, ref.target.collection, bson.M{"_id": ref.id})
	if err != nil {
		return err
	}
	if n == 0 {
		return NewValidationError(fmt.Sprintf(msgRefNotFound, ref.target.name))
	}
	return nil
}
