package umongo

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// validateFields runs the structural pass: type conformance was enforced at
// Set time, so this checks required-ness and runs synchronous validators in
// declaration order, accumulating every field's failures instead of stopping
// at the first one. A nil scope validates all fields (insert path); a
// non-nil scope restricts the pass to the dirty-set (update path).
func (d *Doc) validateFields(scope map[string]struct{}) FieldErrors {
	return validateDoc(d.dt.schema, d.values, scope)
}

func validateDoc(s *docSchema, vals Values, scope map[string]struct{}) FieldErrors {
	fe := FieldErrors{}
	for _, f := range s.fields {
		if scope != nil {
			if _, ok := scope[f.name]; !ok {
				continue
			}
		}
		v, set := vals[f.name]
		if !set {
			if f.required {
				fe.Append(f.name, msgRequiredField)
			}
			continue
		}
		msgs, nested := validateValue(f, v)
		fe.Append(f.name, msgs...)
		fe.SetNested(f.name, nested)
	}
	return fe
}

func validateValue(f *Field, v any) ([]string, FieldErrors) {
	var msgs []string
	for _, fn := range f.validators {
		if err := fn(v); err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	switch f.kind {
	case KindList:
		list, _ := v.([]any)
		var nested FieldErrors
		for i, elem := range list {
			emsgs, enested := validateValue(f.elem, elem)
			if len(emsgs) > 0 {
				// One message per invalid element, in list order.
				msgs = append(msgs, emsgs[0])
			}
			if len(enested) > 0 {
				if nested == nil {
					nested = FieldErrors{}
				}
				nested.SetNested(strconv.Itoa(i), enested)
			}
		}
		return msgs, nested
	case KindEmbedded:
		vals, _ := v.(Values)
		return msgs, validateDoc(f.embedded.schema, vals, nil)
	default:
		return msgs, nil
	}
}

// ioValidateFields runs the asynchronous pass. Validators declared on one
// field execute as a sequential chain in declaration order; chains of
// different fields run concurrently with no relative ordering. The errgroup
// is the fan-in barrier: no result is reported until every chain finished.
func (d *Doc) ioValidateFields(ctx context.Context, scope map[string]struct{}) (FieldErrors, error) {
	fe := FieldErrors{}
	var mu sync.Mutex
	var g errgroup.Group

	for _, f := range d.dt.schema.fields {
		if scope != nil {
			if _, ok := scope[f.name]; !ok {
				continue
			}
		}
		v, set := d.values[f.name]
		if !set || !hasIOWork(f) {
			continue
		}
		f, v := f, v
		g.Go(func() error {
			msgs, nested, err := runIOChain(ctx, f, v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			fe.Append(f.name, msgs...)
			fe.SetNested(f.name, nested)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fe, nil
}

func hasIOWork(f *Field) bool {
	if len(f.ioValidators) > 0 {
		return true
	}
	if f.elem != nil && hasIOWork(f.elem) {
		return true
	}
	if f.kind == KindEmbedded {
		for _, sub := range f.embedded.schema.fields {
			if hasIOWork(sub) {
				return true
			}
		}
	}
	return false
}

// runIOChain executes one field's chain. The first *ValidationError stops
// the chain and becomes the field's single message; any other error aborts
// the whole pass and propagates unmodified. List elements are validated in
// list order, one message per invalid element; embedded documents contribute
// a nested error tree.
func runIOChain(ctx context.Context, f *Field, v any) ([]string, FieldErrors, error) {
	for _, fn := range f.ioValidators {
		if err := fn(ctx, f, v); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return []string{ve.Error()}, nil, nil
			}
			return nil, nil, err
		}
	}

	switch f.kind {
	case KindList:
		list, _ := v.([]any)
		var msgs []string
		var nested FieldErrors
		for i, elem := range list {
			emsgs, enested, err := runIOChain(ctx, f.elem, elem)
			if err != nil {
				return nil, nil, err
			}
			if len(emsgs) > 0 {
				msgs = append(msgs, emsgs[0])
			}
			if len(enested) > 0 {
				if nested == nil {
					nested = FieldErrors{}
				}
				nested.SetNested(strconv.Itoa(i), enested)
			}
		}
		return msgs, nested, nil
	case KindEmbedded:
		vals, _ := v.(Values)
		nested := FieldErrors{}
		for _, sub := range f.embedded.schema.fields {
			sv, set := vals[sub.name]
			if !set || !hasIOWork(sub) {
				continue
			}
			smsgs, snested, err := runIOChain(ctx, sub, sv)
			if err != nil {
				return nil, nil, err
			}
			nested.Append(sub.name, smsgs...)
			nested.SetNested(sub.name, snested)
		}
		return nil, nested, nil
	default:
		return nil, nil, nil
	}
}
