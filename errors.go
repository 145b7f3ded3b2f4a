package umongo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors of the document lifecycle.
var (
	// ErrNotCreated is returned by lifecycle operations that require the
	// document to exist in the database.
	ErrNotCreated = errors.New("umongo: document not created")
	// ErrUpdate is returned when a conditional update matched no document.
	ErrUpdate = errors.New("umongo: update conditions not met or document no longer exists")
	// ErrDelete is returned when a delete matched no document.
	ErrDelete = errors.New("umongo: delete conditions not met or document no longer exists")
)

// User-visible validation messages. They are stable strings meant to be
// rendered directly as form or API errors.
const (
	msgRequiredField   = "Missing data for required field."
	msgUniqueField     = "Field value must be unique."
	msgUniqueCompound  = "Values of fields %s must be unique together."
	msgRefNotFound     = "Reference not found for document %s."
	msgUnknownField    = "Unknown field."
	msgNotValidString  = "Not a valid string."
	msgNotValidInteger = "Not a valid integer."
	msgNotValidNumber  = "Not a valid number."
	msgNotValidBool    = "Not a valid boolean."
	msgNotValidTime    = "Not a valid datetime."
	msgNotValidOID     = "Not a valid ObjectId."
	msgNotValidUUID    = "Not a valid UUID."
	msgNotValidList    = "Not a valid list."
	msgNotValidDoc     = "Not a valid document."
	msgNotValidRef     = "Not a valid reference."
)

// FieldErrors maps a field name to its error messages. A value is either a
// []string (messages for that field, in order) or a nested FieldErrors for an
// embedded document field.
type FieldErrors map[string]any

// Append adds messages for a field, keeping existing ones.
func (fe FieldErrors) Append(field string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	existing, _ := fe[field].([]string)
	fe[field] = append(existing, msgs...)
}

// SetNested records the error tree of an embedded document field.
func (fe FieldErrors) SetNested(field string, nested FieldErrors) {
	if len(nested) == 0 {
		return
	}
	fe[field] = nested
}

// Messages returns the plain messages recorded for a field, nil when the
// field has none or holds a nested tree.
func (fe FieldErrors) Messages(field string) []string {
	msgs, _ := fe[field].([]string)
	return msgs
}

// Nested returns the nested tree recorded for an embedded field, nil
// otherwise.
func (fe FieldErrors) Nested(field string) FieldErrors {
	nested, _ := fe[field].(FieldErrors)
	return nested
}

func (fe FieldErrors) merge(other FieldErrors) {
	for field, v := range other {
		switch tv := v.(type) {
		case []string:
			fe.Append(field, tv...)
		case FieldErrors:
			fe.SetNested(field, tv)
		}
	}
}

// ValidationError accumulates every per-field failure of a validation pass.
// Either Fields or Message is set: field validators fail with a scalar
// Message, document validation reports the full field mapping.
type ValidationError struct {
	Fields  FieldErrors
	Message string
}

// NewValidationError builds a scalar validation error, the form field
// validators use to report a failure message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %v", f, e.Fields[f]))
	}
	return "umongo: validation failed: " + strings.Join(parts, "; ")
}

func compoundUniqueMessage(names []string) string {
	return fmt.Sprintf(msgUniqueCompound, fieldList(names))
}

// fieldList renders field names the way compound-unique messages expect:
// ['compound1', 'compound2'].
func fieldList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
