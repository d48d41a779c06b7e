package domain

import (
	"errors"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller.
var ErrNotFound = errors.New("not found")

// ErrFieldTypeMismatch is returned by the storage layer when a custom field value
// does not match its declared type.
var ErrFieldTypeMismatch = errors.New("custom field value does not match field type")

// ValidationError collects field-keyed messages. Nested serializers (the
// custom_field bundle) are stored as a nested ValidationError under their key.
type ValidationError struct {
	fields map[string][]string
	nested map[string]*ValidationError
}

// Add appends a message for the given field.
func (e *ValidationError) Add(field, msg string) {
	if e.fields == nil {
		e.fields = make(map[string][]string)
	}
	e.fields[field] = append(e.fields[field], msg)
}

// Nest attaches inner under field. Empty inner errors are ignored.
func (e *ValidationError) Nest(field string, inner *ValidationError) {
	if inner.Empty() {
		return
	}
	if e.nested == nil {
		e.nested = make(map[string]*ValidationError)
	}
	e.nested[field] = inner
}

// Messages returns the messages recorded for field.
func (e *ValidationError) Messages(field string) []string {
	if e == nil {
		return nil
	}
	return e.fields[field]
}

// Nested returns the nested error recorded for field, or nil.
func (e *ValidationError) Nested(field string) *ValidationError {
	if e == nil {
		return nil
	}
	return e.nested[field]
}

func (e *ValidationError) Empty() bool {
	return e == nil || (len(e.fields) == 0 && len(e.nested) == 0)
}

// Err returns e as an error, or nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

// Fields returns the JSON-shaped view: field -> []string or field -> nested map.
func (e *ValidationError) Fields() map[string]any {
	if e == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(e.fields)+len(e.nested))
	for k, v := range e.fields {
		out[k] = v
	}
	for k, v := range e.nested {
		out[k] = v.Fields()
	}
	return out
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.fields)+len(e.nested))
	for k := range e.fields {
		keys = append(keys, k)
	}
	for k := range e.nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if inner, ok := e.nested[k]; ok {
			parts = append(parts, k+": {"+inner.Error()+"}")
			continue
		}
		parts = append(parts, k+": "+strings.Join(e.fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(e.Fields())
}
