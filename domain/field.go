package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// FieldType is the declared type of a task custom field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldBoolean FieldType = "boolean"
	FieldNumber  FieldType = "number"
)

const maxFieldNameLength = 255

const (
	msgFieldNameRequired  = "This field is required when either field type or field value is provided."
	msgFieldTypeRequired  = "This field is required when either field name or field value is provided."
	msgFieldValueRequired = "This field is required when either field name or field type is provided."
)

// ParseFieldType returns the FieldType named by s.
func ParseFieldType(s string) (FieldType, bool) {
	switch FieldType(s) {
	case FieldString, FieldBoolean, FieldNumber:
		return FieldType(s), true
	}
	return "", false
}

// Matches reports whether v has the native JSON shape of t. Numbers decode as
// float64 (or json.Number when the decoder uses UseNumber); booleans are never numbers.
func (t FieldType) Matches(v any) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
			return true
		}
	}
	return false
}

// CustomFieldSpec is the validated form of a custom_field bundle: either
// NoCustomField or CustomFieldValue.
type CustomFieldSpec interface {
	isCustomFieldSpec()
}

// NoCustomField means nothing is attached.
type NoCustomField struct{}

// CustomFieldValue is a complete, type-consistent custom field.
type CustomFieldValue struct {
	Name  string
	Type  FieldType
	Value any
}

func (NoCustomField) isCustomFieldSpec()    {}
func (CustomFieldValue) isCustomFieldSpec() {}

// CustomFieldInput is the raw write payload. Every key is optional.
type CustomFieldInput struct {
	FieldName  *string `json:"field_name"`
	FieldType  *string `json:"field_type"`
	FieldValue any     `json:"field_value"`
}

// Resolve applies the all-or-nothing rule and the type check. A nil input resolves
// to NoCustomField.
func (in *CustomFieldInput) Resolve() (CustomFieldSpec, error) {
	if in == nil {
		return NoCustomField{}, nil
	}

	var name string
	if in.FieldName != nil {
		name = strings.TrimSpace(*in.FieldName)
	}
	hasName := name != ""
	hasType := in.FieldType != nil && *in.FieldType != ""
	hasValue := in.FieldValue != nil
	if s, ok := in.FieldValue.(string); ok && s == "" {
		hasValue = false
	}

	if !hasName && !hasType && !hasValue {
		return NoCustomField{}, nil
	}

	errs := &ValidationError{}
	if !hasName {
		errs.Add("field_name", msgFieldNameRequired)
	} else if utf8.RuneCountInString(name) > maxFieldNameLength {
		errs.Add("field_name", fmt.Sprintf("Ensure this field has no more than %d characters.", maxFieldNameLength))
	}

	var ft FieldType
	if !hasType {
		errs.Add("field_type", msgFieldTypeRequired)
	} else {
		var ok bool
		if ft, ok = ParseFieldType(*in.FieldType); !ok {
			errs.Add("field_type", fmt.Sprintf("%q is not a valid choice.", *in.FieldType))
		}
	}

	if !hasValue {
		errs.Add("field_value", msgFieldValueRequired)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if !ft.Matches(in.FieldValue) {
		errs.Add("field_value", "Value must be of type "+string(ft))
		return nil, errs
	}

	return CustomFieldValue{Name: name, Type: ft, Value: in.FieldValue}, nil
}

// CustomField is a persisted custom field as returned to clients.
type CustomField struct {
	ID    int64     `json:"id"`
	Name  string    `json:"field_name"`
	Type  FieldType `json:"field_type"`
	Value any       `json:"field_value"`
}

// MarshalJSON adds the read-only "value" mirror of field_value.
func (f CustomField) MarshalJSON() ([]byte, error) {
	type plain CustomField
	return sonic.Marshal(struct {
		plain
		MirrorValue any `json:"value"`
	}{plain: plain(f), MirrorValue: f.Value})
}
