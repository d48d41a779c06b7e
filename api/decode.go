package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"tasktrack-api/domain"
)

var errInvalidBody = errors.New("invalid body")

// bodyJSON keeps numbers as json.Number so custom field values are stored as sent.
var bodyJSON = sonic.Config{UseNumber: true}.Froze()

const (
	msgNotString  = "Not a valid string."
	msgNotBoolean = "Must be a valid boolean."
	msgNotInteger = "A valid integer is required."
)

// bodyField binds one JSON key to where it decodes. Plain keys decode into
// target and report invalid(raw) on a type mismatch; object keys hand their
// raw value to object and nest whatever it reports.
type bodyField struct {
	target  any
	invalid func(raw []byte) string
	object  func(raw []byte) (*domain.ValidationError, error)
}

func message(msg string) func([]byte) string {
	return func([]byte) string { return msg }
}

func invalidChoice(raw []byte) string {
	return fmt.Sprintf("%q is not a valid choice.", string(bytes.Trim(raw, `"`)))
}

func decodeTaskInput(c echo.Context) (domain.TaskInput, error) {
	var in domain.TaskInput
	body, err := readBody(c)
	if err != nil {
		return in, err
	}
	err = decodeObject(body, map[string]bodyField{
		"title":     {target: &in.Title, invalid: message(msgNotString)},
		"completed": {target: &in.Completed, invalid: message(msgNotBoolean)},
		"custom_field": {object: func(raw []byte) (*domain.ValidationError, error) {
			if isNull(raw) {
				return nil, nil
			}
			in.CustomField = &domain.CustomFieldInput{}
			return collect(decodeObject(raw, customFieldFields(in.CustomField)))
		}},
		"id":            {target: &in.ID},
		"user":          {target: &in.User},
		"created_at":    {target: &in.CreatedAt},
		"custom_fields": {target: &in.CustomFields},
	})
	return in, err
}

func customFieldFields(in *domain.CustomFieldInput) map[string]bodyField {
	return map[string]bodyField{
		"field_name":  {target: &in.FieldName, invalid: message(msgNotString)},
		"field_type":  {target: &in.FieldType, invalid: invalidChoice},
		"field_value": {target: &in.FieldValue},
	}
}

func decodeSettingsInput(c echo.Context) (domain.SettingsInput, error) {
	var in domain.SettingsInput
	body, err := readBody(c)
	if err != nil {
		return in, err
	}
	err = decodeObject(body, map[string]bodyField{
		"tasks_per_category": {target: &in.TasksPerCategory, invalid: message(msgNotInteger)},
		"show_done_tasks":    {target: &in.ShowDoneTasks, invalid: message(msgNotBoolean)},
		"user":               {target: &in.User},
	})
	return in, err
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return nil, errInvalidBody
	}
	return body, nil
}

// decodeObject decodes a JSON object key by key into fields. Malformed JSON
// and unknown keys yield errInvalidBody. Values of the wrong type are
// collected into a *domain.ValidationError keyed like the body.
func decodeObject(raw []byte, fields map[string]bodyField) error {
	if verr := expectObject(raw); verr != nil {
		return verr
	}
	var obj map[string]sonic.NoCopyRawMessage
	if err := bodyJSON.Unmarshal(raw, &obj); err != nil {
		return errInvalidBody
	}
	for key := range obj {
		if _, ok := fields[key]; !ok {
			return errInvalidBody
		}
	}

	errs := &domain.ValidationError{}
	for key, val := range obj {
		f := fields[key]
		if f.object != nil {
			inner, err := f.object(val)
			if err != nil {
				return err
			}
			errs.Nest(key, inner)
			continue
		}
		if err := bodyJSON.Unmarshal(val, f.target); err != nil {
			errs.Add(key, f.invalid(val))
		}
	}
	return errs.Err()
}

// collect splits a nested decode result into field errors to nest and
// errors that reject the whole body.
func collect(err error) (*domain.ValidationError, error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr, nil
	}
	return nil, err
}

// expectObject reports a well-formed JSON value that is not an object. null
// passes and decodes as an empty object.
func expectObject(raw []byte) *domain.ValidationError {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '{' || isNull(trimmed) || !sonic.Valid(trimmed) {
		return nil
	}
	var kind string
	switch trimmed[0] {
	case '"':
		kind = "str"
	case '[':
		kind = "list"
	case 't', 'f':
		kind = "bool"
	default:
		kind = "number"
	}
	errs := &domain.ValidationError{}
	errs.Add("non_field_errors", "Invalid data. Expected a dictionary, but got "+kind+".")
	return errs
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
