package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalIncludesEmptyCustomFields(t *testing.T) {
	task := Task{ID: "t1", Title: "Title", CustomFields: []CustomField{}}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	if !strings.Contains(string(payload), "\"custom_fields\":[]") {
		t.Fatalf("expected empty custom_fields list, got %s", payload)
	}
	if !strings.Contains(string(payload), "\"completed\":false") {
		t.Fatalf("expected completed field to be present, got %s", payload)
	}
}

func TestForCreateWithoutCustomField(t *testing.T) {
	in := TaskInput{Title: strPtr("write docs")}
	nt, err := in.ForCreate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nt.Title != "write docs" || nt.Completed {
		t.Fatalf("unexpected task: %#v", nt)
	}
	if _, ok := nt.CustomField.(NoCustomField); !ok {
		t.Fatalf("expected NoCustomField, got %#v", nt.CustomField)
	}
}

func TestForCreateTitleErrors(t *testing.T) {
	tests := map[string]struct {
		title *string
		want  string
	}{
		"missing": {title: nil, want: "This field is required."},
		"blank":   {title: strPtr("  "), want: "This field may not be blank."},
		"long":    {title: strPtr(strings.Repeat("a", 256)), want: "Ensure this field has no more than 255 characters."},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := TaskInput{Title: tt.title}.ForCreate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if msgs := ve.Messages("title"); len(msgs) != 1 || msgs[0] != tt.want {
				t.Fatalf("unexpected title messages: %v", msgs)
			}
		})
	}
}

func TestForCreateNestsCustomFieldErrors(t *testing.T) {
	in := TaskInput{
		Title:       strPtr("t"),
		CustomField: &CustomFieldInput{FieldName: strPtr("priority")},
	}
	_, err := in.ForCreate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	nested := ve.Nested("custom_field")
	if nested == nil {
		t.Fatalf("expected nested custom_field errors, got %v", ve.Fields())
	}
	if len(nested.Messages("field_type")) != 1 || len(nested.Messages("field_value")) != 1 {
		t.Fatalf("unexpected nested errors: %v", nested.Fields())
	}

	payload, err := sonic.Marshal(ve)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"custom_field":{`) {
		t.Fatalf("expected nested JSON, got %s", payload)
	}
}

func TestForUpdatePartial(t *testing.T) {
	done := true
	upd, err := TaskInput{Completed: &done}.ForUpdate(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Title != nil {
		t.Fatalf("expected title untouched, got %q", *upd.Title)
	}
	if upd.Completed == nil || !*upd.Completed {
		t.Fatalf("expected completed=true, got %#v", upd.Completed)
	}
	if upd.CustomField != nil {
		t.Fatalf("expected custom field untouched, got %#v", upd.CustomField)
	}
}

func TestForUpdateFullRequiresTitle(t *testing.T) {
	_, err := TaskInput{}.ForUpdate(false)
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Messages("title")) != 1 {
		t.Fatalf("expected title error, got %v", err)
	}
}

func TestForUpdateReplacesCustomField(t *testing.T) {
	in := TaskInput{
		Title:       strPtr("t"),
		CustomField: &CustomFieldInput{FieldName: strPtr("owner"), FieldType: strPtr("string"), FieldValue: "ana"},
	}
	upd, err := in.ForUpdate(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cf, ok := upd.CustomField.(CustomFieldValue)
	if !ok || cf.Name != "owner" || cf.Value != "ana" {
		t.Fatalf("unexpected custom field: %#v", upd.CustomField)
	}
}

func TestForCreateTrimsTitleAndFieldName(t *testing.T) {
	in := TaskInput{
		Title: strPtr("  padded  "),
		CustomField: &CustomFieldInput{
			FieldName:  strPtr("  prio  "),
			FieldType:  strPtr("string"),
			FieldValue: "high",
		},
	}
	nt, err := in.ForCreate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nt.Title != "padded" {
		t.Fatalf("expected trimmed title, got %q", nt.Title)
	}
	cf, ok := nt.CustomField.(CustomFieldValue)
	if !ok || cf.Name != "prio" {
		t.Fatalf("expected trimmed field name, got %#v", nt.CustomField)
	}
}

func TestForCreateTitleLengthCountsTrimmedValue(t *testing.T) {
	title := " " + strings.Repeat("a", 255) + " "
	nt, err := TaskInput{Title: &title}.ForCreate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nt.Title) != 255 {
		t.Fatalf("expected 255 characters, got %d", len(nt.Title))
	}
}
