package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 255

// Task is a single tracked item owned by one user.
type Task struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user"`
	Title        string        `json:"title"`
	Completed    bool          `json:"completed"`
	CreatedAt    time.Time     `json:"created_at"`
	CustomFields []CustomField `json:"custom_fields"`
}

// TaskInput is the write payload for create, replace and partial update.
// Read-only keys are accepted and ignored so a fetched task can be sent back.
type TaskInput struct {
	Title       *string           `json:"title"`
	Completed   *bool             `json:"completed"`
	CustomField *CustomFieldInput `json:"custom_field"`

	ID           any `json:"id,omitempty"`
	User         any `json:"user,omitempty"`
	CreatedAt    any `json:"created_at,omitempty"`
	CustomFields any `json:"custom_fields,omitempty"`
}

// NewTask is a validated create request.
type NewTask struct {
	Title       string
	Completed   bool
	CustomField CustomFieldSpec
}

// TaskUpdate carries validated changes. Nil members are left untouched; a
// CustomFieldValue replaces the task's custom field.
type TaskUpdate struct {
	Title       *string
	Completed   *bool
	CustomField CustomFieldSpec
}

// ForCreate validates the payload for task creation.
func (in TaskInput) ForCreate() (NewTask, error) {
	errs := &ValidationError{}
	title := validateTitle(errs, in.Title)

	spec, err := in.CustomField.Resolve()
	nestCustomFieldErr(errs, err)
	if err := errs.Err(); err != nil {
		return NewTask{}, err
	}

	nt := NewTask{Title: title, CustomField: spec}
	if in.Completed != nil {
		nt.Completed = *in.Completed
	}
	return nt, nil
}

// ForUpdate validates the payload for PUT (partial=false) or PATCH (partial=true).
func (in TaskInput) ForUpdate(partial bool) (TaskUpdate, error) {
	errs := &ValidationError{}
	var upd TaskUpdate
	if in.Title != nil || !partial {
		title := validateTitle(errs, in.Title)
		upd.Title = &title
	}
	upd.Completed = in.Completed

	if in.CustomField != nil {
		spec, err := in.CustomField.Resolve()
		nestCustomFieldErr(errs, err)
		if cf, ok := spec.(CustomFieldValue); ok {
			upd.CustomField = cf
		}
	}
	if err := errs.Err(); err != nil {
		return TaskUpdate{}, err
	}
	return upd, nil
}

func validateTitle(errs *ValidationError, title *string) string {
	if title == nil {
		errs.Add("title", "This field is required.")
		return ""
	}
	trimmed := strings.TrimSpace(*title)
	if trimmed == "" {
		errs.Add("title", "This field may not be blank.")
		return ""
	}
	if utf8.RuneCountInString(trimmed) > maxTitleLength {
		errs.Add("title", fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength))
		return ""
	}
	return trimmed
}

func nestCustomFieldErr(errs *ValidationError, err error) {
	if err == nil {
		return
	}
	if ve, ok := err.(*ValidationError); ok {
		errs.Nest("custom_field", ve)
		return
	}
	errs.Add("custom_field", err.Error())
}
