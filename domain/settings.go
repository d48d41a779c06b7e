package domain

import "fmt"

const (
	DefaultTasksPerCategory = 10
	MinTasksPerCategory     = 1
	MaxTasksPerCategory     = 100
)

// Settings represents user configurable options.
type Settings struct {
	UserID           string `json:"user"`
	TasksPerCategory int    `json:"tasks_per_category"`
	ShowDoneTasks    bool   `json:"show_done_tasks"`
}

// DefaultSettings returns the record created on first access.
func DefaultSettings(userID string) Settings {
	return Settings{UserID: userID, TasksPerCategory: DefaultTasksPerCategory}
}

// SettingsInput is the write payload for settings. Omitted keys keep their
// current value.
type SettingsInput struct {
	TasksPerCategory *int  `json:"tasks_per_category"`
	ShowDoneTasks    *bool `json:"show_done_tasks"`

	User any `json:"user,omitempty"`
}

// Apply validates in and overlays it on base.
func (in SettingsInput) Apply(base Settings) (Settings, error) {
	errs := &ValidationError{}
	out := base
	if in.TasksPerCategory != nil {
		n := *in.TasksPerCategory
		switch {
		case n < MinTasksPerCategory:
			errs.Add("tasks_per_category", fmt.Sprintf("Ensure this value is greater than or equal to %d.", MinTasksPerCategory))
		case n > MaxTasksPerCategory:
			errs.Add("tasks_per_category", fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxTasksPerCategory))
		default:
			out.TasksPerCategory = n
		}
	}
	if in.ShowDoneTasks != nil {
		out.ShowDoneTasks = *in.ShowDoneTasks
	}
	if err := errs.Err(); err != nil {
		return base, err
	}
	return out, nil
}
