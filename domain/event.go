package domain

import (
	"github.com/bytedance/sonic"
)

const (
	TaskCreated     = "task-created"
	TaskUpdated     = "task-updated"
	TaskDeleted     = "task-deleted"
	SettingsUpdated = "user-settings-updated"
	UserDeleted     = "user-deleted"
)

const (
	EntityTask     = "task"
	EntitySettings = "user-settings"
	EntityUser     = "user"
)

// Event announces a committed change to downstream consumers.
type Event struct {
	ID         string                 `json:"id"`
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Type       string                 `json:"type"`
	UserID     string                 `json:"userId"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time       int64                  `json:"time"`
}

// NewEvent builds an event with payload encoded as its data. A payload that
// fails to encode leaves Data empty.
func NewEvent(typ, entityType, entityID, userID string, payload any) Event {
	ev := Event{
		EntityID:   entityID,
		EntityType: entityType,
		Type:       typ,
		UserID:     userID,
		Time:       NextTimestamp(),
	}
	if payload != nil {
		if data, err := sonic.Marshal(payload); err == nil {
			ev.Data = data
		}
	}
	return ev
}
