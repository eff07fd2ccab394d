package models

import (
	"errors"
	"time"
)

// ErrTextRequired is returned when a todo has no text.
var ErrTextRequired = errors.New("text is required")

// Todo represents a todo item. ID is assigned by the store.
type Todo struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Validate enforces the required-field constraint shared by all stores.
func (t *Todo) Validate() error {
	if t.Text == "" {
		return ErrTextRequired
	}
	return nil
}

// Change-feed actions.
const (
	ActionCreated = "created"
	ActionToggled = "toggled"
	ActionDeleted = "deleted"
)

// TodoEvent is the change-feed payload published after a committed write.
type TodoEvent struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"` // created, toggled, deleted
	Todo       Todo      `json:"todo"`
	OccurredAt time.Time `json:"occurred_at"`
}
