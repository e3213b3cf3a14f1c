package models

import "time"

// Journal event types.
const (
	EventStatusChange  = "STATUS_CHANGE"
	EventCommand       = "COMMAND"
	EventCommandFailed = "COMMAND_FAILED"
)

// LiftEvent is a single journal entry: a stream status transition or a
// command dispatch outcome. Lift state itself is never journaled.
type LiftEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`              // STATUS_CHANGE | COMMAND | COMMAND_FAILED
	LiftID      string    `json:"lift_id,omitempty"` // empty for stream-wide events
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
