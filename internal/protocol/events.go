// Package protocol defines the push events sent to control-panel
// subscribers over the websocket.
package protocol

import "time"

const (
	// EventStateChange announces a session state transition.
	EventStateChange = "state_change"
	// EventLog announces a new transcript entry.
	EventLog = "log"
)

// Event is the envelope for every message pushed to a subscriber.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	At        time.Time `json:"at"`

	// State fields, set for state_change events.
	State     string `json:"state,omitempty"`
	PrevState string `json:"prev_state,omitempty"`
	Reason    string `json:"reason,omitempty"`

	// Transcript fields, set for log events.
	Role     string `json:"role,omitempty"`
	Text     string `json:"text,omitempty"`
	Level    string `json:"level,omitempty"`
	Provider string `json:"provider,omitempty"`
	TextOnly bool   `json:"text_only,omitempty"`
}
