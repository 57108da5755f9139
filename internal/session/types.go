package session

import "time"

// State is the lifecycle position of a session. A session is created in
// StateStarting and loops between listening and speaking until it
// reaches a terminal state.
type State string

const (
	StateInactive  State = "inactive"
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
	StateStopped   State = "stopped"
	StateError     State = "error"
)

// Terminal reports whether the session can never leave this state.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateError
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// TranscriptEntry is one line of the session's conversation log.
type TranscriptEntry struct {
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	Level    string    `json:"level"`
	Provider string    `json:"provider,omitempty"`
	TextOnly bool      `json:"text_only,omitempty"`
	At       time.Time `json:"at"`
}

// Session is the externally visible session record. Values handed out
// by the table are snapshots; mutating them has no effect.
type Session struct {
	ID             string            `json:"session_id"`
	Owner          string            `json:"owner"`
	State          State             `json:"state"`
	StateReason    string            `json:"state_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	Transcript     []TranscriptEntry `json:"transcript"`
}
