// Package archive persists transcript entries so a session survives a
// browser refresh or a process restart. Writes are best effort; the
// assistant keeps talking if the archive is down.
package archive

import (
	"context"
	"time"
)

// Entry is one archived transcript line.
type Entry struct {
	SessionID string    `json:"session_id"`
	Owner     string    `json:"owner"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Level     string    `json:"level,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	TextOnly  bool      `json:"text_only,omitempty"`
	At        time.Time `json:"at"`
}

// Store archives transcript entries.
type Store interface {
	SaveEntry(ctx context.Context, e Entry) error
	// RecentEntries returns the owner's newest entries, oldest first,
	// up to limit.
	RecentEntries(ctx context.Context, owner string, limit int) ([]Entry, error)
	Close()
}
