// Package types provides the core data types shared by the chat session host API.
package types

// SessionStatus is the display state of a listed session.
type SessionStatus string

const (
	StatusCompleted  SessionStatus = "completed"
	StatusInProgress SessionStatus = "in_progress"
	StatusFailed     SessionStatus = "failed"
)

// SessionKind tags how a session was registered.
type SessionKind string

const (
	// KindDemo sessions have fixed, synthesized content and cannot be deleted.
	KindDemo SessionKind = "demo"
	// KindDynamic sessions were created at runtime (committed or created directly).
	KindDynamic SessionKind = "dynamic"
	// KindUntitled sessions are placeholders that have not been committed yet.
	KindUntitled SessionKind = "untitled"
)

// SessionItem is the lightweight listing entry for a session.
type SessionItem struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Status SessionStatus `json:"status"`
	Kind   SessionKind   `json:"kind"`
	// Epoch is bumped on every mutation of the item. Commit and rename
	// notifications carry it so stale references can be detected.
	Epoch uint64      `json:"epoch"`
	Time  SessionTime `json:"time"`
}

// SessionTime contains timestamps for a session.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// CommitData is the payload of a commit notification: the host replaces
// Original with Modified in place.
type CommitData struct {
	Original SessionItem `json:"original"`
	Modified SessionItem `json:"modified"`
}

// SessionView is the serialisable form of a session's content.
type SessionView struct {
	Item              SessionItem       `json:"item"`
	History           []Turn            `json:"history"`
	ReadOnly          bool              `json:"readOnly"`
	HasActiveResponse bool              `json:"hasActiveResponse"`
	Options           map[string]string `json:"options,omitempty"`
	OptionsHidden     bool              `json:"optionsHidden,omitempty"`
	Pending           []Confirmation    `json:"pending,omitempty"`
}

// SessionRecord is the persisted form of a dynamic session.
type SessionRecord struct {
	Item    SessionItem       `json:"item"`
	History []Turn            `json:"history"`
	Options map[string]string `json:"options,omitempty"`
}
