package event

import "github.com/joshbot/chatsessions/pkg/types"

// SessionItemsChangedData is the data for session.items.changed events.
type SessionItemsChangedData struct {
	Reason string `json:"reason"` // "create" | "commit" | "rename" | "delete" | "clear" | "status" | "restore"
}

// SessionCommittedData is the data for session.committed events.
// The host replaces Original with Modified in place.
type SessionCommittedData = types.CommitData

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	Info types.SessionItem `json:"info"`
}

// SessionOptionsChangedData is the data for session.options.changed events.
type SessionOptionsChangedData struct {
	SessionID string            `json:"sessionID"`
	Changed   []string          `json:"changed"`
	Options   map[string]string `json:"options"`
}

// ConfirmationRequestedData is the data for confirmation.requested events.
type ConfirmationRequestedData struct {
	SessionID    string             `json:"sessionID"`
	Confirmation types.Confirmation `json:"confirmation"`
}

// ConfirmationResolvedData is the data for confirmation.resolved events.
type ConfirmationResolvedData struct {
	SessionID string                 `json:"sessionID"`
	ID        string                 `json:"id"`
	Step      types.ConfirmationStep `json:"step"`
	Accepted  bool                   `json:"accepted"`
}
