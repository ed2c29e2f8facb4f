package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joshbot/chatsessions/pkg/types"
)

// Confirmation is an outstanding yes/no decision. The set of variants is
// closed: CreateConfirmation, PingConfirmation, DeleteConfirmation,
// RenameConfirmation, ExportConfirmation and ClearHistoryConfirmation.
type Confirmation interface {
	Step() types.ConfirmationStep
	wire(id string) types.Confirmation
}

// CreateConfirmation offers to commit an untitled placeholder.
type CreateConfirmation struct {
	// Epoch of the placeholder item the confirmation was issued for.
	Epoch  uint64
	Prompt string
}

// PingConfirmation is a round trip check with no side effects.
type PingConfirmation struct{}

// DeleteConfirmation offers to delete a session.
type DeleteConfirmation struct {
	SessionID string
}

// RenameConfirmation offers to rename a session. NewLabel is the proposed
// label; a reply may override it.
type RenameConfirmation struct {
	SessionID    string
	CurrentLabel string
	NewLabel     string
}

// ExportConfirmation offers to export a session's history.
type ExportConfirmation struct {
	SessionID string
	Format    string
}

// ClearHistoryConfirmation offers to clear a session's history.
type ClearHistoryConfirmation struct {
	SessionID string
}

func (CreateConfirmation) Step() types.ConfirmationStep       { return types.StepCreate }
func (PingConfirmation) Step() types.ConfirmationStep         { return types.StepPing }
func (DeleteConfirmation) Step() types.ConfirmationStep       { return types.StepDelete }
func (RenameConfirmation) Step() types.ConfirmationStep       { return types.StepRename }
func (ExportConfirmation) Step() types.ConfirmationStep       { return types.StepExport }
func (ClearHistoryConfirmation) Step() types.ConfirmationStep { return types.StepClearHistory }

func (c CreateConfirmation) wire(id string) types.Confirmation {
	return types.Confirmation{
		ID:      id,
		Step:    types.StepCreate,
		Title:   "Create session",
		Message: "Create a new session from this conversation?",
		Payload: map[string]string{"epoch": strconv.FormatUint(c.Epoch, 10), "prompt": c.Prompt},
	}
}

func (PingConfirmation) wire(id string) types.Confirmation {
	return types.Confirmation{
		ID:      id,
		Step:    types.StepPing,
		Title:   "Ping",
		Message: "Send a ping?",
	}
}

func (c DeleteConfirmation) wire(id string) types.Confirmation {
	return types.Confirmation{
		ID:      id,
		Step:    types.StepDelete,
		Title:   "Delete session",
		Message: "Delete this session and its history?",
		Payload: map[string]string{"sessionId": c.SessionID},
	}
}

func (c RenameConfirmation) wire(id string) types.Confirmation {
	msg := fmt.Sprintf("Rename %q?", c.CurrentLabel)
	if c.NewLabel != "" {
		msg = fmt.Sprintf("Rename %q to %q?", c.CurrentLabel, c.NewLabel)
	}
	return types.Confirmation{
		ID:      id,
		Step:    types.StepRename,
		Title:   "Rename session",
		Message: msg,
		Payload: map[string]string{"sessionId": c.SessionID, "currentLabel": c.CurrentLabel, "label": c.NewLabel},
	}
}

func (c ExportConfirmation) wire(id string) types.Confirmation {
	return types.Confirmation{
		ID:      id,
		Step:    types.StepExport,
		Title:   "Export session",
		Message: fmt.Sprintf("Export this session as %s?", c.Format),
		Payload: map[string]string{"sessionId": c.SessionID, "format": c.Format},
	}
}

func (c ClearHistoryConfirmation) wire(id string) types.Confirmation {
	return types.Confirmation{
		ID:      id,
		Step:    types.StepClearHistory,
		Title:   "Clear history",
		Message: "Remove every turn from this session?",
		Payload: map[string]string{"sessionId": c.SessionID},
	}
}

// pendingConfirmation is a confirmation awaiting its reply.
type pendingConfirmation struct {
	id      string
	c       Confirmation
	created time.Time
}

func newPending(c Confirmation) pendingConfirmation {
	return pendingConfirmation{id: ulid.Make().String(), c: c, created: time.Now()}
}

func (p pendingConfirmation) wire() types.Confirmation {
	return p.c.wire(p.id)
}

// knownStep reports whether step names a confirmation variant.
func knownStep(step types.ConfirmationStep) bool {
	switch step {
	case types.StepCreate, types.StepPing, types.StepDelete,
		types.StepRename, types.StepExport, types.StepClearHistory:
		return true
	}
	return false
}

// stepOrder is the order outstanding confirmations are listed in.
var stepOrder = []types.ConfirmationStep{
	types.StepCreate,
	types.StepDelete,
	types.StepRename,
	types.StepExport,
	types.StepClearHistory,
	types.StepPing,
}
