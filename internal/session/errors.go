package session

import (
	"errors"
	"fmt"

	"github.com/joshbot/chatsessions/pkg/types"
)

// ErrNotFound is returned when a session id does not name a listed or
// deletable session.
var ErrNotFound = errors.New("session not found")

// TransitionError is returned when a request asks for a transition the
// session is not in a state to make.
type TransitionError struct {
	SessionID string
	Step      types.ConfirmationStep
	Reason    string
}

func (e *TransitionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("session %s: %s: %s", e.SessionID, e.Step, e.Reason)
	}
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
}

// IsTransitionError checks if an error is an invalid transition.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// warningText renders err as the message shown to the user.
func warningText(err error) string {
	var te *TransitionError
	if errors.As(err, &te) {
		return "⚠️ " + te.Reason
	}
	if errors.Is(err, ErrNotFound) {
		return "⚠️ Session not found."
	}
	return "⚠️ " + err.Error()
}
