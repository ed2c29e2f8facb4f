package types

// TurnRole distinguishes request turns from response turns.
type TurnRole string

const (
	RoleRequest  TurnRole = "request"
	RoleResponse TurnRole = "response"
)

// Turn is one entry of a session history.
type Turn struct {
	Role        TurnRole       `json:"role"`
	Participant string         `json:"participant,omitempty"`
	Prompt      string         `json:"prompt,omitempty"` // request turns
	Parts       []ResponsePart `json:"parts,omitempty"`  // response turns
	Time        int64          `json:"time"`
}

// RequestTurn builds a request turn.
func RequestTurn(participant, prompt string, at int64) Turn {
	return Turn{Role: RoleRequest, Participant: participant, Prompt: prompt, Time: at}
}

// ResponseTurn builds a response turn from emitted parts.
func ResponseTurn(participant string, parts []ResponsePart, at int64) Turn {
	return Turn{Role: RoleResponse, Participant: participant, Parts: parts, Time: at}
}

// PartType identifies a streamed output event.
type PartType string

const (
	PartMarkdown     PartType = "markdown"
	PartProgress     PartType = "progress"
	PartThinking     PartType = "thinking"
	PartWarning      PartType = "warning"
	PartConfirmation PartType = "confirmation"
)

// ResponsePart is a single output event emitted to a sink.
type ResponsePart struct {
	Type         PartType      `json:"type"`
	Text         string        `json:"text,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// Markdown returns a markdown part.
func Markdown(text string) ResponsePart { return ResponsePart{Type: PartMarkdown, Text: text} }

// Progress returns a progress part.
func Progress(text string) ResponsePart { return ResponsePart{Type: PartProgress, Text: text} }

// Thinking returns a thinking part.
func Thinking(text string) ResponsePart { return ResponsePart{Type: PartThinking, Text: text} }

// Warning returns a warning part.
func Warning(text string) ResponsePart { return ResponsePart{Type: PartWarning, Text: text} }

// Request is an inbound message for a session. A request carrying a
// Reply resolves an outstanding confirmation instead of being handled
// as a prompt.
type Request struct {
	Prompt string             `json:"prompt"`
	Reply  *ConfirmationReply `json:"reply,omitempty"`
}

// ResponseMetadata summarises how a dispatched request was handled.
type ResponseMetadata struct {
	SessionID string `json:"sessionID"`
	Command   string `json:"command,omitempty"`
	// ModifiedID is set when the request committed the session under a new id.
	ModifiedID string `json:"modifiedID,omitempty"`
	// Warning carries the user-visible message for NotFound and
	// InvalidTransition outcomes.
	Warning   string `json:"warning,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}
