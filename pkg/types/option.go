package types

// OptionItem is one selectable choice of an option group.
type OptionItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OptionGroup is a named, enumerated set of mutually exclusive choices.
type OptionGroup struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Items       []OptionItem `json:"items"`
}

// OptionUpdate sets or clears one option group for a session.
// A nil Value is the unset sentinel.
type OptionUpdate struct {
	GroupID string  `json:"groupId"`
	Value   *string `json:"value"`
}

// Set returns an update selecting itemID for groupID.
func Set(groupID, itemID string) OptionUpdate {
	return OptionUpdate{GroupID: groupID, Value: &itemID}
}

// Unset returns an update clearing groupID.
func Unset(groupID string) OptionUpdate {
	return OptionUpdate{GroupID: groupID}
}

// ConfirmationStep tags what an outstanding confirmation decides.
type ConfirmationStep string

const (
	StepCreate       ConfirmationStep = "create"
	StepPing         ConfirmationStep = "ping"
	StepDelete       ConfirmationStep = "delete"
	StepRename       ConfirmationStep = "rename"
	StepExport       ConfirmationStep = "export"
	StepClearHistory ConfirmationStep = "clearHistory"
)

// Confirmation is the wire form of an outstanding yes/no decision.
type Confirmation struct {
	ID      string            `json:"id"`
	Step    ConfirmationStep  `json:"step"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Payload map[string]string `json:"payload,omitempty"`
}

// ConfirmationReply resolves an outstanding confirmation. Data carries
// step specific answers, e.g. the new label for a rename.
type ConfirmationReply struct {
	ID       string            `json:"id,omitempty"`
	Step     ConfirmationStep  `json:"step"`
	Accepted bool              `json:"accepted"`
	Data     map[string]string `json:"data,omitempty"`
}
