package types

// ToolInfo describes one tool offered by a tool server.
type ToolInfo struct {
	Server      string `json:"server"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolResult is the text output of a tool call.
type ToolResult struct {
	Server  string `json:"server"`
	Name    string `json:"name"`
	Text    string `json:"text"`
	IsError bool   `json:"isError,omitempty"`
}
