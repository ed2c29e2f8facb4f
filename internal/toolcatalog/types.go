// Package toolcatalog aggregates MCP tool servers behind one client.
//
// Built-in servers run in-process and are reached over a pipe pair, the
// same JSON-RPC stream a stdio subprocess would use. External servers are
// started as subprocesses.
package toolcatalog

// Transport types for tool servers.
const (
	TransportBuiltin = "builtin"
	TransportStdio   = "stdio"
)

// ServerStatus represents the status of a tool server.
type ServerStatus struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	ToolCount int     `json:"toolCount"`
	Version   string  `json:"version,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// Status represents the connection status.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisabled     Status = "disabled"
	StatusFailed       Status = "failed"
	StatusDisconnected Status = "disconnected"
)
