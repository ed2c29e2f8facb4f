package types

import "time"

// Config represents the chatsessions configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// Logging
	LogLevel  string `json:"logLevel,omitempty"` // "DEBUG"|"INFO"|"WARN"|"ERROR"
	LogPretty bool   `json:"logPretty,omitempty"`

	// HTTP host surface
	Server *ServerConfig `json:"server,omitempty"`

	// Option catalog offered per session. Replaces the built-in
	// model/subagent groups when non-empty.
	OptionGroups []OptionGroup `json:"optionGroups,omitempty"`

	// Streaming response pacing
	Stream *StreamConfig `json:"stream,omitempty"`

	// Untitled placeholder tracking
	Untitled *UntitledConfig `json:"untitled,omitempty"`

	// Persist dynamic sessions under DataDir
	Persist bool   `json:"persist,omitempty"`
	DataDir string `json:"dataDir,omitempty"`

	// Tool servers offered by the /tools command. The built-in github
	// and browser servers are used when empty.
	ToolServers map[string]*ToolServerConfig `json:"toolServers,omitempty"`
}

// ToolServerConfig defines one MCP tool server.
type ToolServerConfig struct {
	Enabled     *bool             `json:"enabled,omitempty"`
	Type        string            `json:"type"`              // "builtin"|"stdio"
	Builtin     string            `json:"builtin,omitempty"` // "github"|"browser"
	Command     []string          `json:"command,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Timeout     int               `json:"timeout,omitempty"` // milliseconds
}

// IsEnabled reports whether the server should be connected. Servers are
// enabled unless explicitly disabled.
func (c *ToolServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `json:"port,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	CORS     *bool  `json:"cors,omitempty"`
}

// StreamConfig holds streaming controller settings.
type StreamConfig struct {
	StepDelay string `json:"stepDelay,omitempty"` // e.g. "800ms"
}

// UntitledConfig holds untitled placeholder settings.
type UntitledConfig struct {
	TTL string `json:"ttl,omitempty"` // e.g. "1h"
}

// StepDelay returns the configured delay between streamed steps,
// or def when unset or malformed.
func (c *Config) StepDelay(def time.Duration) time.Duration {
	if c == nil || c.Stream == nil || c.Stream.StepDelay == "" {
		return def
	}
	d, err := time.ParseDuration(c.Stream.StepDelay)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// UntitledTTL returns how long an untitled placeholder is remembered,
// or def when unset or malformed.
func (c *Config) UntitledTTL(def time.Duration) time.Duration {
	if c == nil || c.Untitled == nil || c.Untitled.TTL == "" {
		return def
	}
	d, err := time.ParseDuration(c.Untitled.TTL)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
