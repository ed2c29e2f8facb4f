// Package config provides configuration loading, merging, and path management.
//
// # Configuration Loading
//
// Load searches for and merges configuration in priority order, later
// sources overriding earlier ones:
//
//  1. Global config ($XDG_CONFIG_HOME/chatsessions/chatsessions.json[c])
//  2. Project config (<dir>/chatsessions.json[c], then <dir>/.chatsessions/chatsessions.json[c])
//  3. CHATSESSIONS_CONFIG file
//  4. CHATSESSIONS_CONFIG_CONTENT inline JSON
//  5. Environment variables (CHATSESSIONS_LOG_LEVEL, CHATSESSIONS_PORT, CHATSESSIONS_PERSIST)
//
// Files may contain comments (JSONC); they are stripped with tidwall/jsonc
// before decoding. {env:VAR_NAME} placeholders expand to the JSON-escaped
// value of the environment variable.
//
// # Merge Semantics
//
// Scalars override when set. Server settings merge field by field. Option
// groups, stream and untitled settings replace as a whole. Tool servers
// merge by name.
//
// # Example
//
//	{
//	  // chatsessions.jsonc
//	  "logLevel": "DEBUG",
//	  "server": {"port": 9090},
//	  "stream": {"stepDelay": "250ms"},
//	  "persist": true,
//	  "toolServers": {
//	    "github": {"type": "builtin"},
//	    "remote-browser": {"type": "stdio", "command": ["chatsessions", "mcp", "browser"]}
//	  }
//	}
//
// # Paths
//
// GetPaths returns XDG data, config and state directories under
// "chatsessions". Persisted sessions live in Paths.StoragePath unless
// dataDir is configured.
//
// # Reloading
//
// Watcher follows the files of SearchDirs and CHATSESSIONS_CONFIG with
// fsnotify and reloads after a short debounce. An edit that does not parse
// keeps the previous configuration.
package config
