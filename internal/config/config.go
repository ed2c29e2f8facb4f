package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/pkg/types"
	"github.com/tidwall/jsonc"
)

// Default HTTP listen settings.
const (
	DefaultPort     = 8080
	DefaultHostname = "127.0.0.1"
)

// configNames are the file names probed in every config directory.
var configNames = []string{"chatsessions.json", "chatsessions.jsonc"}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/chatsessions/)
// 2. Project config (<directory>/ and <directory>/.chatsessions/)
// 3. CHATSESSIONS_CONFIG file
// 4. CHATSESSIONS_CONFIG_CONTENT inline JSON
// 5. Environment variables
//
// Missing files are skipped. A file that exists but does not parse is an
// error, as is malformed inline content.
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string) error {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil
		}
		if loaded[absPath] {
			return nil
		}
		ok, err := loadConfigFile(path, config)
		if err != nil {
			return err
		}
		if ok {
			loaded[absPath] = true
		}
		return nil
	}

	for _, dir := range SearchDirs(directory) {
		for _, name := range configNames {
			if err := loadOnce(filepath.Join(dir, name)); err != nil {
				return nil, err
			}
		}
	}

	if configPath := os.Getenv("CHATSESSIONS_CONFIG"); configPath != "" {
		if err := loadOnce(configPath); err != nil {
			return nil, err
		}
	}

	if configContent := os.Getenv("CHATSESSIONS_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal(interpolate(jsonc.ToJSON([]byte(configContent))), &inlineConfig); err != nil {
			return nil, &ParseError{Source: "CHATSESSIONS_CONFIG_CONTENT", Err: err}
		}
		mergeConfig(config, &inlineConfig)
	}

	applyEnvOverrides(config)
	return config, nil
}

// ParseError reports a config source that could not be decoded.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return "parse config " + e.Source + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// loadConfigFile merges a single config file into config. It reports
// false without error when the file does not exist.
func loadConfigFile(path string, config *types.Config) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	// Strip JSONC comments using tidwall/jsonc
	data = interpolate(jsonc.ToJSON(data))

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return false, &ParseError{Source: path, Err: err}
	}

	mergeConfig(config, &fileConfig)
	return true, nil
}

// interpolate expands {env:VAR_NAME} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(jsonEscape(os.Getenv(string(varName))))
	})
}

func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.LogPretty {
		target.LogPretty = true
	}
	if source.Persist {
		target.Persist = true
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}

	if source.Server != nil {
		if target.Server == nil {
			target.Server = &types.ServerConfig{}
		}
		if source.Server.Port != 0 {
			target.Server.Port = source.Server.Port
		}
		if source.Server.Hostname != "" {
			target.Server.Hostname = source.Server.Hostname
		}
		if source.Server.CORS != nil {
			target.Server.CORS = source.Server.CORS
		}
	}

	// Option groups replace as a whole; merging item lists would make the
	// catalog depend on load order.
	if len(source.OptionGroups) > 0 {
		target.OptionGroups = source.OptionGroups
	}

	if source.Stream != nil {
		target.Stream = source.Stream
	}
	if source.Untitled != nil {
		target.Untitled = source.Untitled
	}

	if source.ToolServers != nil {
		if target.ToolServers == nil {
			target.ToolServers = make(map[string]*types.ToolServerConfig)
		}
		for k, v := range source.ToolServers {
			target.ToolServers[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if level := os.Getenv("CHATSESSIONS_LOG_LEVEL"); logging.ValidLevel(level) {
		config.LogLevel = strings.ToUpper(strings.TrimSpace(level))
	}

	if port := os.Getenv("CHATSESSIONS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			if config.Server == nil {
				config.Server = &types.ServerConfig{}
			}
			config.Server.Port = p
		}
	}

	if persist := os.Getenv("CHATSESSIONS_PERSIST"); persist != "" {
		if b, err := strconv.ParseBool(persist); err == nil {
			config.Persist = b
		}
	}
}

// ListenAddr returns the host:port the HTTP server binds.
func ListenAddr(config *types.Config) string {
	host, port := DefaultHostname, DefaultPort
	if config.Server != nil {
		if config.Server.Hostname != "" {
			host = config.Server.Hostname
		}
		if config.Server.Port != 0 {
			port = config.Server.Port
		}
	}
	return host + ":" + strconv.Itoa(port)
}

// CORSEnabled reports whether cross-origin requests are allowed. CORS is
// on unless explicitly disabled.
func CORSEnabled(config *types.Config) bool {
	return config.Server == nil || config.Server.CORS == nil || *config.Server.CORS
}

// DataDir returns the directory persisted sessions are stored under.
func DataDir(config *types.Config) string {
	if config.DataDir != "" {
		return config.DataDir
	}
	return GetPaths().StoragePath()
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
