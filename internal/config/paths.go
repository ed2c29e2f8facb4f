package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	appName = "chatsessions"
	// projectDir is the per-project config directory.
	projectDir = ".chatsessions"
)

// Paths contains the standard paths for chatsessions data.
type Paths struct {
	Data   string // ~/.local/share/chatsessions
	Config string // ~/.config/chatsessions
	State  string // ~/.local/state/chatsessions
}

// GetPaths resolves the XDG base directories for the current environment.
func GetPaths() *Paths {
	return &Paths{
		Data:   xdgDir("XDG_DATA_HOME", ".local", "share"),
		Config: xdgDir("XDG_CONFIG_HOME", ".config"),
		State:  xdgDir("XDG_STATE_HOME", ".local", "state"),
	}
}

// xdgDir returns $env/chatsessions, falling back to ~/<home...>/chatsessions
// (or %APPDATA%\chatsessions on Windows).
func xdgDir(env string, home ...string) string {
	base := os.Getenv(env)
	if base == "" {
		if runtime.GOOS == "windows" {
			base = os.Getenv("APPDATA")
		} else {
			base = filepath.Join(append([]string{os.Getenv("HOME")}, home...)...)
		}
	}
	return filepath.Join(base, appName)
}

// StoragePath is where persisted sessions live when no dataDir is set.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "storage")
}

// SearchDirs lists the directories scanned for config files, lowest
// priority first.
func SearchDirs(directory string) []string {
	dirs := []string{GetPaths().Config}
	if directory != "" {
		dirs = append(dirs, directory, filepath.Join(directory, projectDir))
	}
	return dirs
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, configNames[0])
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, projectDir, configNames[0])
}
