package commands

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/joshbot/chatsessions/internal/config"
	"github.com/joshbot/chatsessions/internal/event"
	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/internal/option"
	"github.com/joshbot/chatsessions/internal/session"
	"github.com/joshbot/chatsessions/internal/storage"
	"github.com/joshbot/chatsessions/internal/toolcatalog"
	"github.com/joshbot/chatsessions/pkg/types"
)

// app holds the wired components shared by the commands.
type app struct {
	dir     string
	config  *types.Config
	bus     *event.Bus
	manager *session.Manager
	tools   *toolcatalog.Catalog
}

// loadConfig loads the .env file and configuration for the project
// directory and initialises logging.
func loadConfig() (string, *types.Config, error) {
	dir, err := GetWorkDir(workDir)
	if err != nil {
		return "", nil, err
	}

	if envFile != "" {
		path := envFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", nil, err
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return "", nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logging.Configure(level, prettyLog || cfg.LogPretty, os.Stderr)
	return dir, cfg, nil
}

// newApp wires the session manager. The tool catalog is connected only
// when withTools is set.
func newApp(ctx context.Context, withTools bool) (*app, error) {
	dir, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{dir: dir, config: cfg, bus: event.NewBus()}

	groups := cfg.OptionGroups
	if len(groups) == 0 {
		groups = option.DefaultGroups()
	}

	sessCfg := session.Config{
		StepDelay:   cfg.StepDelay(session.DefaultStepDelay),
		UntitledTTL: cfg.UntitledTTL(session.DefaultUntitledTTL),
	}
	if cfg.Persist {
		dataDir := config.DataDir(cfg)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			a.bus.Close()
			return nil, err
		}
		sessCfg.Persister = storage.NewSessions(storage.New(dataDir))
		logging.Info().Str("dir", dataDir).Msg("session persistence enabled")
	}
	if withTools {
		a.tools, err = toolcatalog.Open(ctx, cfg.ToolServers)
		if err != nil {
			a.bus.Close()
			return nil, err
		}
		sessCfg.Tools = a.tools
	}

	a.manager = session.NewManager(option.NewStore(option.NewRegistry(groups)), a.bus, sessCfg)
	if _, err := a.manager.Restore(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to restore persisted sessions")
	}
	return a, nil
}

// Close releases the tool servers and the event bus.
func (a *app) Close() {
	if a.tools != nil {
		a.tools.Close()
	}
	a.bus.Close()
}
