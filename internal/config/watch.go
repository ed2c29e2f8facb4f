package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/pkg/types"
)

// DefaultDebounce collapses the burst of events an editor produces when it
// saves a file.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the configuration when one of its files changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	files    map[string]bool
	debounce time.Duration
	onReload func(*types.Config)
	log      zerolog.Logger
}

// NewWatcher watches the config search directories of directory. onReload
// receives every configuration that loads cleanly after a change; a change
// that leaves a file unparseable is logged and skipped.
func NewWatcher(directory string, debounce time.Duration, onReload func(*types.Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fw,
		dir:      directory,
		files:    make(map[string]bool),
		debounce: debounce,
		onReload: onReload,
		log:      logging.Component("config"),
	}

	dirs := SearchDirs(directory)
	if path := os.Getenv("CHATSESSIONS_CONFIG"); path != "" {
		w.files[filepath.Clean(path)] = true
		dirs = append(dirs, filepath.Dir(path))
	}
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		// fsnotify watches directories; editors replace files by rename.
		if err := fw.Add(dir); err != nil {
			w.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch config directory")
			continue
		}
		w.log.Debug().Str("dir", dir).Msg("watching config directory")
	}
	return w, nil
}

// Run delivers reloads until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigFile(ev.Name) || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("config file changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) isConfigFile(path string) bool {
	if w.files[filepath.Clean(path)] {
		return true
	}
	base := filepath.Base(path)
	for _, name := range configNames {
		if base == name {
			return true
		}
	}
	return false
}

func (w *Watcher) reload() {
	cfg, err := Load(w.dir)
	if err != nil {
		w.log.Warn().Err(err).Msg("keeping previous configuration")
		return
	}
	w.log.Info().Msg("configuration reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
