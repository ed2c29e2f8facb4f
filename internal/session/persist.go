package session

import (
	"context"
	"strconv"
	"strings"

	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/pkg/types"
)

// Persister stores dynamic sessions across restarts.
type Persister interface {
	SaveSession(ctx context.Context, rec types.SessionRecord) error
	RemoveSession(ctx context.Context, id string) error
	LoadSessions(ctx context.Context) ([]types.SessionRecord, error)
}

// save writes the current record of a dynamic session. Failures are logged;
// the in-memory state stays authoritative. The item is looked up under
// persistMu so a save racing a delete never rewrites a removed record.
func (m *Manager) save(ctx context.Context, id string) {
	if m.persist == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.RLock()
	item, ok := m.items[id]
	if !ok || item.Kind != types.KindDynamic {
		m.mu.RUnlock()
		return
	}
	c := m.repo.Get(id)
	m.mu.RUnlock()

	rec := types.SessionRecord{Item: item, History: c.History, Options: m.options.Get(id)}
	if err := m.persist.SaveSession(context.WithoutCancel(ctx), rec); err != nil {
		m.log.Warn().Err(err).Str(logging.FieldSession, id).Msg("failed to persist session")
	}
}

func (m *Manager) remove(ctx context.Context, id string) {
	if m.persist == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	if err := m.persist.RemoveSession(context.WithoutCancel(ctx), id); err != nil {
		m.log.Warn().Err(err).Str(logging.FieldSession, id).Msg("failed to remove persisted session")
	}
}

// Restore loads persisted sessions and registers them as dynamic sessions.
// Records that clash with a listed session are skipped. The id counter is
// advanced past every restored session-<n> id. Returns the number of
// sessions restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.persist == nil {
		return 0, nil
	}
	records, err := m.persist.LoadSessions(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	m.mu.Lock()
	for _, rec := range records {
		id := rec.Item.ID
		if _, exists := m.items[id]; exists || m.repo.Kind(id) != types.KindUntitled {
			m.log.Warn().Str(logging.FieldSession, id).Msg("skipping persisted session that clashes with a listed session")
			continue
		}

		item := rec.Item
		item.Kind = types.KindDynamic
		item.Epoch = m.nextEpochLocked()
		// Active responses are not persisted.
		if item.Status == types.StatusInProgress {
			item.Status = types.StatusCompleted
		}
		if err := m.repo.Store(id, Content{History: rec.History, Handler: m.dynamicHandler(id)}); err != nil {
			continue
		}
		m.options.Merge(id, rec.Options)
		m.addItemLocked(item)

		if n, ok := sessionNumber(id); ok && n > m.counter {
			m.counter = n
		}
		restored++
	}
	m.mu.Unlock()

	if restored > 0 {
		m.log.Info().Int("count", restored).Msg("restored sessions")
		m.itemsChanged("restore")
	}
	return restored, nil
}

func sessionNumber(id string) (uint64, bool) {
	rest, ok := strings.CutPrefix(id, "session-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	return n, err == nil
}
