package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/joshbot/chatsessions/internal/event"
	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/internal/option"
	"github.com/joshbot/chatsessions/pkg/types"
)

const (
	// DefaultStepDelay paces scripted streaming output.
	DefaultStepDelay = 800 * time.Millisecond
	// DefaultUntitledTTL is how long an untitled placeholder is remembered
	// after it was last looked up.
	DefaultUntitledTTL = time.Hour

	untitledLabel = "Untitled Session"
	maxLabelRunes = 40
)

// ToolLister provides the tool catalog shown by the /tools command.
type ToolLister interface {
	ListTools(ctx context.Context) ([]types.ToolInfo, error)
}

// Config holds the optional collaborators and tuning of a Manager.
type Config struct {
	StepDelay   time.Duration
	UntitledTTL time.Duration
	// Demos replaces the built-in demo catalog when non-nil.
	Demos     []Demo
	Persister Persister
	Tools     ToolLister
}

// Manager is the session lifecycle state machine. It owns the listed
// session items, the untitled placeholders and the outstanding
// confirmations, and is the only component that mutates them.
type Manager struct {
	mu           sync.RWMutex
	items        map[string]types.SessionItem
	order        []string
	pending      map[string]map[types.ConfirmationStep]pendingConfirmation
	placeholders *cache.Cache
	counter      uint64
	epoch        uint64

	locksMu sync.Mutex
	locks   map[string]*sessionLock

	// persistMu orders writes and removals of persisted records.
	persistMu sync.Mutex

	repo      *Repository
	options   *option.Store
	bus       *event.Bus
	persist   Persister
	tools     ToolLister
	stepDelay time.Duration
	log       zerolog.Logger
}

// sessionLock admits one request per session at a time. Blocked senders on
// a channel are woken in the order they arrived.
type sessionLock struct {
	ch   chan struct{}
	refs int
}

// NewManager creates a manager over store, publishing on bus.
func NewManager(store *option.Store, bus *event.Bus, cfg Config) *Manager {
	if cfg.StepDelay < 0 {
		cfg.StepDelay = 0
	}
	if cfg.UntitledTTL <= 0 {
		cfg.UntitledTTL = DefaultUntitledTTL
	}
	demos := cfg.Demos
	if demos == nil {
		demos = DemoSessions(cfg.StepDelay)
	}

	m := &Manager{
		items:        make(map[string]types.SessionItem),
		pending:      make(map[string]map[types.ConfirmationStep]pendingConfirmation),
		placeholders: cache.New(cfg.UntitledTTL, 2*cfg.UntitledTTL),
		locks:        make(map[string]*sessionLock),
		repo:         NewRepository(store, demos),
		options:      store,
		bus:          bus,
		persist:      cfg.Persister,
		tools:        cfg.Tools,
		stepDelay:    cfg.StepDelay,
		log:          logging.Component("session"),
	}

	// Options chosen on a placeholder that is never committed expire with it.
	m.placeholders.OnEvicted(func(id string, _ interface{}) {
		m.options.Clear(id)
	})

	for _, item := range m.repo.ListStatic() {
		item.Epoch = m.nextEpochLocked()
		m.items[item.ID] = item
		m.order = append(m.order, item.ID)
	}
	return m
}

// Repository returns the content repository.
func (m *Manager) Repository() *Repository {
	return m.repo
}

// ListSessionItems returns the listed sessions: demos in declaration order,
// then dynamic sessions in creation order. Untitled placeholders are not
// listed.
func (m *Manager) ListSessionItems() []types.SessionItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]types.SessionItem, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.items[id])
	}
	return items
}

// GetSessionContent returns the content of id. Ids that are neither demo
// nor dynamic, including deleted ones, resolve to an untitled placeholder,
// which is remembered so a later commit can refer to it.
func (m *Manager) GetSessionContent(id string) Content {
	m.mu.RLock()
	if item, ok := m.items[id]; ok {
		c := m.repo.Get(id)
		c.Item = item
		c.Pending = m.pendingLocked(id)
		m.mu.RUnlock()
		return c
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.repo.Get(id)
	if item, ok := m.items[id]; ok {
		c.Item = item
	} else {
		c.Item = m.placeholderLocked(id)
	}
	c.Pending = m.pendingLocked(id)
	return c
}

// OptionGroups returns the option catalog.
func (m *Manager) OptionGroups() []types.OptionGroup {
	return m.options.Registry().ListGroups()
}

// ApplyOptionUpdates applies updates to the options of id and returns the
// groups whose value changed. Sessions with hidden options ignore updates.
func (m *Manager) ApplyOptionUpdates(ctx context.Context, id string, updates []types.OptionUpdate) []string {
	if m.repo.OptionsHidden(id) {
		m.log.Debug().Str(logging.FieldSession, id).Msg("ignoring option update for session with hidden options")
		return nil
	}

	// Options on an untitled id live as long as its placeholder, which also
	// keeps the id from being handed out to a new session.
	m.mu.Lock()
	if _, listed := m.items[id]; !listed && m.repo.Kind(id) == types.KindUntitled {
		m.placeholderLocked(id)
	}
	m.mu.Unlock()

	changed := m.options.ApplyUpdates(id, updates)
	if len(changed) == 0 {
		return nil
	}

	m.log.Info().Str(logging.FieldSession, id).Strs("changed", changed).Msg("session options changed")
	m.bus.PublishSync(event.Event{
		Type: event.SessionOptionsChanged,
		Data: event.SessionOptionsChangedData{SessionID: id, Changed: changed, Options: m.options.Get(id)},
	})
	m.save(ctx, id)
	return changed
}

// CreateSession registers a new dynamic session directly. An empty label
// gets a numbered default.
func (m *Manager) CreateSession(ctx context.Context, label string) types.SessionItem {
	m.mu.Lock()
	id, n := m.nextIDLocked()
	label = strings.TrimSpace(label)
	if label == "" {
		label = defaultLabel(n)
	}
	now := time.Now().UnixMilli()
	item := types.SessionItem{
		ID:     id,
		Label:  label,
		Status: types.StatusCompleted,
		Kind:   types.KindDynamic,
		Epoch:  m.nextEpochLocked(),
		Time:   types.SessionTime{Created: now, Updated: now},
	}
	_ = m.repo.Store(id, Content{History: []types.Turn{}, Handler: m.dynamicHandler(id)})
	m.addItemLocked(item)
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Str("label", label).Msg("session created")
	m.itemsChanged("create")
	m.save(ctx, id)
	return item
}

// DeleteSession removes a dynamic session with its content, options and
// outstanding confirmations. It reports false for unknown ids, demo
// sessions and sessions that were already deleted.
func (m *Manager) DeleteSession(ctx context.Context, id string) bool {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || item.Kind != types.KindDynamic {
		m.mu.Unlock()
		return false
	}
	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	delete(m.pending, id)
	m.repo.Delete(id)
	m.options.Clear(id)
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Msg("session deleted")
	m.bus.PublishSync(event.Event{Type: event.SessionDeleted, Data: event.SessionDeletedData{Info: item}})
	m.itemsChanged("delete")
	m.remove(ctx, id)
	return true
}

// RenameSession changes the label of a listed session and publishes a
// commit notification carrying the old and new item.
func (m *Manager) RenameSession(ctx context.Context, id, label string) (types.CommitData, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return types.CommitData{}, &TransitionError{SessionID: id, Step: types.StepRename, Reason: "A new label is required to rename this session."}
	}

	m.mu.Lock()
	item, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return types.CommitData{}, ErrNotFound
	}
	commit := types.CommitData{Original: item}
	item.Label = label
	item.Epoch = m.nextEpochLocked()
	item.Time.Updated = time.Now().UnixMilli()
	m.items[id] = item
	commit.Modified = item
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Str("from", commit.Original.Label).Str("to", label).Msg("session renamed")
	m.bus.PublishSync(event.Event{Type: event.SessionCommitted, Data: commit})
	m.itemsChanged("rename")
	m.save(ctx, id)
	return commit, nil
}

// ClearHistory empties the history of a dynamic session. Its handler and
// options are kept.
func (m *Manager) ClearHistory(ctx context.Context, id string) error {
	m.mu.Lock()
	if err := m.repo.ClearHistory(id); err != nil {
		m.mu.Unlock()
		return err
	}
	if item, ok := m.items[id]; ok {
		item.Time.Updated = time.Now().UnixMilli()
		m.items[id] = item
	}
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Msg("session history cleared")
	m.itemsChanged("clear")
	m.save(ctx, id)
	return nil
}

// OnSessionItemsChanged registers fn for changes of the session list.
// Returns an unsubscribe function.
func (m *Manager) OnSessionItemsChanged(fn func(reason string)) func() {
	return m.bus.Subscribe(event.SessionItemsChanged, func(e event.Event) {
		if data, ok := e.Data.(event.SessionItemsChangedData); ok {
			fn(data.Reason)
		}
	})
}

// OnSessionCommitted registers fn for commit and rename notifications.
// Returns an unsubscribe function.
func (m *Manager) OnSessionCommitted(fn func(types.CommitData)) func() {
	return m.bus.Subscribe(event.SessionCommitted, func(e event.Event) {
		if data, ok := e.Data.(event.SessionCommittedData); ok {
			fn(data)
		}
	})
}

func (m *Manager) itemsChanged(reason string) {
	m.bus.PublishSync(event.Event{Type: event.SessionItemsChanged, Data: event.SessionItemsChangedData{Reason: reason}})
}

// setStatus updates the status of a dynamic session.
func (m *Manager) setStatus(ctx context.Context, id string, status types.SessionStatus) {
	m.mu.Lock()
	item, ok := m.items[id]
	if !ok || item.Kind != types.KindDynamic || item.Status == status {
		m.mu.Unlock()
		return
	}
	item.Status = status
	item.Epoch = m.nextEpochLocked()
	item.Time.Updated = time.Now().UnixMilli()
	m.items[id] = item
	m.mu.Unlock()

	m.log.Info().Str(logging.FieldSession, id).Str("status", string(status)).Msg("session status changed")
	m.itemsChanged("status")
	m.save(ctx, id)
}

func (m *Manager) item(id string) (types.SessionItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}

func (m *Manager) addItemLocked(item types.SessionItem) {
	if _, exists := m.items[item.ID]; !exists {
		m.order = append(m.order, item.ID)
	}
	m.items[item.ID] = item
}

func (m *Manager) nextEpochLocked() uint64 {
	m.epoch++
	return m.epoch
}

// nextIDLocked allocates the next free session-<n> id.
func (m *Manager) nextIDLocked() (string, uint64) {
	for {
		m.counter++
		id := fmt.Sprintf("session-%d", m.counter)
		if _, taken := m.items[id]; taken {
			continue
		}
		if _, live := m.placeholders.Get(id); live {
			continue
		}
		if m.options.Has(id) {
			continue
		}
		if m.repo.Kind(id) != types.KindUntitled {
			continue
		}
		return id, m.counter
	}
}

// placeholderLocked returns the untitled item for id, creating it on first
// use. Every lookup extends its lifetime.
func (m *Manager) placeholderLocked(id string) types.SessionItem {
	if v, ok := m.placeholders.Get(id); ok {
		item := v.(types.SessionItem)
		m.placeholders.SetDefault(id, item)
		return item
	}
	// An expired entry may not have been swept yet; evict it so its
	// options go with it.
	m.placeholders.Delete(id)
	now := time.Now().UnixMilli()
	item := types.SessionItem{
		ID:     id,
		Label:  untitledLabel,
		Status: types.StatusCompleted,
		Kind:   types.KindUntitled,
		Epoch:  m.nextEpochLocked(),
		Time:   types.SessionTime{Created: now, Updated: now},
	}
	m.placeholders.SetDefault(id, item)
	return item
}

func (m *Manager) pendingLocked(id string) []types.Confirmation {
	byStep := m.pending[id]
	if len(byStep) == 0 {
		return nil
	}
	out := make([]types.Confirmation, 0, len(byStep))
	for _, step := range stepOrder {
		if p, ok := byStep[step]; ok {
			out = append(out, p.wire())
		}
	}
	return out
}

func (m *Manager) lockSession(ctx context.Context, id string) (func(), error) {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	release := func() {
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

func defaultLabel(n uint64) string {
	return fmt.Sprintf("🆕 Session %d", n)
}

// labelFromPrompt derives a session label from the first line of prompt.
func labelFromPrompt(prompt string, n uint64) string {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(prompt), "\n", 2)[0])
	if line == "" {
		return defaultLabel(n)
	}
	if utf8.RuneCountInString(line) > maxLabelRunes {
		runes := []rune(line)
		line = strings.TrimSpace(string(runes[:maxLabelRunes])) + "…"
	}
	return line
}
