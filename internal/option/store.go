package option

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/joshbot/chatsessions/internal/logging"
	"github.com/joshbot/chatsessions/pkg/types"
)

// Store maps session ids to their selected option values.
// It is the single owner of option state; session content only reads through it.
type Store struct {
	mu       sync.RWMutex
	registry *Registry
	values   map[string]map[string]string // sessionID -> groupID -> itemID
	log      zerolog.Logger
}

// NewStore creates a store validating against registry.
func NewStore(registry *Registry) *Store {
	return &Store{
		registry: registry,
		values:   make(map[string]map[string]string),
		log:      logging.Component("option"),
	}
}

// Registry returns the catalog the store validates against.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Get returns a copy of the selected options for a session, or nil if none.
func (s *Store) Get(sessionID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyValues(s.values[sessionID])
}

// ApplyUpdates applies updates in order; a later update to the same group
// wins. Unknown groups or items are logged and skipped. Returns the groups
// whose value differs from before the call, in first-touched order.
func (s *Store) ApplyUpdates(sessionID string, updates []types.OptionUpdate) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := copyValues(s.values[sessionID])
	current := copyValues(before)
	if current == nil {
		current = make(map[string]string)
	}

	var touched []string
	seen := make(map[string]bool)
	for _, upd := range updates {
		if upd.Value == nil {
			if !s.registry.HasGroup(upd.GroupID) {
				s.log.Debug().Str(logging.FieldSession, sessionID).Str("group", upd.GroupID).Msg("ignoring unset of unknown option group")
				continue
			}
			delete(current, upd.GroupID)
		} else {
			if _, err := s.registry.Resolve(upd.GroupID, *upd.Value); err != nil {
				s.log.Warn().Err(err).Str(logging.FieldSession, sessionID).Msg("ignoring option update")
				continue
			}
			current[upd.GroupID] = *upd.Value
		}
		if !seen[upd.GroupID] {
			seen[upd.GroupID] = true
			touched = append(touched, upd.GroupID)
		}
	}

	var changed []string
	for _, groupID := range touched {
		old, hadOld := before[groupID]
		now, hasNow := current[groupID]
		if hadOld != hasNow || old != now {
			changed = append(changed, groupID)
		}
	}

	if len(current) == 0 {
		delete(s.values, sessionID)
	} else {
		s.values[sessionID] = current
	}
	return changed
}

// Merge sets every valid entry of values without clearing other groups.
func (s *Store) Merge(sessionID string, values map[string]string) {
	updates := make([]types.OptionUpdate, 0, len(values))
	for groupID, itemID := range values {
		updates = append(updates, types.Set(groupID, itemID))
	}
	s.ApplyUpdates(sessionID, updates)
}

// Clear removes all options of a session.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, sessionID)
}

// Has reports whether sessionID has any options.
func (s *Store) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[sessionID]
	return ok
}

// Transfer moves the whole mapping of from to to and deletes the source.
// The move happens under one lock so no reader sees both or neither.
// Whatever to held before is replaced, so an empty source leaves to empty.
func (s *Store) Transfer(from, to string) {
	if from == to {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.values[from]
	if !ok {
		delete(s.values, to)
		return
	}
	s.values[to] = values
	delete(s.values, from)
}

func copyValues(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
