package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/joshbot/chatsessions/pkg/types"
)

// sessionPrefix is the directory session records are stored under.
const sessionPrefix = "session"

// Sessions persists dynamic session records.
type Sessions struct {
	store *Storage
}

// NewSessions creates a session record store on top of store.
func NewSessions(store *Storage) *Sessions {
	return &Sessions{store: store}
}

// SaveSession writes a record, replacing any previous one for the same id.
func (s *Sessions) SaveSession(ctx context.Context, rec types.SessionRecord) error {
	if rec.Item.ID == "" {
		return errors.New("session record without id")
	}
	return s.store.Put(ctx, []string{sessionPrefix, rec.Item.ID}, rec)
}

// GetSession reads one record.
func (s *Sessions) GetSession(ctx context.Context, id string) (types.SessionRecord, error) {
	var rec types.SessionRecord
	err := s.store.Get(ctx, []string{sessionPrefix, id}, &rec)
	return rec, err
}

// RemoveSession deletes a record. Removing a missing record is not an error.
func (s *Sessions) RemoveSession(ctx context.Context, id string) error {
	return s.store.Delete(ctx, []string{sessionPrefix, id})
}

// LoadSessions returns every readable record ordered by creation time.
// Records that fail to decode are skipped.
func (s *Sessions) LoadSessions(ctx context.Context) ([]types.SessionRecord, error) {
	var records []types.SessionRecord
	err := s.store.Scan(ctx, []string{sessionPrefix}, func(key string, data json.RawMessage) error {
		var rec types.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.Item.ID != key {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Item.Time.Created != records[j].Item.Time.Created {
			return records[i].Item.Time.Created < records[j].Item.Time.Created
		}
		return records[i].Item.ID < records[j].Item.ID
	})
	return records, nil
}
