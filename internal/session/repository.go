package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshbot/chatsessions/internal/option"
	"github.com/joshbot/chatsessions/internal/stream"
	"github.com/joshbot/chatsessions/pkg/types"
)

// RequestHandler answers an inbound request by writing parts to sink.
type RequestHandler func(ctx context.Context, req types.Request, sink stream.Sink) (types.ResponseMetadata, error)

// Content is the full payload of a session.
//
// A nil Handler makes the session read-only, except for untitled
// placeholders, whose requests are answered by the Manager with a create
// confirmation. ActiveResponse is only set while the session is in progress.
type Content struct {
	Item           types.SessionItem
	Kind           types.SessionKind
	History        []types.Turn
	Handler        RequestHandler
	ActiveResponse *stream.Controller
	// Options is a snapshot read through from the option store.
	Options       map[string]string
	OptionsHidden bool
	Pending       []types.Confirmation
}

// ReadOnly reports whether the session rejects inbound requests.
func (c *Content) ReadOnly() bool {
	return c.Handler == nil && c.Kind != types.KindUntitled
}

// View returns the serialisable form of the content.
func (c *Content) View() types.SessionView {
	history := c.History
	if history == nil {
		history = []types.Turn{}
	}
	return types.SessionView{
		Item:              c.Item,
		History:           history,
		ReadOnly:          c.ReadOnly(),
		HasActiveResponse: c.ActiveResponse != nil,
		Options:           c.Options,
		OptionsHidden:     c.OptionsHidden,
		Pending:           c.Pending,
	}
}

type dynamicContent struct {
	history []types.Turn
	handler RequestHandler
	active  *stream.Controller
}

// Repository owns the content of every session.
type Repository struct {
	mu      sync.RWMutex
	demos   []Demo
	demoIdx map[string]int
	dynamic map[string]*dynamicContent
	options *option.Store
}

// NewRepository creates a repository with the given demo catalog. Options
// are read through from store.
func NewRepository(store *option.Store, demos []Demo) *Repository {
	r := &Repository{
		demoIdx: make(map[string]int),
		dynamic: make(map[string]*dynamicContent),
		options: store,
	}
	for _, d := range demos {
		if _, dup := r.demoIdx[d.Item.ID]; dup {
			continue
		}
		d.Item.Kind = types.KindDemo
		r.demoIdx[d.Item.ID] = len(r.demos)
		r.demos = append(r.demos, d)
	}
	return r
}

// ListStatic returns the demo catalog in declaration order.
func (r *Repository) ListStatic() []types.SessionItem {
	items := make([]types.SessionItem, len(r.demos))
	for i, d := range r.demos {
		items[i] = d.Item
	}
	return items
}

// Kind returns how id resolves.
func (r *Repository) Kind(id string) types.SessionKind {
	if _, ok := r.demoIdx[id]; ok {
		return types.KindDemo
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.dynamic[id]; ok {
		return types.KindDynamic
	}
	return types.KindUntitled
}

// Get returns the content for id: demo content is synthesized, dynamic
// content is returned as stored, anything else is an untitled placeholder.
// Item and Pending are left for the caller to fill in.
func (r *Repository) Get(id string) Content {
	if i, ok := r.demoIdx[id]; ok {
		d := r.demos[i]
		c := Content{
			Item:           d.Item,
			Kind:           types.KindDemo,
			History:        cloneHistory(d.History),
			Handler:        d.Handler,
			ActiveResponse: d.ActiveResponse,
			OptionsHidden:  d.HideOptions,
		}
		if !d.HideOptions {
			c.Options = r.readOptions(id)
		}
		return c
	}

	r.mu.RLock()
	dc, ok := r.dynamic[id]
	var c Content
	if ok {
		c = Content{
			Kind:           types.KindDynamic,
			History:        cloneHistory(dc.history),
			Handler:        dc.handler,
			ActiveResponse: dc.active,
		}
	}
	r.mu.RUnlock()

	if !ok {
		c = Content{
			Kind:    types.KindUntitled,
			History: []types.Turn{untitledWelcome()},
		}
	}
	c.Options = r.readOptions(id)
	return c
}

func (r *Repository) readOptions(id string) map[string]string {
	opts := r.options.Get(id)
	if opts == nil {
		opts = map[string]string{}
	}
	return opts
}

// OptionsHidden reports whether id is a session whose options are hidden.
func (r *Repository) OptionsHidden(id string) bool {
	i, ok := r.demoIdx[id]
	return ok && r.demos[i].HideOptions
}

// Store registers or overwrites a dynamic session's content. Demo ids
// cannot be overwritten.
func (r *Repository) Store(id string, c Content) error {
	if _, ok := r.demoIdx[id]; ok {
		return fmt.Errorf("session %s is a demo session", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic[id] = &dynamicContent{
		history: cloneHistory(c.History),
		handler: c.Handler,
		active:  c.ActiveResponse,
	}
	return nil
}

// Delete removes a dynamic session and reports whether it existed.
// Demo sessions are never removed.
func (r *Repository) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dynamic[id]; !ok {
		return false
	}
	delete(r.dynamic, id)
	return true
}

// ClearHistory empties a dynamic session's history, keeping its handler.
func (r *Repository) ClearHistory(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc, ok := r.dynamic[id]
	if !ok {
		return ErrNotFound
	}
	dc.history = []types.Turn{}
	return nil
}

// Append adds turns to the end of a dynamic session's history. Demo and
// untitled content is never extended.
func (r *Repository) Append(id string, turns ...types.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc, ok := r.dynamic[id]
	if !ok {
		return ErrNotFound
	}
	dc.history = append(dc.history, turns...)
	return nil
}

func cloneHistory(h []types.Turn) []types.Turn {
	if h == nil {
		return nil
	}
	out := make([]types.Turn, len(h))
	for i, t := range h {
		t.Parts = append([]types.ResponsePart(nil), t.Parts...)
		out[i] = t
	}
	return out
}

func untitledWelcome() types.Turn {
	return types.ResponseTurn(Participant, []types.ResponsePart{
		types.Markdown("👋 Send a message to start a new session."),
	}, 0)
}
