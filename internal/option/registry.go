// Package option holds the per-session option catalog and the selected values.
package option

import (
	"errors"
	"fmt"

	"github.com/joshbot/chatsessions/pkg/types"
)

// ErrNotFound is returned when an option group or item is not registered.
// Callers treat it as "ignore the update".
var ErrNotFound = errors.New("option not found")

// Registry is the static option catalog. It is immutable after construction.
type Registry struct {
	groups []types.OptionGroup
	index  map[string]map[string]types.OptionItem // groupID -> itemID -> item
}

// NewRegistry creates a registry over the given groups, keeping declaration
// order. Later duplicates of a group id are ignored.
func NewRegistry(groups []types.OptionGroup) *Registry {
	r := &Registry{
		index: make(map[string]map[string]types.OptionItem),
	}
	for _, g := range groups {
		if _, dup := r.index[g.ID]; dup || g.ID == "" {
			continue
		}
		items := make(map[string]types.OptionItem, len(g.Items))
		for _, it := range g.Items {
			items[it.ID] = it
		}
		r.index[g.ID] = items
		r.groups = append(r.groups, cloneGroup(g))
	}
	return r
}

// DefaultGroups returns the built-in model and sub-agent catalog.
func DefaultGroups() []types.OptionGroup {
	return []types.OptionGroup{
		{
			ID:          "model",
			Name:        "Model",
			Description: "Select the model used to answer requests",
			Items: []types.OptionItem{
				{ID: "basic", Name: "Basic Model"},
				{ID: "pro", Name: "Pro Model"},
				{ID: "ultra", Name: "Ultra Model"},
			},
		},
		{
			ID:          "subagent",
			Name:        "Sub-agent",
			Description: "Select the sub-agent that post-processes responses",
			Items: []types.OptionItem{
				{ID: "basic", Name: "Basic Agent"},
				{ID: "summarizer", Name: "Summarizer"},
			},
		},
	}
}

// ListGroups returns the full catalog in declaration order.
func (r *Registry) ListGroups() []types.OptionGroup {
	out := make([]types.OptionGroup, len(r.groups))
	for i, g := range r.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

// Resolve validates a candidate selection.
func (r *Registry) Resolve(groupID, itemID string) (types.OptionItem, error) {
	items, ok := r.index[groupID]
	if !ok {
		return types.OptionItem{}, fmt.Errorf("group %q: %w", groupID, ErrNotFound)
	}
	item, ok := items[itemID]
	if !ok {
		return types.OptionItem{}, fmt.Errorf("item %q in group %q: %w", itemID, groupID, ErrNotFound)
	}
	return item, nil
}

// HasGroup reports whether groupID is registered.
func (r *Registry) HasGroup(groupID string) bool {
	_, ok := r.index[groupID]
	return ok
}

func cloneGroup(g types.OptionGroup) types.OptionGroup {
	g.Items = append([]types.OptionItem(nil), g.Items...)
	return g
}
