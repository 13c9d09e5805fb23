package engine

import (
	"gridtown/internal/api"
	"gridtown/internal/state"
)

// FocusKind tags what the detail panel is showing.
type FocusKind int

const (
	FocusNone FocusKind = iota
	FocusNpc
	FocusLot
)

// Focus is the UI's open detail view, stored as an id and re-resolved
// against the latest snapshot each cycle rather than as a denormalized copy.
type Focus struct {
	Kind FocusKind
	ID   string
}

// Resolve checks the focused id against the new snapshot; a vanished id
// clears the focus instead of dangling.
func (f Focus) Resolve(npcs []api.Npc, lots []state.Lot) Focus {
	switch f.Kind {
	case FocusNpc:
		for _, n := range npcs {
			if n.ID == f.ID {
				return f
			}
		}
	case FocusLot:
		for _, l := range lots {
			if l.ID == f.ID {
				return f
			}
		}
	}
	return Focus{}
}
