package engine

import (
	"sort"

	"gridtown/internal/state"
)

// NearbyRange bounds the nearby-objects derived view.
const NearbyRange = 100

// VoicePeerCap caps how many nearby sessions the voice side channel pairs
// with.
const VoicePeerCap = 10

// NearbyObjects returns the objects within the fixed box around the current
// person: the interaction candidates.
func (e *Engine) NearbyObjects() []state.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		return nil
	}
	var near []state.Object
	for _, o := range e.objects {
		if withinBox(p.X-o.X, p.Y-o.Y, NearbyRange) {
			near = append(near, o)
		}
	}
	return near
}

// NearestPersonIDs returns up to VoicePeerCap other person ids ordered by
// distance, feeding the voice-chat side channel.
func (e *Engine) NearestPersonIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		return nil
	}
	type cand struct {
		id   string
		dist int
	}
	var cands []cand
	for _, q := range e.persons {
		if q.ID == p.ID {
			continue
		}
		dx, dy := q.X-p.X, q.Y-p.Y
		cands = append(cands, cand{id: q.ID, dist: dx*dx + dy*dy})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) > VoicePeerCap {
		cands = cands[:VoicePeerCap]
	}
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}
