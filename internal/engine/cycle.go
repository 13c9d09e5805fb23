package engine

import (
	"context"

	"gridtown/internal/api"
	"gridtown/internal/state"
)

// runCycle is one poll cycle: push entities newer than the watermark, pull
// the authority's snapshot, merge, advance the watermark. Push and pull
// belong to the same cycle and are awaited sequentially so just-pushed
// entities are eligible to come back in the same pull. A failed push leaves
// its deltas newer than the watermark, so the next cycle resends them; a
// failed pull simply skips the merge.
func (e *Engine) runCycle(ctx context.Context) {
	push := e.collectPush()
	if len(push.Persons)+len(push.Cars)+len(push.Objects) > 0 {
		if err := e.authority.Push(ctx, push); err != nil {
			e.logger.Printf("push: %v", err)
			return
		}
	}
	pull, err := e.authority.Pull(ctx)
	if err != nil {
		e.logger.Printf("pull: %v", err)
		return
	}
	e.applyPull(pull)
}

// collectPush selects every entity whose stamp is newer than the watermark.
// Pushes carry whole entities, so resending after a failure is idempotent.
func (e *Engine) collectPush() api.PushRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	mark := state.ParseStamp(e.watermark)
	var req api.PushRequest
	for _, p := range e.persons {
		if p.UpdatedAt().After(mark) {
			req.Persons = append(req.Persons, p)
		}
	}
	for _, c := range e.cars {
		if c.UpdatedAt().After(mark) {
			req.Cars = append(req.Cars, c)
		}
	}
	for _, o := range e.objects {
		if o.UpdatedAt().After(mark) {
			req.Objects = append(req.Objects, o)
		}
	}
	return req
}

// applyPull merges one successful pull into the collections and records the
// merge's wall-clock time as the new watermark.
func (e *Engine) applyPull(pull *api.PullResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()

	// Pre-merge snapshot for interpolated rendering only.
	e.lastSnapshot = state.Snapshot{
		Persons:   append([]state.Person(nil), e.persons...),
		Cars:      append([]state.Car(nil), e.cars...),
		Objects:   append([]state.Object(nil), e.objects...),
		FetchTime: now,
	}

	e.persons = state.MergeAll(e.persons, pull.Persons)
	e.cars = state.MergeAll(e.cars, pull.Cars)
	e.objects = state.MergeAll(e.objects, pull.Objects)
	e.stockpiles = state.MergeAll(e.stockpiles, pull.Stockpiles)

	// Generator fixtures live client-side until the authority adopts their
	// ids; a snapshot without them is not a deletion. Union back the latest
	// local copy of any fixture the merge dropped.
	for _, f := range e.fixtures {
		if _, ok := state.FindObject(e.objects, f.ID); ok {
			continue
		}
		if cur, ok := state.FindObject(e.lastSnapshot.Objects, f.ID); ok {
			f = cur
		}
		e.objects = append(e.objects, f)
	}

	for i, c := range e.cars {
		e.cars[i] = c.PrunePath(now)
	}

	// Server-driven collections are adopted wholesale.
	e.npcs = pull.Npcs
	e.resources = pull.Resources
	e.stockpileTiles = pull.StockpileTiles
	e.houses = pull.Houses
	e.floors = pull.Floors
	e.walls = pull.Walls
	e.loadedCells = pull.LoadedCells
	e.cellLocks = pull.CellLocks
	if len(pull.Roads) > 0 {
		e.roads = pull.Roads
	}
	if len(pull.Lots) > 0 {
		e.lots = pull.Lots
	}
	if pull.CurrentPersonID != "" {
		e.currentPersonID = pull.CurrentPersonID
	}

	// The open detail view is a UI echo: re-resolved by id, nulled out if
	// the id no longer exists, never dropped with an error.
	e.focus = e.focus.Resolve(e.npcs, e.lots)

	e.watermark = state.Stamp(now)

	if e.opts.OnVoiceMessages != nil {
		vm := pull.VoiceMessages
		if len(vm.Candidates)+len(vm.Offers)+len(vm.Answers) > 0 {
			e.opts.OnVoiceMessages(vm)
		}
	}
	if e.opts.OnCycle != nil {
		e.opts.OnCycle(e.lastSnapshot, pull, e.watermark)
	}
}

// RenderState is the immutable view handed to rendering.
type RenderState struct {
	Persons    []state.Person
	Cars       []state.Car
	Objects    []state.Object
	Npcs       []api.Npc
	Resources  []state.Object
	Stockpiles []state.Object
	Houses     []state.Object
	Floors     []api.Floor
	Walls      []api.Wall
	Rooms      []state.Room
	Roads      []state.Road
	Lots       []state.Lot
	Terrain    []api.TerrainTileRef
	Previous   state.Snapshot
	Focus      Focus
	Notice     string
}

// Render copies the merged collections plus the pre-merge snapshot for
// interpolation.
func (e *Engine) Render() RenderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return RenderState{
		Persons:    append([]state.Person(nil), e.persons...),
		Cars:       append([]state.Car(nil), e.cars...),
		Objects:    append([]state.Object(nil), e.objects...),
		Npcs:       append([]api.Npc(nil), e.npcs...),
		Resources:  append([]state.Object(nil), e.resources...),
		Stockpiles: append([]state.Object(nil), e.stockpiles...),
		Houses:     append([]state.Object(nil), e.houses...),
		Floors:     append([]api.Floor(nil), e.floors...),
		Walls:      append([]api.Wall(nil), e.walls...),
		Rooms:      append([]state.Room(nil), e.rooms...),
		Roads:      append([]state.Road(nil), e.roads...),
		Lots:       append([]state.Lot(nil), e.lots...),
		Terrain:    append([]api.TerrainTileRef(nil), e.terrain...),
		Previous:   e.lastSnapshot,
		Focus:      e.focus,
		Notice:     e.noticeLocked(),
	}
}

func (e *Engine) noticeLocked() string {
	if e.clock().Before(e.noticeUntil) {
		return e.noticeText
	}
	return ""
}
