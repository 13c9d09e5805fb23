// Package engine is the optimistic prediction and reconciliation core. It
// owns the canonical in-memory entity collections, applies local deltas
// immediately, and reconciles them against the authority's snapshot once per
// poll cycle. The engine is the single writer; every reader gets copies.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/sasha-s/go-deadlock"

	"gridtown/internal/api"
	"gridtown/internal/inventory"
	"gridtown/internal/state"
	"gridtown/internal/worldgen"
)

// Timer names owned by the session scheduler.
const (
	timerPoll      = "poll"
	timerMove      = "move"
	timerHeartbeat = "heartbeat"
	timerTerrain   = "terrain"
)

// MoveStep is the per-tick movement distance in world pixels.
const MoveStep = 10

// NoticeDuration is how long a transient error banner stays visible.
const NoticeDuration = 5 * time.Second

// Authority is the engine's view of the remote backend. api.Client satisfies
// it; tests substitute a stub.
type Authority interface {
	Push(ctx context.Context, req api.PushRequest) error
	Pull(ctx context.Context) (*api.PullResponse, error)
	SendTransaction(ctx context.Context, req inventory.Request)
	Heartbeat(ctx context.Context)
	DeletePerson(ctx context.Context, personID string)
}

// Options configures a session engine.
type Options struct {
	PollInterval    time.Duration
	MoveInterval    time.Duration // on foot
	CarMoveInterval time.Duration // in a vehicle; tighter
	HeartbeatEvery  time.Duration
	TerrainRefresh  time.Duration
	TerrainSeed     int64
	ViewRadiusTiles int // terrain tiles kept around the current person
	Catalog         inventory.Catalog
	OnVoiceMessages func(api.VoiceMessages)

	// OnCycle observes each completed merge: the pre-merge snapshot, the
	// pull that was merged, and the new watermark. Used by the session
	// recorder.
	OnCycle func(local state.Snapshot, pull *api.PullResponse, watermark string)
}

// Engine holds the reconciled world for one session.
type Engine struct {
	mu        deadlock.Mutex
	authority Authority
	sched     *Scheduler
	logger    *log.Logger
	opts      Options
	clock     func() time.Time

	persons []state.Person
	cars    []state.Car
	objects []state.Object
	npcs    []api.Npc

	resources      []state.Object
	stockpiles     []state.Object
	stockpileTiles []state.Object
	houses         []state.Object
	floors         []api.Floor
	walls          []api.Wall

	rooms    []state.Room
	roads    []state.Road
	lots     []state.Lot
	fixtures []state.Object
	terrain  []api.TerrainTileRef

	loadedCells []api.Cell
	cellLocks   []api.CellLock

	currentPersonID string
	watermark       string
	focus           Focus
	lastSnapshot    state.Snapshot

	activeKeys map[string]keyAction

	noticeText  string
	noticeUntil time.Time
}

type keyAction struct {
	dx int
	dy int
}

// Arrow-key identities map to one-step deltas.
var keyMoves = map[string]keyAction{
	"ArrowUp":    {0, -MoveStep},
	"ArrowDown":  {0, MoveStep},
	"ArrowLeft":  {-MoveStep, 0},
	"ArrowRight": {MoveStep, 0},
}

func New(authority Authority, opts Options, logger *log.Logger) *Engine {
	return &Engine{
		authority:  authority,
		sched:      NewScheduler(),
		logger:     logger,
		opts:       opts,
		clock:      time.Now,
		activeKeys: map[string]keyAction{},
	}
}

// LoadWorld installs the generated static structures. Called once before
// Start. Fixtures are remembered separately: the authority never issued
// their ids, so the merge would otherwise treat them as deletions (see
// applyPull).
func (e *Engine) LoadWorld(rooms []state.Room, city worldgen.City, fixtures []state.Object) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rooms = rooms
	e.roads = city.Roads
	e.lots = city.Lots
	e.fixtures = append([]state.Object(nil), fixtures...)
	e.objects = append(e.objects, fixtures...)
}

// Start arms the session timers: the poll cycle, the movement tick, the
// heartbeat and the terrain refresh. Cycles are back-to-back, not strictly
// periodic; a slow round trip delays the next cycle's start.
func (e *Engine) Start(ctx context.Context) {
	var cycle func()
	cycle = func() {
		e.safe(func() { e.runCycle(ctx) })
		e.sched.After(timerPoll, e.opts.PollInterval, cycle)
	}
	e.sched.After(timerPoll, e.opts.PollInterval, cycle)

	var move func()
	move = func() {
		e.safe(e.moveTick)
		e.sched.After(timerMove, e.moveInterval(), move)
	}
	e.sched.After(timerMove, e.moveInterval(), move)

	e.sched.Every(timerHeartbeat, e.opts.HeartbeatEvery, func() {
		e.safe(func() { e.authority.Heartbeat(ctx) })
	})
	e.sched.Every(timerTerrain, e.opts.TerrainRefresh, func() {
		e.safe(e.refreshTerrain)
	})
}

// Close ends the session: every timer is canceled and the current person's
// removal is requested best-effort.
func (e *Engine) Close(ctx context.Context) {
	e.sched.CancelAll()
	e.mu.Lock()
	id := e.currentPersonID
	e.mu.Unlock()
	if id != "" {
		e.authority.DeletePerson(ctx, id)
	}
}

// KeyDown marks a movement key active; KeyUp removes it. The movement tick
// applies whatever is active, so holding a key repeats without per-key
// timers.
func (e *Engine) KeyDown(key string) {
	act, ok := keyMoves[key]
	if !ok {
		return
	}
	e.mu.Lock()
	e.activeKeys[key] = act
	e.mu.Unlock()
}

func (e *Engine) KeyUp(key string) {
	e.mu.Lock()
	delete(e.activeKeys, key)
	e.mu.Unlock()
}

func (e *Engine) moveTick() {
	e.mu.Lock()
	acts := make([]keyAction, 0, len(e.activeKeys))
	for _, a := range e.activeKeys {
		acts = append(acts, a)
	}
	e.mu.Unlock()
	for _, a := range acts {
		e.MoveCurrentPerson(a.dx, a.dy)
	}
}

func (e *Engine) moveInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := state.FindPerson(e.persons, e.currentPersonID); ok && p.CarID != "" {
		return e.opts.CarMoveInterval
	}
	return e.opts.MoveInterval
}

// refreshTerrain regenerates the terrain tile window around the current
// person.
func (e *Engine) refreshTerrain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		return
	}
	r := e.opts.ViewRadiusTiles
	if r <= 0 {
		r = 3
	}
	tiles := make([]api.TerrainTileRef, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			x := p.X + dx*worldgen.TerrainTile
			y := p.Y + dy*worldgen.TerrainTile
			tiles = append(tiles, api.TerrainTileRef{
				X:    x,
				Y:    y,
				Kind: worldgen.TerrainAt(e.opts.TerrainSeed, x, y),
			})
		}
	}
	e.terrain = tiles
}

// safe keeps an uncaught panic from killing the timers: it becomes a
// transient banner and the next tick proceeds.
func (e *Engine) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("recovered: %v", r)
			e.mu.Lock()
			e.noticeText = "something went wrong"
			e.noticeUntil = e.clock().Add(NoticeDuration)
			e.mu.Unlock()
		}
	}()
	fn()
}

// Notice returns the transient banner text, if one is still visible.
func (e *Engine) Notice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.noticeLocked()
}

func (e *Engine) setNotice(text string) {
	e.noticeText = text
	e.noticeUntil = e.clock().Add(NoticeDuration)
}

// CurrentPerson returns the session's own person.
func (e *Engine) CurrentPerson() (state.Person, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return state.FindPerson(e.persons, e.currentPersonID)
}

// FocusOnNpc, FocusOnLot and ClearFocus drive the detail panel.
func (e *Engine) FocusOnNpc(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focus = Focus{Kind: FocusNpc, ID: id}
}

func (e *Engine) FocusOnLot(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focus = Focus{Kind: FocusLot, ID: id}
}

func (e *Engine) ClearFocus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focus = Focus{}
}

func (e *Engine) Focus() Focus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focus
}
