package engine

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"gridtown/internal/api"
	"gridtown/internal/inventory"
	"gridtown/internal/state"
	"gridtown/internal/worldgen"
)

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type stubAuthority struct {
	mu      sync.Mutex
	pushes  []api.PushRequest
	pushErr error
	pull    *api.PullResponse
	pullErr error
	txns    []inventory.Request
	deleted []string
}

func (s *stubAuthority) Push(_ context.Context, req api.PushRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushErr != nil {
		return s.pushErr
	}
	s.pushes = append(s.pushes, req)
	return nil
}

func (s *stubAuthority) Pull(context.Context) (*api.PullResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pullErr != nil {
		return nil, s.pullErr
	}
	return s.pull, nil
}

func (s *stubAuthority) SendTransaction(_ context.Context, req inventory.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns = append(s.txns, req)
}

func (s *stubAuthority) Heartbeat(context.Context) {}

func (s *stubAuthority) DeletePerson(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
}

func testCatalog() inventory.Catalog {
	return inventory.Catalog{
		Items: map[string]inventory.ItemDef{
			"wood":  {ID: "wood", MaxStack: 20},
			"plank": {ID: "plank", MaxStack: 20},
		},
		Recipes: map[string]inventory.Recipe{
			"plank": {
				RecipeID: "plank",
				Kind:     "ITEM",
				Inputs:   []inventory.ItemCount{{Item: "wood", Count: 2}},
				Outputs:  []inventory.ItemCount{{Item: "plank", Count: 1}},
			},
		},
	}
}

func newTestEngine(auth Authority) (*Engine, *time.Time) {
	now := t0
	e := New(auth, Options{
		PollInterval:    2 * time.Second,
		MoveInterval:    80 * time.Millisecond,
		CarMoveInterval: 40 * time.Millisecond,
		HeartbeatEvery:  time.Second,
		TerrainRefresh:  time.Second,
		Catalog:         testCatalog(),
	}, log.New(os.Stdout, "[engine] ", log.LstdFlags))
	e.clock = func() time.Time { return now }
	return e, &now
}

func person(id string, x, y int, at time.Time) state.Person {
	return state.Person{Entity: state.Entity{ID: id, X: x, Y: y, LastUpdate: state.Stamp(at)}}
}

func TestMoveCurrentPerson_LocalDelta(t *testing.T) {
	auth := &stubAuthority{}
	e, now := newTestEngine(auth)
	e.persons = []state.Person{person("p1", 100, 100, t0.Add(-time.Minute))}
	e.currentPersonID = "p1"

	*now = t0.Add(time.Second)
	e.MoveCurrentPerson(0, -10)

	p, _ := e.CurrentPerson()
	if p.X != 100 || p.Y != 90 {
		t.Fatalf("pos: got (%d,%d) want (100,90)", p.X, p.Y)
	}
	if p.LastUpdate != state.Stamp(t0.Add(time.Second)) {
		t.Fatalf("stamp not bumped: %s", p.LastUpdate)
	}
}

func TestMoveCurrentPerson_MissingIsNoop(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.currentPersonID = "ghost"
	e.MoveCurrentPerson(10, 0) // must not panic or create anything
	if len(e.persons) != 0 {
		t.Fatalf("no person should appear: %+v", e.persons)
	}
}

func TestVehicleMove_PassengersFollow(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.cars = []state.Car{{Entity: state.Entity{ID: "c1", X: 1000, Y: 500}, Dir: state.DirRight}}
	driver := person("p1", 1010, 505, t0)
	driver.CarID = "c1"
	rider := person("p2", 990, 495, t0)
	rider.CarID = "c1"
	e.persons = []state.Person{driver, rider}
	e.currentPersonID = "p1"

	// Straight ahead: direction unchanged, everyone shifts by the same delta.
	e.MoveCurrentPerson(10, 0)
	p1, _ := state.FindPerson(e.persons, "p1")
	p2, _ := state.FindPerson(e.persons, "p2")
	if p1.X != 1020 || p1.Y != 505 || p2.X != 1000 || p2.Y != 495 {
		t.Fatalf("straight move: p1=(%d,%d) p2=(%d,%d)", p1.X, p1.Y, p2.X, p2.Y)
	}
	c, _ := state.FindCar(e.cars, "c1")
	if c.X != 1010 || c.Dir != state.DirRight {
		t.Fatalf("car: %+v", c)
	}
	if len(c.Path) != 1 || c.Path[0].X != 1000 {
		t.Fatalf("trail should record the pre-move position: %+v", c.Path)
	}
}

func TestVehicleTurn_RemapsSeatOffsets(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.cars = []state.Car{{Entity: state.Entity{ID: "c1", X: 0, Y: 0}, Dir: state.DirUp}}
	rider := person("p1", 5, 10, t0) // seat offset (5, 10)
	rider.CarID = "c1"
	e.persons = []state.Person{rider}
	e.currentPersonID = "p1"

	// Up -> Right is one quarter turn: (5,10) -> (-10,5).
	e.MoveCurrentPerson(10, 0)
	p, _ := state.FindPerson(e.persons, "p1")
	c, _ := state.FindCar(e.cars, "c1")
	if c.Dir != state.DirRight {
		t.Fatalf("dir: %v", c.Dir)
	}
	if got := [2]int{p.X - c.X, p.Y - c.Y}; got != [2]int{-10, 5} {
		t.Fatalf("seat offset after turn: %v want [-10 5]", got)
	}
}

func TestVehicleMove_CarriesPassengerGrabbedObject(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.cars = []state.Car{{Entity: state.Entity{ID: "c1", X: 0, Y: 0}, Dir: state.DirRight}}
	driver := person("p1", 0, 0, t0)
	driver.CarID = "c1"
	e.persons = []state.Person{driver}
	e.currentPersonID = "p1"
	e.objects = []state.Object{{Entity: state.Entity{ID: "o1", X: 3, Y: 3}, Type: "box", GrabbedBy: "p1"}}

	e.MoveCurrentPerson(10, 0)
	o, _ := state.FindObject(e.objects, "o1")
	if o.X != 13 || o.Y != 3 {
		t.Fatalf("grabbed object should ride along: (%d,%d)", o.X, o.Y)
	}
}

func TestToggleGrab(t *testing.T) {
	e, now := newTestEngine(&stubAuthority{})
	e.persons = []state.Person{person("p1", 0, 0, t0)}
	e.currentPersonID = "p1"
	e.objects = []state.Object{
		{Entity: state.Entity{ID: "near", X: 50, Y: 50}, Type: "box"},
		{Entity: state.Entity{ID: "far", X: 500, Y: 0}, Type: "box"},
		{Entity: state.Entity{ID: "held", X: 10, Y: 0}, Type: "box", GrabbedBy: "p2"},
	}

	e.ToggleGrab("near")
	if o, _ := state.FindObject(e.objects, "near"); o.GrabbedBy != "p1" {
		t.Fatalf("near object should be grabbed: %+v", o)
	}
	e.ToggleGrab("far")
	if o, _ := state.FindObject(e.objects, "far"); o.GrabbedBy != "" {
		t.Fatalf("out-of-range object must stay free")
	}
	e.ToggleGrab("held")
	if o, _ := state.FindObject(e.objects, "held"); o.GrabbedBy != "p2" {
		t.Fatalf("someone else's object must stay theirs")
	}

	// Moving after the grab drags the object, then release stops it.
	e.MoveCurrentPerson(10, 0)
	if o, _ := state.FindObject(e.objects, "near"); o.X != 60 {
		t.Fatalf("grabbed object should follow: %+v", o)
	}
	*now = t0.Add(time.Second)
	e.ToggleGrab("near")
	e.MoveCurrentPerson(10, 0)
	if o, _ := state.FindObject(e.objects, "near"); o.X != 60 {
		t.Fatalf("released object must not follow: %+v", o)
	}
}

func TestCollectPush_WatermarkSelection(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.watermark = state.Stamp(t0)
	e.persons = []state.Person{
		person("old", 0, 0, t0.Add(-time.Second)),
		person("new", 0, 0, t0.Add(time.Second)),
	}
	e.cars = []state.Car{{Entity: state.Entity{ID: "c1", LastUpdate: state.Stamp(t0.Add(time.Second))}}}

	req := e.collectPush()
	if len(req.Persons) != 1 || req.Persons[0].ID != "new" {
		t.Fatalf("push selection: %+v", req.Persons)
	}
	if len(req.Cars) != 1 {
		t.Fatalf("newer car should push: %+v", req.Cars)
	}
}

func pullWith(persons []state.Person) *api.PullResponse {
	return &api.PullResponse{Persons: persons}
}

func TestRunCycle_AntiRegressionThroughMerge(t *testing.T) {
	auth := &stubAuthority{pull: pullWith([]state.Person{person("p1", 100, 100, t0)})}
	e, now := newTestEngine(auth)
	e.persons = []state.Person{person("p1", 100, 100, t0)}
	e.currentPersonID = "p1"

	// Local delta after the server's stamp.
	*now = t0.Add(time.Second)
	e.MoveCurrentPerson(0, -10)

	*now = t0.Add(2 * time.Second)
	e.runCycle(context.Background())

	p, _ := e.CurrentPerson()
	if p.Y != 90 {
		t.Fatalf("stale server position must not snap back: y=%d", p.Y)
	}
	if e.watermark != state.Stamp(t0.Add(2*time.Second)) {
		t.Fatalf("watermark should advance to merge time: %s", e.watermark)
	}
	if len(auth.pushes) != 1 || len(auth.pushes[0].Persons) != 1 {
		t.Fatalf("modified person should have been pushed: %+v", auth.pushes)
	}
}

func TestRunCycle_FailedPushKeepsDeltasForNextCycle(t *testing.T) {
	auth := &stubAuthority{pushErr: errors.New("boom"), pull: pullWith(nil)}
	e, now := newTestEngine(auth)
	e.persons = []state.Person{person("p1", 0, 0, t0)}
	e.currentPersonID = "p1"
	e.watermark = state.Stamp(t0.Add(-time.Minute))

	*now = t0.Add(time.Second)
	e.runCycle(context.Background())
	if e.watermark != state.Stamp(t0.Add(-time.Minute)) {
		t.Fatalf("watermark must not advance on a failed push")
	}

	auth.mu.Lock()
	auth.pushErr = nil
	auth.pull = pullWith([]state.Person{person("p1", 0, 0, t0)})
	auth.mu.Unlock()

	*now = t0.Add(2 * time.Second)
	e.runCycle(context.Background())
	auth.mu.Lock()
	defer auth.mu.Unlock()
	if len(auth.pushes) != 1 || auth.pushes[0].Persons[0].ID != "p1" {
		t.Fatalf("delta should be resent on the next cycle: %+v", auth.pushes)
	}
}

func TestRunCycle_FailedPullSkipsMerge(t *testing.T) {
	auth := &stubAuthority{pullErr: errors.New("timeout")}
	e, _ := newTestEngine(auth)
	e.persons = []state.Person{person("p1", 5, 5, t0)}
	e.runCycle(context.Background())
	if len(e.persons) != 1 || e.persons[0].X != 5 {
		t.Fatalf("failed pull must leave state untouched")
	}
}

func TestApplyPull_DeletionAndFocus(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.persons = []state.Person{person("p1", 0, 0, t0), person("gone", 0, 0, t0)}
	e.npcs = []api.Npc{{Person: person("npc1", 0, 0, t0)}}
	e.focus = Focus{Kind: FocusNpc, ID: "npc1"}

	e.applyPull(&api.PullResponse{
		Persons: []state.Person{person("p1", 1, 1, t0.Add(time.Second))},
	})

	if _, ok := state.FindPerson(e.persons, "gone"); ok {
		t.Fatalf("absent id must be dropped")
	}
	if e.focus.Kind != FocusNone {
		t.Fatalf("focus on a vanished npc must null out, got %+v", e.focus)
	}
}

func TestApplyPull_FocusSurvivesWhenIdStillResolves(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.focus = Focus{Kind: FocusLot, ID: "l1"}
	e.applyPull(&api.PullResponse{
		Lots: []state.Lot{{ID: "l1", Zone: state.ZoneResidential, W: 500, H: 300}},
	})
	if e.focus.Kind != FocusLot || e.focus.ID != "l1" {
		t.Fatalf("focus should survive: %+v", e.focus)
	}
}

func TestApplyPull_GeneratorFixturesSurvive(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	fixture := state.Object{Entity: state.Entity{ID: "vending_lot_0_0", X: 250, Y: 150}, Type: "vending-machine", Quantity: 10}
	e.LoadWorld(nil, worldgen.City{}, []state.Object{fixture})

	// The authority never issued the fixture's id, so its snapshots omit it.
	e.applyPull(&api.PullResponse{Persons: []state.Person{person("p1", 0, 0, t0)}})
	o, ok := state.FindObject(e.objects, "vending_lot_0_0")
	if !ok {
		t.Fatalf("fixture must survive a snapshot that omits it")
	}
	if o.Type != "vending-machine" || o.Quantity != 10 {
		t.Fatalf("fixture mangled: %+v", o)
	}

	// Local changes to the fixture carry across later omitting pulls.
	for i := range e.objects {
		if e.objects[i].ID == "vending_lot_0_0" {
			e.objects[i].X = 300
		}
	}
	e.applyPull(&api.PullResponse{})
	if o, _ := state.FindObject(e.objects, "vending_lot_0_0"); o.X != 300 {
		t.Fatalf("moved fixture snapped back: %+v", o)
	}

	// Once the authority adopts the id, its copy wins and nothing duplicates.
	srv := fixture
	srv.Quantity = 4
	srv.LastUpdate = state.Stamp(t0.Add(time.Second))
	e.applyPull(&api.PullResponse{Objects: []state.Object{srv}})
	count := 0
	for _, obj := range e.objects {
		if obj.ID == "vending_lot_0_0" {
			count++
			if obj.Quantity != 4 {
				t.Fatalf("adopted fixture should be the server copy: %+v", obj)
			}
		}
	}
	if count != 1 {
		t.Fatalf("fixture duplicated: %d copies", count)
	}
}

func TestApplyPull_AdoptsCurrentPersonAndVoice(t *testing.T) {
	var got api.VoiceMessages
	auth := &stubAuthority{}
	e, _ := newTestEngine(auth)
	e.opts.OnVoiceMessages = func(vm api.VoiceMessages) { got = vm }

	e.applyPull(&api.PullResponse{
		Persons:         []state.Person{person("p9", 0, 0, t0)},
		CurrentPersonID: "p9",
		VoiceMessages: api.VoiceMessages{
			Offers: []api.VoiceMessage{{From: "a", To: "b"}},
		},
	})
	if e.currentPersonID != "p9" {
		t.Fatalf("currentPersonId not adopted")
	}
	if len(got.Offers) != 1 {
		t.Fatalf("voice messages not surfaced")
	}
}

func TestCraftRecipe_FailureSendsNothing(t *testing.T) {
	auth := &stubAuthority{}
	e, _ := newTestEngine(auth)
	p := person("p1", 0, 0, t0)
	p.Inventory = map[string]int{"wood": 1}
	e.persons = []state.Person{p}
	e.currentPersonID = "p1"

	err := e.CraftRecipe(context.Background(), "plank")
	if !errors.Is(err, inventory.ErrMissingIngredient) {
		t.Fatalf("want ErrMissingIngredient, got %v", err)
	}
	if len(auth.txns) != 0 {
		t.Fatalf("failed craft must not issue a request")
	}
	got, _ := e.CurrentPerson()
	if got.Inventory["wood"] != 1 {
		t.Fatalf("failed craft must not mutate: %v", got.Inventory)
	}
	if e.Notice() == "" {
		t.Fatalf("failure should surface a banner")
	}
}

func TestCraftRecipe_AppliesAndMirrors(t *testing.T) {
	auth := &stubAuthority{}
	e, _ := newTestEngine(auth)
	p := person("p1", 0, 0, t0)
	p.Inventory = map[string]int{"wood": 4}
	e.persons = []state.Person{p}
	e.currentPersonID = "p1"

	if err := e.CraftRecipe(context.Background(), "plank"); err != nil {
		t.Fatalf("craft: %v", err)
	}
	got, _ := e.CurrentPerson()
	if got.Inventory["wood"] != 2 || got.Inventory["plank"] != 1 {
		t.Fatalf("inventory: %v", got.Inventory)
	}
	if len(auth.txns) != 1 || auth.txns[0].Op != "craftItem" {
		t.Fatalf("transaction not mirrored: %+v", auth.txns)
	}
}

func TestWithdraw_FromStockpileSlot(t *testing.T) {
	auth := &stubAuthority{}
	e, _ := newTestEngine(auth)
	e.persons = []state.Person{person("p1", 0, 0, t0)}
	e.currentPersonID = "p1"
	e.stockpiles = []state.Object{{Entity: state.Entity{ID: "s1"}, Type: "wood", Quantity: 5}}

	if err := e.WithdrawFromStockpile(context.Background(), "s1", 2); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if e.stockpiles[0].Quantity != 3 {
		t.Fatalf("slot: %+v", e.stockpiles[0])
	}
	p, _ := e.CurrentPerson()
	if p.Inventory["wood"] != 2 {
		t.Fatalf("inventory: %v", p.Inventory)
	}

	err := e.WithdrawFromStockpile(context.Background(), "s1", 99)
	if !errors.Is(err, inventory.ErrInsufficientStack) {
		t.Fatalf("want ErrInsufficientStack, got %v", err)
	}
	if len(auth.txns) != 1 {
		t.Fatalf("failed withdraw must not issue a request")
	}

	// A slot id that exists nowhere is a not-found failure, not a short stack.
	err = e.WithdrawFromStockpile(context.Background(), "no-such-slot", 1)
	if !errors.Is(err, inventory.ErrNotInInventory) {
		t.Fatalf("want ErrNotInInventory for an unknown slot, got %v", err)
	}
}

func TestViews_NearbyAndNearest(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.persons = []state.Person{person("me", 0, 0, t0)}
	e.currentPersonID = "me"
	for i := 0; i < 15; i++ {
		e.persons = append(e.persons, person(string(rune('a'+i)), i*20+10, 0, t0))
	}
	e.objects = []state.Object{
		{Entity: state.Entity{ID: "in", X: 90, Y: -90}, Type: "box"},
		{Entity: state.Entity{ID: "out", X: 101, Y: 0}, Type: "box"},
	}

	near := e.NearbyObjects()
	if len(near) != 1 || near[0].ID != "in" {
		t.Fatalf("nearby: %+v", near)
	}

	ids := e.NearestPersonIDs()
	if len(ids) != VoicePeerCap {
		t.Fatalf("cap: got %d want %d", len(ids), VoicePeerCap)
	}
	if ids[0] != "a" {
		t.Fatalf("closest first: %v", ids)
	}
}

func TestClose_CancelsAndDeletes(t *testing.T) {
	auth := &stubAuthority{pull: pullWith(nil)}
	e, _ := newTestEngine(auth)
	e.persons = []state.Person{person("p1", 0, 0, t0)}
	e.currentPersonID = "p1"
	e.Start(context.Background())
	e.Close(context.Background())
	if len(auth.deleted) != 1 || auth.deleted[0] != "p1" {
		t.Fatalf("final deletion not requested: %v", auth.deleted)
	}
}

func TestSafe_RecoversIntoBanner(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.safe(func() { panic("kaboom") })
	if e.Notice() == "" {
		t.Fatalf("panic should surface as a transient banner")
	}
	// Banner expires after its fixed duration.
	later := t0.Add(NoticeDuration + time.Second)
	e.clock = func() time.Time { return later }
	if e.Notice() != "" {
		t.Fatalf("banner should expire")
	}
}

func TestKeyDrivenMovement(t *testing.T) {
	e, _ := newTestEngine(&stubAuthority{})
	e.persons = []state.Person{person("p1", 0, 0, t0)}
	e.currentPersonID = "p1"

	e.KeyDown("ArrowUp")
	e.moveTick()
	e.moveTick()
	e.KeyUp("ArrowUp")
	e.moveTick()

	p, _ := e.CurrentPerson()
	if p.Y != -2*MoveStep {
		t.Fatalf("held key should repeat, released key should stop: y=%d", p.Y)
	}

	e.KeyDown("KeyX") // not a movement key
	e.moveTick()
	p, _ = e.CurrentPerson()
	if p.Y != -2*MoveStep || p.X != 0 {
		t.Fatalf("unknown key must be ignored")
	}
}
