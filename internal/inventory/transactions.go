package inventory

import (
	"errors"
	"fmt"
	"time"

	"gridtown/internal/state"
)

// Transaction failures. All of them fire before any mutation and before any
// network request.
var (
	ErrUnknownRecipe     = errors.New("unknown recipe")
	ErrMissingIngredient = errors.New("missing ingredient")
	ErrInsufficientStack = errors.New("insufficient stack quantity")
	ErrNotFree           = errors.New("object is held by someone else")
	ErrNotStackable      = errors.New("object does not stack")
	ErrNotInInventory    = errors.New("item not in inventory")
)

// Request mirrors a transaction for the authority. The server re-applies the
// same deltas and echoes the result on the next pull, where it merges through
// the ordinary reconciliation rules.
type Request struct {
	Op         string         `json:"op"`
	ActorID    string         `json:"actorId"`
	Added      []state.Object `json:"added,omitempty"`
	Updated    []state.Object `json:"updated,omitempty"`
	DeletedIDs []string       `json:"deletedIds,omitempty"`
	Inventory  map[string]int `json:"inventory,omitempty"`
	Cash       int            `json:"cash,omitempty"`
}

// Delta is the result of one transaction: new and changed objects, ids
// consumed outright, the actor's updated state, and the request payload.
// Applying a Delta is order-independent (see Apply).
type Delta struct {
	Added      []state.Object
	Updated    []state.Object
	DeletedIDs []string
	Actor      state.Person
	Request    Request
}

// Apply merges a delta into an object collection: deleted ids are removed,
// updated objects replace their prior copy by id, added objects are appended.
func Apply(objects []state.Object, d Delta) []state.Object {
	deleted := make(map[string]bool, len(d.DeletedIDs))
	for _, id := range d.DeletedIDs {
		deleted[id] = true
	}
	updated := make(map[string]state.Object, len(d.Updated))
	for _, o := range d.Updated {
		updated[o.ID] = o
	}
	out := make([]state.Object, 0, len(objects)+len(d.Added))
	for _, o := range objects {
		if deleted[o.ID] {
			continue
		}
		if u, ok := updated[o.ID]; ok {
			out = append(out, u)
			continue
		}
		out = append(out, o)
	}
	return append(out, d.Added...)
}

// PickUp moves a free object into the actor's inventory, consuming the world
// instance.
func (c Catalog) PickUp(actor state.Person, obj state.Object, now time.Time) (Delta, error) {
	if obj.GrabbedBy != "" && obj.GrabbedBy != actor.ID {
		return Delta{}, ErrNotFree
	}
	count := obj.Quantity
	if count == 0 {
		count = 1
	}
	actor = addItems(actor, obj.Type, count, now)
	d := Delta{
		DeletedIDs: []string{obj.ID},
		Actor:      actor,
	}
	d.Request = request("pickUpItem", d)
	return d, nil
}

// Drop spawns a world object of the given type at the actor's feet.
func (c Catalog) Drop(actor state.Person, item string, now time.Time) (Delta, error) {
	if actor.Inventory[item] < 1 {
		return Delta{}, fmt.Errorf("drop %s: %w", item, ErrNotInInventory)
	}
	actor = addItems(actor, item, -1, now)
	obj := state.Object{
		Entity: state.Entity{
			ID:         fmt.Sprintf("obj_%s_%d", actor.ID, now.UnixNano()),
			X:          actor.X,
			Y:          actor.Y,
			LastUpdate: state.Stamp(now),
		},
		Type:     item,
		Quantity: 1,
	}
	d := Delta{
		Added: []state.Object{obj},
		Actor: actor,
	}
	d.Request = request("dropItem", d)
	return d, nil
}

// Stack pours src into dst up to dst's type stack limit. src is deleted when
// fully absorbed, otherwise updated with the remainder.
func (c Catalog) Stack(actor state.Person, src, dst state.Object, now time.Time) (Delta, error) {
	if src.Type != dst.Type {
		return Delta{}, fmt.Errorf("stack %s onto %s: %w", src.Type, dst.Type, ErrNotStackable)
	}
	limit := c.MaxStack(dst.Type)
	if limit <= 1 {
		return Delta{}, fmt.Errorf("stack %s: %w", dst.Type, ErrNotStackable)
	}
	room := limit - dst.Quantity
	if room <= 0 || src.Quantity <= 0 {
		return Delta{}, fmt.Errorf("stack %s: %w", dst.Type, ErrInsufficientStack)
	}
	moved := src.Quantity
	if moved > room {
		moved = room
	}
	dst.Quantity += moved
	dst.LastUpdate = state.Stamp(now)
	d := Delta{Actor: actor}
	if moved == src.Quantity {
		d.DeletedIDs = []string{src.ID}
	} else {
		src.Quantity -= moved
		src.LastUpdate = state.Stamp(now)
		d.Updated = append(d.Updated, src)
	}
	d.Updated = append(d.Updated, dst)
	d.Request = request("stackItem", d)
	return d, nil
}

// Withdraw takes count units from a stockpile slot into the actor's
// inventory. Fails fast when the slot is short.
func (c Catalog) Withdraw(actor state.Person, slot state.Object, count int, now time.Time) (Delta, error) {
	if count < 1 {
		count = 1
	}
	if slot.Quantity < count {
		return Delta{}, fmt.Errorf("withdraw %dx %s: %w", count, slot.Type, ErrInsufficientStack)
	}
	actor = addItems(actor, slot.Type, count, now)
	d := Delta{Actor: actor}
	if slot.Quantity == count {
		d.DeletedIDs = []string{slot.ID}
	} else {
		slot.Quantity -= count
		slot.LastUpdate = state.Stamp(now)
		d.Updated = []state.Object{slot}
	}
	d.Request = request("withdrawItem", d)
	return d, nil
}

// Craft consumes a recipe's inputs from the actor's inventory and adds its
// outputs. The recipe must be of kind ITEM.
func (c Catalog) Craft(actor state.Person, recipeID string, now time.Time) (Delta, error) {
	r, ok := c.Recipes[recipeID]
	if !ok || r.Kind != "ITEM" {
		return Delta{}, fmt.Errorf("craft %s: %w", recipeID, ErrUnknownRecipe)
	}
	actor, err := consumeInputs(actor, r, now)
	if err != nil {
		return Delta{}, err
	}
	for _, out := range r.Outputs {
		actor = addItems(actor, out.Item, out.Count, now)
	}
	d := Delta{Actor: actor}
	d.Request = request("craftItem", d)
	return d, nil
}

// Construct consumes a BUILDING recipe's inputs and places the building at
// (x, y).
func (c Catalog) Construct(actor state.Person, recipeID string, x, y int, now time.Time) (Delta, error) {
	r, ok := c.Recipes[recipeID]
	if !ok || r.Kind != "BUILDING" {
		return Delta{}, fmt.Errorf("construct %s: %w", recipeID, ErrUnknownRecipe)
	}
	actor, err := consumeInputs(actor, r, now)
	if err != nil {
		return Delta{}, err
	}
	d := Delta{Actor: actor}
	for _, out := range r.Outputs {
		d.Added = append(d.Added, state.Object{
			Entity: state.Entity{
				ID:         fmt.Sprintf("bld_%s_%d", actor.ID, now.UnixNano()),
				X:          x,
				Y:          y,
				LastUpdate: state.Stamp(now),
			},
			Type: out.Item,
		})
	}
	d.Request = request("constructBuilding", d)
	return d, nil
}

// BuildStockpile places an empty stockpile slot at (x, y). Stockpiles cost
// nothing; they only reserve ground.
func (c Catalog) BuildStockpile(actor state.Person, x, y int, now time.Time) (Delta, error) {
	d := Delta{
		Added: []state.Object{{
			Entity: state.Entity{
				ID:         fmt.Sprintf("stk_%s_%d", actor.ID, now.UnixNano()),
				X:          x,
				Y:          y,
				LastUpdate: state.Stamp(now),
			},
			Type: "stockpile",
		}},
		Actor: actor,
	}
	d.Request = request("constructStockpile", d)
	return d, nil
}

// consumeInputs checks every ingredient before touching anything, then
// subtracts them.
func consumeInputs(actor state.Person, r Recipe, now time.Time) (state.Person, error) {
	for _, in := range r.Inputs {
		if actor.Inventory[in.Item] < in.Count {
			return actor, fmt.Errorf("%s needs %dx %s: %w", r.RecipeID, in.Count, in.Item, ErrMissingIngredient)
		}
	}
	for _, in := range r.Inputs {
		actor = addItems(actor, in.Item, -in.Count, now)
	}
	return actor, nil
}

func addItems(actor state.Person, item string, count int, now time.Time) state.Person {
	inv := make(map[string]int, len(actor.Inventory)+1)
	for k, v := range actor.Inventory {
		inv[k] = v
	}
	inv[item] += count
	if inv[item] <= 0 {
		delete(inv, item)
	}
	actor.Inventory = inv
	actor.LastUpdate = state.Stamp(now)
	return actor
}

func request(op string, d Delta) Request {
	return Request{
		Op:         op,
		ActorID:    d.Actor.ID,
		Added:      d.Added,
		Updated:    d.Updated,
		DeletedIDs: d.DeletedIDs,
		Inventory:  d.Actor.Inventory,
		Cash:       d.Actor.Cash,
	}
}
