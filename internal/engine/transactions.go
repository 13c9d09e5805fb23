package engine

import (
	"context"

	"gridtown/internal/inventory"
	"gridtown/internal/state"
)

// Transaction entry points. Each builds a pure inventory delta against the
// current person, splices the result into the collections immediately, and
// mirrors the mutation to the authority fire-and-forget. A failed build
// leaves state untouched and sends nothing.

func (e *Engine) PickUpObject(ctx context.Context, objectID string) error {
	return e.transact(ctx, func(actor state.Person) (inventory.Delta, error) {
		obj, ok := state.FindObject(e.objects, objectID)
		if !ok {
			return inventory.Delta{}, inventory.ErrNotInInventory
		}
		return e.opts.Catalog.PickUp(actor, obj, e.clock())
	})
}

func (e *Engine) DropItem(ctx context.Context, item string) error {
	return e.transact(ctx, func(actor state.Person) (inventory.Delta, error) {
		return e.opts.Catalog.Drop(actor, item, e.clock())
	})
}

func (e *Engine) StackObjects(ctx context.Context, srcID, dstID string) error {
	return e.transact(ctx, func(actor state.Person) (inventory.Delta, error) {
		src, ok := state.FindObject(e.objects, srcID)
		if !ok {
			return inventory.Delta{}, inventory.ErrNotInInventory
		}
		dst, ok := state.FindObject(e.objects, dstID)
		if !ok {
			return inventory.Delta{}, inventory.ErrNotInInventory
		}
		return e.opts.Catalog.Stack(actor, src, dst, e.clock())
	})
}

// WithdrawFromStockpile draws count units out of a stockpile slot.
func (e *Engine) WithdrawFromStockpile(ctx context.Context, slotID string, count int) error {
	e.mu.Lock()
	actor, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	slot, inStockpiles := state.FindObject(e.stockpiles, slotID)
	if !inStockpiles {
		var found bool
		slot, found = state.FindObject(e.objects, slotID)
		if !found {
			e.mu.Unlock()
			return inventory.ErrNotInInventory
		}
	}
	d, err := e.opts.Catalog.Withdraw(actor, slot, count, e.clock())
	if err != nil {
		e.setNotice(err.Error())
		e.mu.Unlock()
		return err
	}
	if inStockpiles {
		e.stockpiles = inventory.Apply(e.stockpiles, d)
	} else {
		e.objects = inventory.Apply(e.objects, d)
	}
	e.replacePersonLocked(d.Actor)
	req := d.Request
	e.mu.Unlock()

	e.authority.SendTransaction(ctx, req)
	return nil
}

func (e *Engine) CraftRecipe(ctx context.Context, recipeID string) error {
	return e.transact(ctx, func(actor state.Person) (inventory.Delta, error) {
		return e.opts.Catalog.Craft(actor, recipeID, e.clock())
	})
}

func (e *Engine) ConstructBuilding(ctx context.Context, recipeID string, x, y int) error {
	return e.transact(ctx, func(actor state.Person) (inventory.Delta, error) {
		return e.opts.Catalog.Construct(actor, recipeID, x, y, e.clock())
	})
}

func (e *Engine) ConstructStockpile(ctx context.Context, x, y int) error {
	return e.transact(ctx, func(actor state.Person) (inventory.Delta, error) {
		return e.opts.Catalog.BuildStockpile(actor, x, y, e.clock())
	})
}

// transact serializes a transaction through the same lock as every other
// delta, so simultaneous local updates to one entity can't lose each other.
func (e *Engine) transact(ctx context.Context, build func(state.Person) (inventory.Delta, error)) error {
	e.mu.Lock()
	actor, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		e.mu.Unlock()
		return nil
	}
	d, err := build(actor)
	if err != nil {
		e.setNotice(err.Error())
		e.mu.Unlock()
		return err
	}
	e.objects = inventory.Apply(e.objects, d)
	e.replacePersonLocked(d.Actor)
	req := d.Request
	e.mu.Unlock()

	e.authority.SendTransaction(ctx, req)
	return nil
}

func (e *Engine) replacePersonLocked(p state.Person) {
	for i := range e.persons {
		if e.persons[i].ID == p.ID {
			e.persons[i] = p
			return
		}
	}
}
