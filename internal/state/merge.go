package state

import "time"

// Syncable is implemented by every networked entity kind so the engine can
// apply one merge rule uniformly. KeepLocalPosition returns the receiver
// (the server copy) with the position-class fields taken from local.
type Syncable[E any] interface {
	EntityID() string
	UpdatedAt() time.Time
	KeepLocalPosition(local E) E
}

// MergeOne reconciles one entity present both locally and in a server
// snapshot. The server copy wins every field, except when the local copy is
// strictly newer: then the local position (and, for vehicles, the trail)
// overrides so a slow poll cycle cannot snap the entity backward mid-stride.
//
// In the local-newer case the merged entity matches the server on every
// field except position AND LastUpdate: the stamp stays local on purpose.
// Taking the server's older stamp would put the entity below the push
// watermark (the pending move would never be resent) and would break
// re-merging the same snapshot being a fixed point. Equal timestamps mean
// the server wins outright.
func MergeOne[E Syncable[E]](local, server E) E {
	if local.UpdatedAt().After(server.UpdatedAt()) {
		return server.KeepLocalPosition(local)
	}
	return server
}

// MergeAll reconciles a whole collection against a server snapshot list.
// Server entities with no local counterpart are adopted as-is; local entities
// absent from the server list are dropped (implicit authoritative deletion).
// Output order follows the server list.
func MergeAll[E Syncable[E]](local, server []E) []E {
	byID := make(map[string]E, len(local))
	for _, e := range local {
		byID[e.EntityID()] = e
	}
	merged := make([]E, 0, len(server))
	for _, sv := range server {
		if lc, ok := byID[sv.EntityID()]; ok {
			merged = append(merged, MergeOne(lc, sv))
		} else {
			merged = append(merged, sv)
		}
	}
	return merged
}

func (p Person) KeepLocalPosition(local Person) Person {
	p.X = local.X
	p.Y = local.Y
	p.LastUpdate = local.LastUpdate
	return p
}

func (c Car) KeepLocalPosition(local Car) Car {
	c.X = local.X
	c.Y = local.Y
	c.Path = local.Path
	c.LastUpdate = local.LastUpdate
	return c
}

func (o Object) KeepLocalPosition(local Object) Object {
	o.X = local.X
	o.Y = local.Y
	o.LastUpdate = local.LastUpdate
	return o
}

// FindPerson returns the person with the given id, or false.
func FindPerson(persons []Person, id string) (Person, bool) {
	for _, p := range persons {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// FindCar returns the car with the given id, or false.
func FindCar(cars []Car, id string) (Car, bool) {
	for _, c := range cars {
		if c.ID == id {
			return c, true
		}
	}
	return Car{}, false
}

// FindObject returns the object with the given id, or false.
func FindObject(objects []Object, id string) (Object, bool) {
	for _, o := range objects {
		if o.ID == id {
			return o, true
		}
	}
	return Object{}, false
}
