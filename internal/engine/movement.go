package engine

import (
	"gridtown/internal/geom"
	"gridtown/internal/state"
)

// GrabRange is the box within which the current person can grab an object.
const GrabRange = 100

// MoveCurrentPerson applies one movement delta locally, with zero round-trip
// latency. On foot the person and anything they carry move together; in a
// vehicle the whole vehicle moves (see moveCarLocked). A missing current
// person is a no-op.
func (e *Engine) MoveCurrentPerson(dx, dy int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		return
	}
	if p.CarID != "" {
		e.moveCarLocked(p.CarID, dx, dy)
		return
	}

	stamp := state.Stamp(e.clock())
	e.translatePersonLocked(p.ID, dx, dy, stamp)
}

// moveCarLocked translates the car, re-seats every passenger and carries
// every grabbed object, all inside one critical section so no intermediate
// frame shows a passenger outside the vehicle. Seat offsets are remapped
// through quarter-turn composition when the facing changes.
func (e *Engine) moveCarLocked(carID string, dx, dy int) {
	car, ok := state.FindCar(e.cars, carID)
	if !ok {
		return
	}
	now := e.clock()
	stamp := state.Stamp(now)

	newDir := state.DirOf(dx, dy, car.Dir)
	steps := car.Dir.TurnSteps(newDir)

	moved := car
	moved.X += dx
	moved.Y += dy
	moved.Dir = newDir
	moved.LastUpdate = stamp
	moved.Path = append(moved.Path, state.PathPoint{X: car.X, Y: car.Y, At: stamp})
	moved = moved.PrunePath(now)
	e.replaceCarLocked(moved)

	for i, p := range e.persons {
		if p.CarID != carID {
			continue
		}
		seat := geom.RotateSteps(geom.Offset{X: p.X - car.X, Y: p.Y - car.Y}, steps)
		nx := moved.X + seat.X
		ny := moved.Y + seat.Y
		pdx, pdy := nx-p.X, ny-p.Y
		e.persons[i].X = nx
		e.persons[i].Y = ny
		e.persons[i].LastUpdate = stamp
		e.translateGrabbedLocked(p.ID, pdx, pdy, stamp)
	}
}

// translatePersonLocked moves one person and everything they hold by the
// same delta in the same update.
func (e *Engine) translatePersonLocked(personID string, dx, dy int, stamp string) {
	for i, p := range e.persons {
		if p.ID != personID {
			continue
		}
		e.persons[i].X += dx
		e.persons[i].Y += dy
		e.persons[i].LastUpdate = stamp
	}
	e.translateGrabbedLocked(personID, dx, dy, stamp)
}

func (e *Engine) translateGrabbedLocked(personID string, dx, dy int, stamp string) {
	for i, o := range e.objects {
		if o.GrabbedBy != personID {
			continue
		}
		e.objects[i].X += dx
		e.objects[i].Y += dy
		e.objects[i].LastUpdate = stamp
	}
}

func (e *Engine) replaceCarLocked(car state.Car) {
	for i := range e.cars {
		if e.cars[i].ID == car.ID {
			e.cars[i] = car
			return
		}
	}
}

// EnterCar seats the current person in a vehicle; ExitCar puts them back on
// foot.
func (e *Engine) EnterCar(carID string) {
	e.setCar(carID)
}

func (e *Engine) ExitCar() {
	e.setCar("")
}

func (e *Engine) setCar(carID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.persons {
		if p.ID == e.currentPersonID {
			e.persons[i].CarID = carID
			e.persons[i].LastUpdate = state.Stamp(e.clock())
		}
	}
}

// ToggleGrab picks up or releases an object. Releasing just clears the
// holder; grabbing requires the object to be free and within GrabRange.
func (e *Engine) ToggleGrab(objectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := state.FindPerson(e.persons, e.currentPersonID)
	if !ok {
		return
	}
	for i, o := range e.objects {
		if o.ID != objectID {
			continue
		}
		stamp := state.Stamp(e.clock())
		switch {
		case o.GrabbedBy == p.ID:
			e.objects[i].GrabbedBy = ""
			e.objects[i].LastUpdate = stamp
		case o.GrabbedBy == "" && withinBox(p.X-o.X, p.Y-o.Y, GrabRange):
			e.objects[i].GrabbedBy = p.ID
			e.objects[i].LastUpdate = stamp
		}
		return
	}
}

func withinBox(dx, dy, r int) bool {
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx <= r && dy <= r
}
