// Package worldgen builds the static spatial structures of a world from
// ASCII grammars: rooms from a building floor plan, roads and zoned lots
// from a city map, terrain from a seeded hash. Generation is deterministic
// and performs no I/O.
package worldgen

import (
	"fmt"

	"gridtown/internal/geom"
	"gridtown/internal/state"
)

// Floor-plan characters.
const (
	charOffice   = 'O'
	charHallway  = 'H'
	charEntrance = 'E'
)

const (
	KindOffice   = "office"
	KindHallway  = "hallway"
	KindEntrance = "entrance"
)

// GenerateRooms parses a floor-plan grammar into rooms at origin and computes
// each side's door state from neighbor adjacency. Unknown characters are
// skipped; that is a content-authoring concern, not a runtime fault.
func GenerateRooms(plan string, origin geom.Point) []state.Room {
	rooms := parseRooms(plan, origin)
	for i := range rooms {
		rooms[i].Doors = doorSides(rooms[i], rooms)
	}
	return rooms
}

func parseRooms(plan string, origin geom.Point) []state.Room {
	var rooms []state.Room
	row := 0
	col := 0
	for _, ch := range plan {
		if ch == '\n' {
			row++
			col = 0
			continue
		}
		kind := ""
		switch ch {
		case charOffice:
			kind = KindOffice
		case charHallway:
			kind = KindHallway
		case charEntrance:
			kind = KindEntrance
		}
		if kind != "" {
			x := origin.X + col*geom.TileW
			y := origin.Y + row*geom.TileH
			rooms = append(rooms, state.Room{
				ID:   fmt.Sprintf("room_%d_%d", x, y),
				X:    x,
				Y:    y,
				Kind: kind,
			})
		}
		col++
	}
	return rooms
}

// doorSides decides each side of r: hallways open onto neighboring hallways
// and get doors to other neighboring rooms; offices and entrances get a DOOR
// or ENTRANCE toward an adjacent hallway. Anything else is a wall.
func doorSides(r state.Room, all []state.Room) state.DoorSides {
	sides := state.DoorSides{Up: state.Wall, Down: state.Wall, Left: state.Wall, Right: state.Wall}
	for _, n := range all {
		if n.ID == r.ID || !geom.Nearby(r.Pos(), n.Pos()) {
			continue
		}
		adj := geom.AdjacentSides(r.Pos(), []geom.Point{n.Pos()})
		st, ok := sideState(r.Kind, n.Kind)
		if !ok {
			continue
		}
		setSide(&sides, adj, st)
	}
	return sides
}

func sideState(kind, neighbor string) (state.SideState, bool) {
	switch kind {
	case KindHallway:
		if neighbor == KindHallway {
			return state.Open, true
		}
		return state.Door, true
	case KindOffice:
		if neighbor == KindHallway {
			return state.Door, true
		}
	case KindEntrance:
		if neighbor == KindHallway {
			return state.Entrance, true
		}
	}
	return "", false
}

func setSide(s *state.DoorSides, adj geom.Sides, st state.SideState) {
	if adj.Up {
		s.Up = st
	}
	if adj.Down {
		s.Down = st
	}
	if adj.Left {
		s.Left = st
	}
	if adj.Right {
		s.Right = st
	}
}
