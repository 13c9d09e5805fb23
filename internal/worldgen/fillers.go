package worldgen

import (
	"fmt"

	"gridtown/internal/geom"
	"gridtown/internal/state"
)

// FillerKey selects a filler by exact lot dimensions and zone.
type FillerKey struct {
	W    int
	H    int
	Zone state.Zone
}

// Filler supplies a finished lot's interior: a room-format string and any
// fixed fixtures placed relative to the lot origin.
type Filler struct {
	Format   string
	Fixtures func(lot state.Lot) []state.Object
}

// Registry maps lot dimensions to fillers. Lots with no matching filler stay
// empty.
type Registry map[FillerKey]Filler

// DefaultRegistry returns the stock fillers.
func DefaultRegistry() Registry {
	return Registry{
		{W: 2 * geom.TileW, H: 2 * geom.TileH, Zone: state.ZoneCommercial}: {
			Format: "EH\nOH",
			Fixtures: func(lot state.Lot) []state.Object {
				return []state.Object{vendingMachine(lot, lot.X+geom.TileW/2, lot.Y+geom.TileH/2)}
			},
		},
		{W: 2 * geom.TileW, H: 2 * geom.TileH, Zone: state.ZoneResidential}: {
			Format: "EH\nOO",
		},
		{W: geom.TileW, H: geom.TileH, Zone: state.ZoneCommercial}: {
			Format: "E",
			Fixtures: func(lot state.Lot) []state.Object {
				return []state.Object{vendingMachine(lot, lot.X+geom.TileW/2, lot.Y+geom.TileH/2)}
			},
		},
	}
}

// Fill matches every lot against the registry, stamping the matched format
// onto the lot and generating its interior rooms and fixtures.
func (reg Registry) Fill(lots []state.Lot) ([]state.Lot, []state.Room, []state.Object) {
	var rooms []state.Room
	var fixtures []state.Object
	out := make([]state.Lot, len(lots))
	for i, lot := range lots {
		f, ok := reg[FillerKey{W: lot.W, H: lot.H, Zone: lot.Zone}]
		if ok {
			lot.Format = f.Format
			rooms = append(rooms, GenerateRooms(f.Format, lot.Pos())...)
			if f.Fixtures != nil {
				fixtures = append(fixtures, f.Fixtures(lot)...)
			}
		}
		out[i] = lot
	}
	return out, rooms, fixtures
}

func vendingMachine(lot state.Lot, x, y int) state.Object {
	return state.Object{
		Entity:   state.Entity{ID: fmt.Sprintf("vending_%s", lot.ID), X: x, Y: y},
		Type:     "vending-machine",
		Quantity: 10,
	}
}
