package worldgen

import (
	"fmt"

	"gridtown/internal/geom"
	"gridtown/internal/state"
)

// City-map characters: road segments plus zone letters for unit lots.
const (
	charRoadV       = '|'
	charRoadH       = '-'
	charResidential = 'R'
	charCommercial  = 'C'
)

// City is the output of one city-grammar pass.
type City struct {
	Roads []state.Road
	Lots  []state.Lot
}

// GenerateCity parses a city grammar at origin: road characters become road
// segments with computed connectivity, zone letters become unit lots which
// are then greedily merged (see lots.go). Unknown characters are skipped.
func GenerateCity(grammar string, origin geom.Point) City {
	var roads []state.Road
	var lots []state.Lot
	row := 0
	col := 0
	for _, ch := range grammar {
		if ch == '\n' {
			row++
			col = 0
			continue
		}
		x := origin.X + col*geom.TileW
		y := origin.Y + row*geom.TileH
		switch ch {
		case charRoadV:
			roads = append(roads, state.Road{X: x, Y: y, Vertical: true})
		case charRoadH:
			roads = append(roads, state.Road{X: x, Y: y})
		case charResidential:
			lots = append(lots, unitLot(x, y, state.ZoneResidential))
		case charCommercial:
			lots = append(lots, unitLot(x, y, state.ZoneCommercial))
		}
		col++
	}
	connectRoads(roads)
	return City{Roads: roads, Lots: MergeLots(lots)}
}

func unitLot(x, y int, zone state.Zone) state.Lot {
	return state.Lot{
		ID:   fmt.Sprintf("lot_%d_%d", x, y),
		Zone: zone,
		X:    x,
		Y:    y,
		W:    geom.TileW,
		H:    geom.TileH,
	}
}

// connectRoads fills per-direction connectivity flags. Roads never merge;
// the flags only feed rendering continuity.
func connectRoads(roads []state.Road) {
	points := make([]geom.Point, len(roads))
	for i, r := range roads {
		points[i] = r.Pos()
	}
	for i := range roads {
		roads[i].Connects = geom.AdjacentSides(roads[i].Pos(), points)
	}
}
