// Package geom holds the pure spatial predicates shared by world generation
// and movement: tile proximity, directional adjacency, and 90-degree offset
// rotation. Everything here is stateless.
package geom

// Building tiles are a fixed 500x300 world-pixel grid.
const (
	TileW = 500
	TileH = 300
)

// AdjEpsilon is the slack allowed when testing for an exact one-tile offset.
const AdjEpsilon = 10

type Point struct {
	X int
	Y int
}

// Offset is a displacement, e.g. a passenger's seat position relative to the
// vehicle anchor.
type Offset struct {
	X int
	Y int
}

// Sides marks which cardinal directions have a qualifying neighbor.
type Sides struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Nearby reports whether b lies within one tile of a on both axes.
func Nearby(a, b Point) bool {
	return abs(a.X-b.X) <= TileW && abs(a.Y-b.Y) <= TileH
}

// AdjacentSides reports, per direction, whether some candidate sits at
// exactly one tile-width/height offset from tile (within AdjEpsilon).
func AdjacentSides(tile Point, candidates []Point) Sides {
	var s Sides
	for _, c := range candidates {
		switch {
		case within(c.X, tile.X) && within(c.Y, tile.Y-TileH):
			s.Up = true
		case within(c.X, tile.X) && within(c.Y, tile.Y+TileH):
			s.Down = true
		case within(c.X, tile.X-TileW) && within(c.Y, tile.Y):
			s.Left = true
		case within(c.X, tile.X+TileW) && within(c.Y, tile.Y):
			s.Right = true
		}
	}
	return s
}

// Rotate90 maps (x, y) to (-y, x): one quarter turn.
func Rotate90(o Offset) Offset {
	return Offset{X: -o.Y, Y: o.X}
}

// RotateSteps composes Rotate90 steps times (steps taken mod 4).
func RotateSteps(o Offset, steps int) Offset {
	steps = ((steps % 4) + 4) % 4
	for i := 0; i < steps; i++ {
		o = Rotate90(o)
	}
	return o
}

func within(v, target int) bool {
	return abs(v-target) <= AdjEpsilon
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
