// Package state holds the canonical entity model shared by the prediction
// engine, the transaction layer and the authority client, plus the merge
// rules that reconcile local predictions with authoritative snapshots.
package state

import (
	"time"

	"gridtown/internal/geom"
)

// Entity is the base of every movable or placeable thing. Positions are
// integer world-space pixels on the tile grid. LastUpdate is a string-encoded
// instant; the later copy of an entity is authoritative for every field
// except position (see merge.go).
type Entity struct {
	ID         string `json:"id"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	LastUpdate string `json:"lastUpdate"`
}

func (e Entity) EntityID() string { return e.ID }

func (e Entity) UpdatedAt() time.Time { return ParseStamp(e.LastUpdate) }

func (e Entity) Pos() geom.Point { return geom.Point{X: e.X, Y: e.Y} }

// Stamp encodes an instant in the wire timestamp format.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseStamp decodes a wire timestamp; malformed or empty stamps decode to
// the zero time so they always lose a newer-than comparison.
func ParseStamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Dir is a vehicle facing, one of four cardinal values.
type Dir int

const (
	DirUp Dir = iota
	DirRight
	DirDown
	DirLeft
)

func (d Dir) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	}
	return "up"
}

// TurnSteps returns the number of quarter turns from d to to, for composing
// geom.Rotate90 on passenger seat offsets.
func (d Dir) TurnSteps(to Dir) int {
	return (int(to) - int(d) + 4) % 4
}

// DirOf maps a movement delta to a facing. Zero deltas keep fallback.
func DirOf(dx, dy int, fallback Dir) Dir {
	switch {
	case dx > 0:
		return DirRight
	case dx < 0:
		return DirLeft
	case dy > 0:
		return DirDown
	case dy < 0:
		return DirUp
	}
	return fallback
}

// Person is a player or remote avatar. CarID is empty when on foot. Exactly
// one person per session is "current"; the engine tracks which.
type Person struct {
	Entity
	ShirtColor string         `json:"shirtColor,omitempty"`
	PantColor  string         `json:"pantColor,omitempty"`
	CarID      string         `json:"carId,omitempty"`
	Inventory  map[string]int `json:"inventory,omitempty"`
	Cash       int            `json:"cash,omitempty"`
	Credit     int            `json:"credit,omitempty"`
}

// PathPoint is one breadcrumb of a vehicle's trailing path. Consumed only by
// rendering; pruned by age.
type PathPoint struct {
	X  int    `json:"x"`
	Y  int    `json:"y"`
	At string `json:"at"`
}

// PathMaxAge bounds the vehicle trail ring.
const PathMaxAge = 10 * time.Second

// Car is a vehicle. Passengers are Persons whose CarID equals the car's ID.
type Car struct {
	Entity
	Dir  Dir         `json:"dir"`
	Path []PathPoint `json:"path,omitempty"`
}

// PrunePath drops trail points older than PathMaxAge relative to now.
func (c Car) PrunePath(now time.Time) Car {
	if len(c.Path) == 0 {
		return c
	}
	cutoff := now.Add(-PathMaxAge)
	kept := make([]PathPoint, 0, len(c.Path))
	for _, p := range c.Path {
		if !ParseStamp(p.At).Before(cutoff) {
			kept = append(kept, p)
		}
	}
	c.Path = kept
	return c
}

// Object is a network object: boxes, chairs, tables, vending machines,
// resources, stockpile slots. GrabbedBy is empty when free. Quantity is
// meaningful only for stackable types.
type Object struct {
	Entity
	Type      string `json:"type"`
	GrabbedBy string `json:"grabbedByPersonId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// SideState is one side of a room's door descriptor.
type SideState string

const (
	Wall     SideState = "WALL"
	Door     SideState = "DOOR"
	Open     SideState = "OPEN"
	Entrance SideState = "ENTRANCE"
)

// DoorSides describes all four sides of a room.
type DoorSides struct {
	Up    SideState `json:"up"`
	Down  SideState `json:"down"`
	Left  SideState `json:"left"`
	Right SideState `json:"right"`
}

// Room is immutable once generated for a world generation pass.
type Room struct {
	ID    string    `json:"id"`
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Kind  string    `json:"kind"`
	Doors DoorSides `json:"doors"`
}

func (r Room) Pos() geom.Point { return geom.Point{X: r.X, Y: r.Y} }

// Road is one generated road segment. Connectivity flags only feed rendering
// continuity.
type Road struct {
	X        int        `json:"x"`
	Y        int        `json:"y"`
	Vertical bool       `json:"vertical"`
	Connects geom.Sides `json:"connects"`
}

func (r Road) Pos() geom.Point { return geom.Point{X: r.X, Y: r.Y} }

// Zone classifies a lot.
type Zone string

const (
	ZoneResidential Zone = "R"
	ZoneCommercial  Zone = "C"
)

// LotOffer is an outstanding buy or sell offer on a lot.
type LotOffer struct {
	PersonID string `json:"personId"`
	Price    int    `json:"price"`
}

// Lot is a rectangular zoned parcel. Width and height are multiples of the
// base tile size. Format, when set, names the interior floor plan.
type Lot struct {
	ID        string    `json:"id"`
	Zone      Zone      `json:"zone"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	W         int       `json:"w"`
	H         int       `json:"h"`
	Owner     string    `json:"owner,omitempty"`
	Format    string    `json:"format,omitempty"`
	BuyOffer  *LotOffer `json:"buyOffer,omitempty"`
	SellOffer *LotOffer `json:"sellOffer,omitempty"`
}

func (l Lot) Pos() geom.Point { return geom.Point{X: l.X, Y: l.Y} }

// Snapshot captures the reconciled collections immediately prior to a merge.
// It supports interpolated rendering only and is never an authority.
type Snapshot struct {
	Persons   []Person  `json:"persons"`
	Cars      []Car     `json:"cars"`
	Objects   []Object  `json:"objects"`
	FetchTime time.Time `json:"fetchTime"`
}
