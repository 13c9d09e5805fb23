// Package api is the REST client for the remote authority: the per-cycle
// push/pull pair plus the fire-and-forget action endpoints. The engine only
// ever sees successful pull responses; every failure is logged here and
// surfaces as a skipped cycle.
package api

import (
	"encoding/json"

	"gridtown/internal/state"
)

// PushRequest carries exactly the entities locally modified since the last
// watermark.
type PushRequest struct {
	Persons []state.Person `json:"persons"`
	Cars    []state.Car    `json:"cars"`
	Objects []state.Object `json:"objects"`
}

// Npc is a server-driven person with an assigned job.
type Npc struct {
	state.Person
	Job string `json:"job,omitempty"`
}

// Floor and Wall are render-only surfaces of constructed buildings.
type Floor struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Wall struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Cell identifies one loaded world cell.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TerrainTileRef is a server-acknowledged terrain tile.
type TerrainTileRef struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind,omitempty"`
}

// CellLock marks a cell another session is authoritative for.
type CellLock struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	OwnerID string `json:"ownerId,omitempty"`
}

// VoiceMessage is one opaque signalling payload relayed between sessions.
type VoiceMessage struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// VoiceMessages groups the pending signalling traffic by kind.
type VoiceMessages struct {
	Candidates []VoiceMessage `json:"candidates"`
	Offers     []VoiceMessage `json:"offers"`
	Answers    []VoiceMessage `json:"answers"`
}

// PullResponse is the authority's full snapshot for one identity, filtered
// server-side to the relevant viewport.
type PullResponse struct {
	Persons        []state.Person `json:"persons"`
	Cars           []state.Car    `json:"cars"`
	Objects        []state.Object `json:"objects"`
	Npcs           []Npc          `json:"npcs,omitempty"`
	Resources      []state.Object `json:"resources,omitempty"`
	Stockpiles     []state.Object `json:"stockpiles,omitempty"`
	StockpileTiles []state.Object `json:"stockpileTiles,omitempty"`
	Houses         []state.Object `json:"houses,omitempty"`
	Floors         []Floor        `json:"floors,omitempty"`
	Walls          []Wall         `json:"walls,omitempty"`
	Roads          []state.Road   `json:"roads"`
	Lots           []state.Lot    `json:"lots"`
	VoiceMessages  VoiceMessages  `json:"voiceMessages"`

	CurrentPersonID    string           `json:"currentPersonId,omitempty"`
	LoadedCells        []Cell           `json:"loadedCells,omitempty"`
	LoadedTerrainTiles []TerrainTileRef `json:"loadedTerrainTiles,omitempty"`
	CellLocks          []CellLock       `json:"cellLocks,omitempty"`
}
