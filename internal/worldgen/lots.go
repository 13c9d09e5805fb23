package worldgen

import (
	"gridtown/internal/geom"
	"gridtown/internal/state"
)

const maxExpandRounds = 4

type tileKey struct{ cx, cy int }

// MergeLots greedily grows each lot, in input order, into its same-zone
// neighbors. Per round the lot tries to expand right and down together
// (requires the full right edge, the full bottom edge and the diagonal
// corner), then right only, then down only. Consumed lots leave the working
// set. A lot qualifies as edge material only when it fits entirely inside
// the expansion region, so merged lots stay rectangular.
func MergeLots(lots []state.Lot) []state.Lot {
	alive := make([]bool, len(lots))
	cover := map[tileKey]int{}
	for i, l := range lots {
		alive[i] = true
		for _, k := range lotTiles(l) {
			cover[k] = i
		}
	}

	for i := range lots {
		if !alive[i] {
			continue
		}
		for round := 0; round < maxExpandRounds; round++ {
			l := lots[i]
			cx, cy := l.X/geom.TileW, l.Y/geom.TileH
			wu, hu := l.W/geom.TileW, l.H/geom.TileH

			right := columnTiles(cx+wu, cy, hu)
			bottom := rowTiles(cx, cy+hu, wu)
			corner := []tileKey{{cx + wu, cy + hu}}

			// Both is preferred over either alone and must be checked first.
			if both := concat(right, bottom, corner); covered(both, l.Zone, i, lots, alive, cover) {
				consume(both, i, lots, alive, cover)
				lots[i].W += geom.TileW
				lots[i].H += geom.TileH
				continue
			}
			if covered(right, l.Zone, i, lots, alive, cover) {
				consume(right, i, lots, alive, cover)
				lots[i].W += geom.TileW
				continue
			}
			if covered(bottom, l.Zone, i, lots, alive, cover) {
				consume(bottom, i, lots, alive, cover)
				lots[i].H += geom.TileH
				continue
			}
			break
		}
	}

	out := make([]state.Lot, 0, len(lots))
	for i, l := range lots {
		if alive[i] {
			out = append(out, l)
		}
	}
	return out
}

func lotTiles(l state.Lot) []tileKey {
	cx, cy := l.X/geom.TileW, l.Y/geom.TileH
	wu, hu := l.W/geom.TileW, l.H/geom.TileH
	tiles := make([]tileKey, 0, wu*hu)
	for dx := 0; dx < wu; dx++ {
		for dy := 0; dy < hu; dy++ {
			tiles = append(tiles, tileKey{cx + dx, cy + dy})
		}
	}
	return tiles
}

func columnTiles(cx, cy, n int) []tileKey {
	tiles := make([]tileKey, n)
	for j := 0; j < n; j++ {
		tiles[j] = tileKey{cx, cy + j}
	}
	return tiles
}

func rowTiles(cx, cy, n int) []tileKey {
	tiles := make([]tileKey, n)
	for j := 0; j < n; j++ {
		tiles[j] = tileKey{cx + j, cy}
	}
	return tiles
}

func concat(groups ...[]tileKey) []tileKey {
	var all []tileKey
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// covered reports whether every region tile is occupied by an alive same-zone
// lot (other than self) whose own tiles all lie inside the region.
func covered(region []tileKey, zone state.Zone, self int, lots []state.Lot, alive []bool, cover map[tileKey]int) bool {
	inRegion := make(map[tileKey]bool, len(region))
	for _, k := range region {
		inRegion[k] = true
	}
	seen := map[int]bool{}
	for _, k := range region {
		j, ok := cover[k]
		if !ok || !alive[j] || j == self || lots[j].Zone != zone {
			return false
		}
		seen[j] = true
	}
	for j := range seen {
		for _, k := range lotTiles(lots[j]) {
			if !inRegion[k] {
				return false
			}
		}
	}
	return true
}

func consume(region []tileKey, into int, lots []state.Lot, alive []bool, cover map[tileKey]int) {
	for _, k := range region {
		j := cover[k]
		if j != into {
			alive[j] = false
		}
		cover[k] = into
	}
}
