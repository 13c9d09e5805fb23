package worldgen

// Terrain tiles overlay the world on a coarser 1000x1000 grid than the
// building grid. Tiling is a pure seeded hash so the client can regenerate
// any viewport without I/O or stored state.

const TerrainTile = 1000

const (
	TerrainGrass  = "GRASS"
	TerrainDirt   = "DIRT"
	TerrainWater  = "WATER"
	TerrainForest = "FOREST"
)

// TerrainAt returns the terrain kind of the tile containing world point
// (x, y) for the given seed.
func TerrainAt(seed int64, x, y int) string {
	tx := floorDiv(x, TerrainTile)
	ty := floorDiv(y, TerrainTile)
	n := hash2(seed, tx, ty) % 100
	switch {
	case n < 6:
		return TerrainWater
	case n < 18:
		return TerrainForest
	case n < 30:
		return TerrainDirt
	default:
		return TerrainGrass
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// hash2 is a splitmix-style avalanche over (seed, x, y).
func hash2(seed int64, x, y int) uint64 {
	h := uint64(seed) ^ 0x9e3779b97f4a7c15
	h = mix(h ^ uint64(int64(x)))
	h = mix(h ^ uint64(int64(y)))
	return h
}

func mix(h uint64) uint64 {
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}
