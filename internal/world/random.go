package world

import (
	"hash/fnv"
	"math"
	"math/rand"
)

const DefaultSeed = "arena"

func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// PickSpawn chooses a random SPAWN platform and returns the standing
// position at its center along with the platform id.
func PickSpawn(rng *rand.Rand, layout Layout, t Tuning) (x, y float64, platformID string) {
	spawns := layout.SpawnPlatforms()
	if len(spawns) == 0 {
		return t.Width / 2, 0, ""
	}
	idx := 0
	if rng != nil && len(spawns) > 1 {
		idx = rng.Intn(len(spawns))
	}
	p := spawns[idx]
	return p.X, p.StandingY(t.PlayerHeight), p.ID
}

// NearestSpawn returns the SPAWN platform closest to (x, y).
func NearestSpawn(layout Layout, x, y float64) (Platform, bool) {
	best := Platform{}
	bestDist := math.Inf(1)
	found := false
	for _, p := range layout.SpawnPlatforms() {
		d := math.Hypot(p.X-x, p.Top()-y)
		if d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, found
}
