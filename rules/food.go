package rules

import (
	"math/rand"

	"github.com/brensch/snekstep/game"
)

// FoodSettings matches the common Battlesnake server knobs:
// - MinimumFood: ensure at least this many food items exist after each turn
// - FoodSpawnChance: percentage chance (0-100) to spawn one extra food each turn
//
// The search simulator never spawns food; only the self-play arena does, since
// a real server decides placement and we cannot predict it.
type FoodSettings struct {
	MinimumFood     int `yaml:"minimum_food"`
	FoodSpawnChance int `yaml:"food_spawn_chance"`
}

var DefaultFoodSettings = FoodSettings{MinimumFood: 1, FoodSpawnChance: 15}

// SpawnFood adds food to board in place according to settings.
func SpawnFood(board *game.Board, rng *rand.Rand, settings FoodSettings) {
	if board == nil || board.Width <= 0 || board.Height <= 0 {
		return
	}
	if settings.MinimumFood < 0 {
		settings.MinimumFood = 0
	}
	if settings.FoodSpawnChance < 0 {
		settings.FoodSpawnChance = 0
	}
	if settings.FoodSpawnChance > 100 {
		settings.FoodSpawnChance = 100
	}

	// Decide before doing the occupancy scan.
	deficit := settings.MinimumFood - len(board.Food)
	if deficit < 0 {
		deficit = 0
	}
	spawnExtra := settings.FoodSpawnChance > 0 && rng.Intn(100) < settings.FoodSpawnChance

	toSpawn := deficit
	if spawnExtra {
		toSpawn++
	}
	if toSpawn == 0 {
		return
	}

	occupied := make(map[game.Point]struct{}, int(board.Width*board.Height))
	for _, s := range board.Snakes {
		for _, p := range s.Body {
			occupied[p] = struct{}{}
		}
	}
	for _, f := range board.Food {
		occupied[f] = struct{}{}
	}

	available := make([]game.Point, 0, int(board.Width*board.Height)-len(occupied))
	for y := int32(0); y < board.Height; y++ {
		for x := int32(0); x < board.Width; x++ {
			p := game.Point{X: x, Y: y}
			if _, ok := occupied[p]; ok {
				continue
			}
			available = append(available, p)
		}
	}

	for ; toSpawn > 0 && len(available) > 0; toSpawn-- {
		i := rng.Intn(len(available))
		board.Food = append(board.Food, available[i])
		// remove chosen slot
		available[i] = available[len(available)-1]
		available = available[:len(available)-1]
	}
}
