package search

import (
	"math/rand"

	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/rules"
)

//go:generate go tool mockgen -destination=./mocks/policy_mock.go -package=mocks . Policy

// Policy picks a move for an opponent snake during simulation. Implementations
// are shared by all workers of an engine and must be safe for concurrent use;
// the rng passed in belongs to the calling worker.
type Policy interface {
	Choose(board *game.Board, snake *game.Snake, rng *rand.Rand) game.Direction
}

// UniformPolicy picks any of the four directions with equal probability.
type UniformPolicy struct{}

func (UniformPolicy) Choose(_ *game.Board, _ *game.Snake, rng *rand.Rand) game.Direction {
	return game.AllDirections[rng.Intn(game.NumDirections)]
}

// SafePolicy picks uniformly among moves that don't immediately hit a wall or
// a body, falling back to uniform when boxed in.
type SafePolicy struct{}

func (SafePolicy) Choose(board *game.Board, snake *game.Snake, rng *rand.Rand) game.Direction {
	safe := rules.SafeMoves(board, snake.ID)
	if len(safe) == 0 {
		return UniformPolicy{}.Choose(board, snake, rng)
	}
	return safe[rng.Intn(len(safe))]
}

// PolicyByName resolves a configured policy name. Unknown names get uniform.
func PolicyByName(name string) Policy {
	switch name {
	case "safe":
		return SafePolicy{}
	default:
		return UniformPolicy{}
	}
}
