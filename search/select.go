package search

import (
	"github.com/brensch/snekstep/game"
)

// SelectMove returns the root child direction with the strictly highest score,
// ties going to the earlier direction in Right, Left, Up, Down order. With no
// explored child it returns Right and a score of zero. It only reads.
func SelectMove(root *Node) (game.Direction, uint32) {
	best := game.Right
	bestScore := uint32(0)
	if root == nil {
		return best, bestScore
	}
	for _, d := range game.AllDirections {
		child := root.Child(d)
		if child == nil {
			continue
		}
		if s := child.Score(); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best, bestScore
}
