// Package heuristic rates a simulated leaf board from one snake's point of
// view. Scores are ordinal: only comparisons between them mean anything.
package heuristic

import (
	"github.com/brensch/snekstep/game"
)

// CenterBonus is the centering reward for a head exactly on the middle cell.
// It shrinks with squared distance and never goes below zero.
const CenterBonus = 100

// Score sums generation depth, a centering bonus, the snake's health and the
// free area reachable from its head. A board without the snake scores only its
// generation.
func Score(board *game.Board, youID string, generation uint32) uint32 {
	score := generation

	you := board.Snake(youID)
	if you == nil || len(you.Body) == 0 {
		return score
	}

	head := you.Body[0]
	score += Centering(board, head)
	if you.Health > 0 {
		score += uint32(you.Health)
	}
	score += uint32(FloodFill(board, head))
	return score
}

// Centering returns (CenterBonus - dx² - dy²) / 4 clamped at zero, with dx, dy
// measured from (W/2, H/2).
func Centering(board *game.Board, head game.Point) uint32 {
	dx := int64(head.X - board.Width/2)
	dy := int64(head.Y - board.Height/2)
	v := CenterBonus - dx*dx - dy*dy
	if v <= 0 {
		return 0
	}
	return uint32(v / 4)
}

// FloodFill counts the cells reachable from start through 4-neighbour steps
// without wrapping. Every body segment except heads blocks; the start cell is
// counted when it is itself free.
func FloodFill(board *game.Board, start game.Point) int {
	w, h := int(board.Width), int(board.Height)
	if w <= 0 || h <= 0 {
		return 0
	}

	blocked := make([]bool, w*h)
	for _, s := range board.Snakes {
		if len(s.Body) < 2 {
			continue
		}
		for _, p := range s.Body[1:] {
			if board.InBounds(p) {
				blocked[int(p.X)+int(p.Y)*w] = true
			}
		}
	}

	visited := make([]bool, w*h)
	stack := []game.Point{start}
	count := 0
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !board.InBounds(p) {
			continue
		}
		idx := int(p.X) + int(p.Y)*w
		if visited[idx] {
			continue
		}
		visited[idx] = true
		if blocked[idx] {
			continue
		}

		count++
		for _, d := range game.AllDirections {
			stack = append(stack, p.Add(d.Offset()))
		}
	}
	return count
}
