// Package rules is the turn simulator used by the search workers and the
// local self-play arena.
package rules

import (
	"github.com/brensch/snekstep/game"
)

// FullHealth is both the health a snake is restored to by eating and the
// marker for "just ate": a snake entering a move at FullHealth keeps its tail,
// unless its body already ends in a stacked tail segment. A stacked tail is
// growth that is already on the board (from eating, or a fresh start) and is
// paid out by the normal tail removal instead.
const FullHealth = 100

// Step advances the board by one turn with every snake moving at once.
// The input board is never modified; the result is a fresh snapshot.
// Snakes without an entry in moves are treated as dead.
func Step(board *game.Board, moves map[string]game.Direction) *game.Board {
	next := board.Clone()
	n := len(next.Snakes)

	food := make(map[game.Point]bool, len(next.Food))
	for _, f := range next.Food {
		food[f] = true
	}

	// 1. Movement and 2. metabolism.
	starved := make([]bool, n)
	for i := range next.Snakes {
		s := &next.Snakes[i]
		move, ok := moves[s.ID]
		if !ok || len(s.Body) == 0 {
			s.Health = 0
			starved[i] = true
			continue
		}

		newHead := s.Body[0].Add(move.Offset())
		eats := food[newHead]
		keepTail := !eats && s.Health == FullHealth && !stackedTail(s.Body)

		body := make([]game.Point, 0, len(s.Body)+1)
		body = append(body, newHead)
		if keepTail {
			body = append(body, s.Body...)
		} else {
			body = append(body, s.Body[:len(s.Body)-1]...)
		}
		if eats {
			// Grow by stacking the new tail; next turn's FullHealth does not
			// grow the snake a second time.
			body = append(body, body[len(body)-1])
		}
		s.Body = body

		s.Health--
		if !next.InBounds(newHead) {
			s.Health = 0
		}

		// 3. Starvation (and wall exits).
		starved[i] = s.Health <= 0
	}

	// 4. Collisions, judged only against snakes that did not starve.
	dead := make([]bool, n)
	copy(dead, starved)
	for i := range next.Snakes {
		if starved[i] {
			continue
		}
		s := &next.Snakes[i]
		head := s.Body[0]
		for j := range next.Snakes {
			if starved[j] {
				continue
			}
			other := &next.Snakes[j]
			if hitsBody(head, other.Body) {
				dead[i] = true
				break
			}
			if i != j && other.Body[0] == head && other.Health >= s.Health {
				dead[i] = true
				break
			}
		}
	}

	// 5. Food.
	eaten := make(map[game.Point]bool)
	for i := range next.Snakes {
		if dead[i] {
			continue
		}
		s := &next.Snakes[i]
		if food[s.Body[0]] {
			s.Health = FullHealth
			eaten[s.Body[0]] = true
		}
	}
	if len(eaten) > 0 {
		remaining := make([]game.Point, 0, len(next.Food))
		for _, f := range next.Food {
			if !eaten[f] {
				remaining = append(remaining, f)
			}
		}
		next.Food = remaining
	}

	// 6. Cull, preserving order.
	alive := next.Snakes[:0]
	for i := range next.Snakes {
		if !dead[i] {
			alive = append(alive, next.Snakes[i])
		}
	}
	next.Snakes = alive

	return next
}

// stackedTail reports whether the last two segments share a cell.
func stackedTail(body []game.Point) bool {
	n := len(body)
	return n >= 2 && body[n-1] == body[n-2]
}

func hitsBody(p game.Point, body []game.Point) bool {
	for _, b := range body[1:] {
		if b == p {
			return true
		}
	}
	return false
}

// SafeMoves returns the directions that do not immediately leave the board or
// run into any body segment. It ignores what other snakes will do this turn.
func SafeMoves(board *game.Board, id string) []game.Direction {
	you := board.Snake(id)
	if you == nil || you.Health <= 0 || len(you.Body) == 0 {
		return nil
	}

	head := you.Body[0]
	moves := make([]game.Direction, 0, game.NumDirections)
	for _, d := range game.AllDirections {
		if isSafe(board, head.Add(d.Offset())) {
			moves = append(moves, d)
		}
	}
	return moves
}

func isSafe(board *game.Board, p game.Point) bool {
	if !board.InBounds(p) {
		return false
	}
	// Conservative: tails count as occupied because we don't know who eats.
	for _, s := range board.Snakes {
		for _, bp := range s.Body {
			if bp == p {
				return false
			}
		}
	}
	return true
}

// IsGameOver returns true once at most one snake is left.
func IsGameOver(board *game.Board) bool {
	return len(board.Snakes) <= 1
}
