package search

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sync/atomic"

	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/heuristic"
	"github.com/brensch/snekstep/rules"
)

// DefaultExploreDepth is how many new nodes a worker adds to its path before
// scoring the tip.
const DefaultExploreDepth = 5

// maxStuckBatches is how many consecutive batches may fail to add a node
// before a worker drops its path back to the root.
const maxStuckBatches = 16

// Worker grows one personal path through a session's shared tree, scoring the
// tip after every batch. It runs until the registry no longer has its session.
type Worker struct {
	ID     int
	GameID string
	YouID  string

	Registry *Registry
	Policy   Policy
	Depth    int
	Rng      *rand.Rand
	Logger   *slog.Logger

	// Nodes, when set, counts every node this worker installs.
	Nodes *atomic.Uint64

	warnedZero bool
}

// Run explores until the session leaves the registry (nil error) or something
// goes wrong inside this worker. Failures never reach other workers.
func (w *Worker) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", w.ID, r)
		}
	}()

	if w.Depth <= 0 {
		w.Depth = DefaultExploreDepth
	}
	if w.Policy == nil {
		w.Policy = UniformPolicy{}
	}
	if w.Logger == nil {
		w.Logger = slog.Default()
	}

	var path []*Node
	stuck := 0
	for {
		if len(path) == 0 || path[0].Historic() {
			root, ok := w.Registry.Get(Session{GameID: w.GameID, YouID: w.YouID})
			if !ok {
				return nil
			}
			if root.Historic() {
				// Replaced between lookup and check; look again.
				runtime.Gosched()
				continue
			}
			path = []*Node{root}
			w.warnedZero = false
		}

		var created int
		path, created, err = w.extend(path)
		if err != nil {
			return err
		}
		if created > 0 {
			stuck = 0
			continue
		}
		// Every recent batch died on the first step; start over from the root
		// rather than hammering one hopeless tip.
		if stuck++; stuck >= maxStuckBatches {
			stuck = 0
			path = path[:1]
		}
	}
}

// extend runs one batch: up to Depth new nodes on the end of path, then scores
// the tip and backpropagates. It returns the grown path and how many nodes it
// created.
func (w *Worker) extend(path []*Node) ([]*Node, int, error) {
	tip := path[len(path)-1]
	fresh := false
	created := 0

	for created < w.Depth {
		if path[0].Historic() {
			return path, created, nil
		}
		// A node we walked into that nobody has scored yet (or that scored
		// zero) is left for its owner.
		if !fresh && tip.Score() == 0 {
			break
		}

		you := tip.Board().Snake(w.YouID)
		if you == nil {
			break
		}
		last, err := game.LastDirection(you)
		if errors.Is(err, game.ErrZeroOffset) {
			if !w.warnedZero {
				w.warnedZero = true
				w.Logger.Warn("no previous move, assuming right", "game", w.GameID, "worker", w.ID, "generation", tip.Generation())
			}
		} else if err != nil {
			return path, created, fmt.Errorf("last direction of %s: %w", w.YouID, err)
		}

		dir := w.chooseDirection(last)
		if existing := tip.Child(dir); existing != nil {
			if tip.saturatedExcept(last.Opposite()) {
				path = append(path, existing)
				tip = existing
				fresh = false
				continue
			}
			runtime.Gosched()
			continue
		}

		next := rules.Step(tip.Board(), w.assignMoves(tip.Board(), dir))
		for _, n := range path {
			n.AddExplored()
		}

		// Fatal for us: keep no node, score what we have.
		if next.Snake(w.YouID) == nil {
			break
		}

		child := NewNode(tip.Generation()+1, next)
		if _, ok := tip.Claim(dir, child); !ok {
			runtime.Gosched()
			continue
		}
		if w.Nodes != nil {
			w.Nodes.Add(1)
		}

		path = append(path, child)
		tip = child
		fresh = true
		created++
	}

	score := heuristic.Score(tip.Board(), w.YouID, tip.Generation())
	Backpropagate(path, score)
	return path, created, nil
}

// chooseDirection favours going straight: half the time it keeps last, the
// other half it picks uniformly, and a pick that would reverse onto the neck
// is turned back into straight.
func (w *Worker) chooseDirection(last game.Direction) game.Direction {
	dir := last
	if w.Rng.Intn(2) == 0 {
		dir = game.AllDirections[w.Rng.Intn(game.NumDirections)]
	}
	if dir == last.Opposite() {
		dir = last
	}
	return dir
}

func (w *Worker) assignMoves(board *game.Board, dir game.Direction) map[string]game.Direction {
	moves := make(map[string]game.Direction, len(board.Snakes))
	for i := range board.Snakes {
		s := &board.Snakes[i]
		if s.ID == w.YouID {
			moves[s.ID] = dir
			continue
		}
		moves[s.ID] = w.Policy.Choose(board, s, w.Rng)
	}
	return moves
}
