// Package search runs the speculative tree search that picks a move.
//
// Many worker goroutines share one tree per game. There is no tree-wide lock:
// every mutable field of a Node is its own atomic, so workers touching
// different fields or different nodes never wait on each other.
package search

import (
	"fmt"
	"sync/atomic"

	"github.com/brensch/snekstep/game"
)

// Node is one simulated future board plus its exploration metadata.
type Node struct {
	generation uint32
	board      *game.Board

	score    atomic.Uint32
	explored atomic.Uint64
	historic atomic.Bool
	children [game.NumDirections]atomic.Pointer[Node]
}

// NewNode wraps a board at the given turn depth. The board must not be
// modified afterwards.
func NewNode(generation uint32, board *game.Board) *Node {
	return &Node{generation: generation, board: board}
}

// NewRoot creates a root node. Its score starts at 1 so a fresh root is never
// mistaken for an unscored dead end.
func NewRoot(generation uint32, board *game.Board) *Node {
	n := NewNode(generation, board)
	n.score.Store(1)
	return n
}

func (n *Node) Generation() uint32 { return n.generation }
func (n *Node) Board() *game.Board { return n.board }
func (n *Node) Score() uint32      { return n.score.Load() }
func (n *Node) Explored() uint64   { return n.explored.Load() }
func (n *Node) AddExplored()       { n.explored.Add(1) }

// Historic reports whether this node has been superseded by a newer turn.
func (n *Node) Historic() bool { return n.historic.Load() }

// MarkHistoric is one-way; there is no way to clear it.
func (n *Node) MarkHistoric() { n.historic.Store(true) }

// RaiseScore sets score to max(score, v) and reports whether it changed.
func (n *Node) RaiseScore(v uint32) bool {
	for {
		cur := n.score.Load()
		if cur >= v {
			return false
		}
		if n.score.CompareAndSwap(cur, v) {
			return true
		}
	}
}

// Child returns the child in slot d, or nil.
func (n *Node) Child(d game.Direction) *Node {
	return n.children[d].Load()
}

// Claim installs child into slot d if the slot is empty. When another worker
// got there first the resident child is returned with false and the slot is
// left untouched.
func (n *Node) Claim(d game.Direction, child *Node) (*Node, bool) {
	if child.generation != n.generation+1 {
		panic(fmt.Sprintf("search: claim generation %d under parent %d", child.generation, n.generation))
	}
	if n.children[d].CompareAndSwap(nil, child) {
		return child, true
	}
	return n.children[d].Load(), false
}

// Children snapshots all four slots.
func (n *Node) Children() [game.NumDirections]*Node {
	var out [game.NumDirections]*Node
	for i := range n.children {
		out[i] = n.children[i].Load()
	}
	return out
}

// Saturated reports whether every slot is populated.
func (n *Node) Saturated() bool {
	for i := range n.children {
		if n.children[i].Load() == nil {
			return false
		}
	}
	return true
}

// Backpropagate raises the score of every node on path, walking from the leaf
// (last element) toward the root, and stops at the first node that already
// holds at least score. It returns how many nodes were raised.
func Backpropagate(path []*Node, score uint32) int {
	raised := 0
	for i := len(path) - 1; i >= 0; i-- {
		if !path[i].RaiseScore(score) {
			break
		}
		raised++
	}
	return raised
}

// saturatedExcept reports whether every slot other than skip is populated.
func (n *Node) saturatedExcept(skip game.Direction) bool {
	for _, d := range game.AllDirections {
		if d != skip && n.children[d].Load() == nil {
			return false
		}
	}
	return true
}
