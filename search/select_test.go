package search

import (
	"testing"

	"github.com/brensch/snekstep/game"
)

func scoredChild(parent *Node, d game.Direction, score uint32) {
	c := NewNode(parent.Generation()+1, parent.Board())
	c.RaiseScore(score)
	parent.Claim(d, c)
}

func TestSelectMoveNoChildren(t *testing.T) {
	dir, score := SelectMove(NewRoot(0, testBoard()))
	if dir != game.Right || score != 0 {
		t.Fatalf("got %s/%d, want right/0", dir, score)
	}
	dir, score = SelectMove(nil)
	if dir != game.Right || score != 0 {
		t.Fatalf("nil root: got %s/%d, want right/0", dir, score)
	}
}

func TestSelectMoveHighest(t *testing.T) {
	root := NewRoot(0, testBoard())
	scoredChild(root, game.Right, 10)
	scoredChild(root, game.Down, 40)
	scoredChild(root, game.Up, 30)

	dir, score := SelectMove(root)
	if dir != game.Down || score != 40 {
		t.Fatalf("got %s/%d, want down/40", dir, score)
	}
}

func TestSelectMoveTiesFollowDirectionOrder(t *testing.T) {
	root := NewRoot(0, testBoard())
	scoredChild(root, game.Down, 25)
	scoredChild(root, game.Up, 25)
	scoredChild(root, game.Left, 25)

	dir, _ := SelectMove(root)
	if dir != game.Left {
		t.Fatalf("tie went to %s, want left", dir)
	}
}

func TestSelectMoveDoesNotMutate(t *testing.T) {
	root := NewRoot(0, testBoard())
	scoredChild(root, game.Up, 12)
	before := root.Children()
	SelectMove(root)
	SelectMove(root)
	if root.Children() != before {
		t.Fatalf("children changed")
	}
	if root.Child(game.Up).Score() != 12 || root.Score() != 1 {
		t.Fatalf("scores changed")
	}
}
