// Package game defines the board snapshot types shared by the simulator,
// the heuristic and the search tree.
//
// Boards are treated as immutable values once built: every simulated turn
// produces a fresh Board via Clone rather than editing one in place, which is
// what lets many search workers read the same snapshot without locking.
package game

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int32
	Y int32
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Snake is one agent on the board. Body is head first, tail last; repeated
// points are legal and encode length that has not unfolded yet.
type Snake struct {
	ID     string
	Name   string
	Health int32
	Body   []Point
	Shout  string
}

func (s *Snake) Head() Point {
	if len(s.Body) == 0 {
		return Point{}
	}
	return s.Body[0]
}

// Neck returns the segment behind the head, or the head itself for a
// single-segment body.
func (s *Snake) Neck() Point {
	if len(s.Body) < 2 {
		return s.Head()
	}
	return s.Body[1]
}

// Board is the complete snapshot needed to simulate one turn.
type Board struct {
	Width  int32
	Height int32
	Food   []Point
	Snakes []Snake
}

func (b *Board) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// SnakeIndex returns the index of the snake with the given id, or -1.
// Indices shift whenever snakes are culled, so callers resolve by id each turn.
func (b *Board) SnakeIndex(id string) int {
	for i := range b.Snakes {
		if b.Snakes[i].ID == id {
			return i
		}
	}
	return -1
}

// Snake returns the snake with the given id, or nil.
func (b *Board) Snake(id string) *Snake {
	if i := b.SnakeIndex(id); i >= 0 {
		return &b.Snakes[i]
	}
	return nil
}

// Clone performs a deep copy of the board.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}

	out := &Board{
		Width:  b.Width,
		Height: b.Height,
	}

	if len(b.Food) > 0 {
		out.Food = make([]Point, len(b.Food))
		copy(out.Food, b.Food)
	}

	if len(b.Snakes) > 0 {
		out.Snakes = make([]Snake, len(b.Snakes))
		for i := range b.Snakes {
			s := b.Snakes[i]
			out.Snakes[i] = Snake{ID: s.ID, Name: s.Name, Health: s.Health, Shout: s.Shout}
			if len(s.Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Body))
				copy(out.Snakes[i].Body, s.Body)
			}
		}
	}

	return out
}
