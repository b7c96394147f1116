package game

import (
	"errors"
	"fmt"
)

// Direction is a movement choice. The numeric order is fixed and doubles as
// the child slot index in the search tree; ties are broken in this order.
type Direction int

const (
	Right Direction = iota
	Left
	Up
	Down
)

// NumDirections is the number of movement choices.
const NumDirections = 4

var AllDirections = [NumDirections]Direction{Right, Left, Up, Down}

var (
	// ErrZeroOffset means head and neck overlap, so there is no previous move.
	ErrZeroOffset = errors.New("zero offset")
	// ErrInvalidOffset means head and neck are not one orthogonal step apart.
	ErrInvalidOffset = errors.New("invalid offset")
)

var directionNames = [NumDirections]string{"right", "left", "up", "down"}

func (d Direction) String() string {
	if d < 0 || int(d) >= NumDirections {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

func (d Direction) Offset() Point {
	switch d {
	case Right:
		return Point{X: 1}
	case Left:
		return Point{X: -1}
	case Up:
		return Point{Y: 1}
	case Down:
		return Point{Y: -1}
	}
	return Point{}
}

func (d Direction) Opposite() Direction {
	switch d {
	case Right:
		return Left
	case Left:
		return Right
	case Up:
		return Down
	default:
		return Up
	}
}

// ParseDirection accepts the lowercase wire names.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return Right, fmt.Errorf("unknown direction %q", s)
}

// DirectionFromOffset converts a head-minus-neck offset into the move that
// produced it. A zero offset yields Right together with ErrZeroOffset so the
// caller can warn and carry on; any other non-unit offset is ErrInvalidOffset.
func DirectionFromOffset(offset Point) (Direction, error) {
	switch offset {
	case Point{X: 1}:
		return Right, nil
	case Point{X: -1}:
		return Left, nil
	case Point{Y: 1}:
		return Up, nil
	case Point{Y: -1}:
		return Down, nil
	case Point{}:
		return Right, ErrZeroOffset
	}
	return Right, fmt.Errorf("%w: (%d,%d)", ErrInvalidOffset, offset.X, offset.Y)
}

// LastDirection is the direction the snake moved to reach its current head.
func LastDirection(s *Snake) (Direction, error) {
	return DirectionFromOffset(s.Head().Sub(s.Neck()))
}
