package game

import (
	"fmt"
	"sort"
	"strings"
)

// Render draws the board top-to-bottom for logs and test output.
// The snake matching youID uses O/o, other heads are letters A.., bodies
// lowercase; F is food, * is food under a body segment.
func Render(b *Board, youID string) string {
	if b == nil {
		return "<nil board>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Size=%dx%d Food(%d):", b.Width, b.Height, len(b.Food))
	for _, f := range b.Food {
		fmt.Fprintf(&sb, " (%d,%d)", f.X, f.Y)
	}
	sb.WriteByte('\n')

	snakes := make([]Snake, len(b.Snakes))
	copy(snakes, b.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].ID < snakes[j].ID })
	for _, s := range snakes {
		fmt.Fprintf(&sb, "Snake %s Health=%d Len=%d Body:", s.ID, s.Health, len(s.Body))
		for _, p := range s.Body {
			fmt.Fprintf(&sb, " (%d,%d)", p.X, p.Y)
		}
		sb.WriteByte('\n')
	}

	w, h := int(b.Width), int(b.Height)
	if w <= 0 || h <= 0 || w > 40 || h > 40 {
		return sb.String()
	}

	grid := make([][]byte, h)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", w))
	}
	for _, f := range b.Food {
		if b.InBounds(f) {
			grid[f.Y][f.X] = 'F'
		}
	}
	for i, s := range b.Snakes {
		head, body := byte('A'+i%26), byte('a'+i%26)
		if s.ID == youID {
			head, body = 'O', 'o'
		}
		// Paint tail first so the head wins on stacked segments.
		for j := len(s.Body) - 1; j >= 0; j-- {
			p := s.Body[j]
			if !b.InBounds(p) {
				continue
			}
			switch {
			case j == 0:
				grid[p.Y][p.X] = head
			case grid[p.Y][p.X] == 'F':
				grid[p.Y][p.X] = '*'
			default:
				grid[p.Y][p.X] = body
			}
		}
	}
	for y := h - 1; y >= 0; y-- {
		sb.Write(grid[y])
		sb.WriteByte('\n')
	}
	return sb.String()
}
