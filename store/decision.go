// Package store persists what the bot saw and decided: a parquet archive of
// decisions, a compressed per-game request log and a sqlite index of games.
package store

import (
	"time"

	"github.com/brensch/snekstep/game"
)

// DecisionRow is one archived decision.
//
// Move uses the engine's direction order: 0=Right, 1=Left, 2=Up, 3=Down.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type DecisionRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	YouID  string `parquet:"you_id,dict"`
	Width  int32  `parquet:"width"`
	Height int32  `parquet:"height"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	Snakes []ArchiveSnake `parquet:"snakes"`

	Move        int32  `parquet:"move"`
	Score       int64  `parquet:"score"`
	Explored    int64  `parquet:"explored"`
	ThinkMicros int64  `parquet:"think_us"`
	DecidedAt   int64  `parquet:"decided_at_ms"`
	Source      string `parquet:"source,dict"`
}

type ArchiveSnake struct {
	ID     string  `parquet:"id,dict"`
	Health int32   `parquet:"health"`
	BodyX  []int32 `parquet:"body_x"`
	BodyY  []int32 `parquet:"body_y"`
}

// Decision is what the server hands the recorder after each move.
type Decision struct {
	GameID   string
	Turn     int
	YouID    string
	Board    *game.Board
	Move     game.Direction
	Score    uint32
	Explored uint64
	Think    time.Duration
	Source   string
	At       time.Time
}

// Row flattens the decision and its board into the archive layout.
func (d Decision) Row() DecisionRow {
	row := DecisionRow{
		GameID:      d.GameID,
		Turn:        int32(d.Turn),
		YouID:       d.YouID,
		Move:        int32(d.Move),
		Score:       int64(d.Score),
		Explored:    int64(d.Explored),
		ThinkMicros: d.Think.Microseconds(),
		DecidedAt:   d.At.UnixMilli(),
		Source:      d.Source,
	}
	if d.Board == nil {
		return row
	}
	row.Width = d.Board.Width
	row.Height = d.Board.Height
	row.FoodX = make([]int32, len(d.Board.Food))
	row.FoodY = make([]int32, len(d.Board.Food))
	for i, f := range d.Board.Food {
		row.FoodX[i], row.FoodY[i] = f.X, f.Y
	}
	row.Snakes = make([]ArchiveSnake, len(d.Board.Snakes))
	for i, s := range d.Board.Snakes {
		as := ArchiveSnake{
			ID:     s.ID,
			Health: s.Health,
			BodyX:  make([]int32, len(s.Body)),
			BodyY:  make([]int32, len(s.Body)),
		}
		for j, p := range s.Body {
			as.BodyX[j], as.BodyY[j] = p.X, p.Y
		}
		row.Snakes[i] = as
	}
	return row
}

// Board rebuilds the archived board.
func (r DecisionRow) Board() *game.Board {
	b := &game.Board{
		Width:  r.Width,
		Height: r.Height,
		Food:   make([]game.Point, len(r.FoodX)),
		Snakes: make([]game.Snake, len(r.Snakes)),
	}
	for i := range r.FoodX {
		b.Food[i] = game.Point{X: r.FoodX[i], Y: r.FoodY[i]}
	}
	for i, s := range r.Snakes {
		body := make([]game.Point, len(s.BodyX))
		for j := range s.BodyX {
			body[j] = game.Point{X: s.BodyX[j], Y: s.BodyY[j]}
		}
		b.Snakes[i] = game.Snake{ID: s.ID, Health: s.Health, Body: body}
	}
	return b
}
