// Package stream pushes live decision events to websocket watchers.
package stream

import "time"

// Event types.
const (
	TypeStart    = "start"
	TypeDecision = "decision"
	TypeEnd      = "end"
)

// Event is one message on the watch stream.
type Event struct {
	Type   string    `json:"type"`
	GameID string    `json:"game_id"`
	Turn   int       `json:"turn"`
	YouID  string    `json:"you_id,omitempty"`
	At     time.Time `json:"at"`

	Move     string  `json:"move,omitempty"`
	Score    uint32  `json:"score,omitempty"`
	Explored uint64  `json:"explored,omitempty"`
	ThinkMs  float64 `json:"think_ms,omitempty"`
	Result   string  `json:"result,omitempty"`

	// Board is an ASCII rendering of the position the decision was made on.
	Board string `json:"board,omitempty"`
}
