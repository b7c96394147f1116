// Package api holds the Battlesnake v1 wire types and their conversion to the
// engine's board model.
package api

import (
	"time"

	"github.com/brensch/snekstep/game"
)

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Color      string `json:"color"`
	Head       string `json:"head"`
	Tail       string `json:"tail"`
	Version    string `json:"version"`
}

// StartResponse is the cosmetic record returned from /start.
type StartResponse struct {
	Color    string `json:"color"`
	HeadType string `json:"headType"`
	TailType string `json:"tailType"`
}

type MoveResponse struct {
	Move  string `json:"move"`
	Shout string `json:"shout,omitempty"`
}

type GameRequest struct {
	Game  Game        `json:"game"`
	Turn  int         `json:"turn"`
	Board Board       `json:"board"`
	You   Battlesnake `json:"you"`
}

type Game struct {
	ID      string  `json:"id"`
	Ruleset Ruleset `json:"ruleset"`
	Map     string  `json:"map"`
	Timeout int     `json:"timeout"`
	Source  string  `json:"source"`
}

type Ruleset struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings RulesetSettings `json:"settings"`
}

type RulesetSettings struct {
	FoodSpawnChance     int `json:"foodSpawnChance"`
	MinimumFood         int `json:"minimumFood"`
	HazardDamagePerTurn int `json:"hazardDamagePerTurn"`
}

type Board struct {
	Height  int           `json:"height"`
	Width   int           `json:"width"`
	Food    []Coord       `json:"food"`
	Hazards []Coord       `json:"hazards"`
	Snakes  []Battlesnake `json:"snakes"`
}

type Battlesnake struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Health  int     `json:"health"`
	Body    []Coord `json:"body"`
	Latency string  `json:"latency"`
	Head    Coord   `json:"head"`
	Length  int     `json:"length"`
	Shout   string  `json:"shout"`
	Squad   string  `json:"squad"`
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GameBoard converts the request board. Hazards are not modelled.
func (r *GameRequest) GameBoard() *game.Board {
	b := &game.Board{
		Width:  int32(r.Board.Width),
		Height: int32(r.Board.Height),
		Food:   make([]game.Point, len(r.Board.Food)),
		Snakes: make([]game.Snake, len(r.Board.Snakes)),
	}
	for i, f := range r.Board.Food {
		b.Food[i] = f.Point()
	}
	for i, s := range r.Board.Snakes {
		b.Snakes[i] = s.Snake()
	}
	return b
}

// Timeout is the game's per-move timeout, zero when unset.
func (r *GameRequest) Timeout() time.Duration {
	return time.Duration(r.Game.Timeout) * time.Millisecond
}

// Result reports won, lost or draw from our point of view on a final board.
func (r *GameRequest) Result() string {
	for _, s := range r.Board.Snakes {
		if s.ID == r.You.ID {
			return "won"
		}
	}
	if len(r.Board.Snakes) == 0 {
		return "draw"
	}
	return "lost"
}

func (c Coord) Point() game.Point {
	return game.Point{X: int32(c.X), Y: int32(c.Y)}
}

func FromPoint(p game.Point) Coord {
	return Coord{X: int(p.X), Y: int(p.Y)}
}

func (s Battlesnake) Snake() game.Snake {
	body := make([]game.Point, len(s.Body))
	for i, c := range s.Body {
		body[i] = c.Point()
	}
	return game.Snake{
		ID:     s.ID,
		Name:   s.Name,
		Health: int32(s.Health),
		Body:   body,
		Shout:  s.Shout,
	}
}

func FromSnake(s *game.Snake) Battlesnake {
	body := make([]Coord, len(s.Body))
	for i, p := range s.Body {
		body[i] = FromPoint(p)
	}
	out := Battlesnake{
		ID:     s.ID,
		Name:   s.Name,
		Health: int(s.Health),
		Body:   body,
		Length: len(body),
		Shout:  s.Shout,
	}
	if len(body) > 0 {
		out.Head = body[0]
	}
	return out
}

// NewGameRequest builds the request a game server would send to youID. The
// arena and replay tools use it so they exercise the same conversion path as
// the HTTP server.
func NewGameRequest(gameID string, turn int, timeout time.Duration, b *game.Board, youID string) *GameRequest {
	req := &GameRequest{
		Game: Game{
			ID:      gameID,
			Timeout: int(timeout / time.Millisecond),
			Ruleset: Ruleset{Name: "standard", Version: "v1"},
			Source:  "local",
		},
		Turn:  turn,
		Board: Board{
			Width:   int(b.Width),
			Height:  int(b.Height),
			Food:    make([]Coord, len(b.Food)),
			Hazards: []Coord{},
			Snakes:  make([]Battlesnake, len(b.Snakes)),
		},
	}
	for i, f := range b.Food {
		req.Board.Food[i] = FromPoint(f)
	}
	for i := range b.Snakes {
		req.Board.Snakes[i] = FromSnake(&b.Snakes[i])
		if b.Snakes[i].ID == youID {
			req.You = req.Board.Snakes[i]
		}
	}
	return req
}
