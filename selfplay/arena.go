// Package selfplay runs whole games locally, one search engine per snake, on
// a board simulated with the same rules the search uses plus food spawning.
package selfplay

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekstep/api"
	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/rules"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
)

type Config struct {
	Width    int32
	Height   int32
	Snakes   int
	MaxTurns int
	Food     rules.FoodSettings
	Engine   search.Config
	Policy   search.Policy
	// Seed drives board setup and food; zero picks one from the clock.
	Seed    int64
	Verbose bool
}

func DefaultConfig() Config {
	eng := search.DefaultConfig()
	eng.ThinkTime = 100 * time.Millisecond
	return Config{
		Width:    11,
		Height:   11,
		Snakes:   2,
		MaxTurns: 500,
		Food:     rules.DefaultFoodSettings,
		Engine:   eng,
	}
}

type Result struct {
	GameID string
	// Winner is the last snake standing, empty for a draw or when the turn
	// limit was hit with several alive.
	Winner    string
	Turns     int
	Survivors []string
	Decisions int
}

// TurnUpdate is reported after every simulated turn. Board is the position
// the moves were decided on and Next the position they led to.
type TurnUpdate struct {
	GameID string
	Turn   int
	Board  *game.Board
	Next   *game.Board
	Moves  map[string]search.Decision
}

// Arena plays games with the given config.
type Arena struct {
	cfg      Config
	recorder *store.Recorder
	log      *slog.Logger

	// OnTurn, when set, is called after every turn from the Play goroutine.
	OnTurn func(TurnUpdate)
}

func NewArena(cfg Config, recorder *store.Recorder, logger *slog.Logger) *Arena {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Snakes <= 0 {
		cfg.Snakes = def.Snakes
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Arena{cfg: cfg, recorder: recorder, log: logger}
}

// Play runs one game to completion, the turn limit or ctx cancellation.
func (a *Arena) Play(ctx context.Context) (Result, error) {
	seed := a.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	board, err := InitialBoard(a.cfg.Width, a.cfg.Height, a.cfg.Snakes, rng)
	if err != nil {
		return Result{}, err
	}
	rules.SpawnFood(board, rng, rules.FoodSettings{MinimumFood: a.cfg.Food.MinimumFood})

	res := Result{GameID: "selfplay_" + uuid.NewString()}
	log := a.log.With("game", res.GameID)

	engines := make(map[string]*search.Engine, len(board.Snakes))
	for i, s := range board.Snakes {
		ecfg := a.cfg.Engine
		if ecfg.Seed != 0 {
			ecfg.Seed += int64(i) * 7919
		}
		e := search.NewEngine(ecfg, a.cfg.Policy, log.With("snake", s.ID))
		e.Start(search.Turn{GameID: res.GameID, Turn: 0, Board: board, YouID: s.ID})
		engines[s.ID] = e
	}
	defer func() {
		for _, e := range engines {
			e.Close()
		}
	}()

	// The game-level index rows are written from the first snake's seat.
	seat := board.Snakes[0].ID
	a.recorder.Start(api.NewGameRequest(res.GameID, 0, 0, board, seat))
	log.Info("self-play game started", "snakes", len(board.Snakes), "seed", seed)

	turn := 0
	for ; turn < a.cfg.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if a.cfg.Verbose {
			PrintBoard(log, board, turn)
		}
		if rules.IsGameOver(board) {
			break
		}

		decisions, err := a.decideAll(ctx, res.GameID, turn, board, engines)
		if err != nil {
			return res, err
		}
		moves := make(map[string]game.Direction, len(decisions))
		for id, d := range decisions {
			moves[id] = d.Move
		}
		res.Decisions += len(decisions)

		next := rules.Step(board, moves)
		rules.SpawnFood(next, rng, a.cfg.Food)

		for id, e := range engines {
			if next.Snake(id) == nil {
				e.End(res.GameID)
			}
		}
		if a.OnTurn != nil {
			a.OnTurn(TurnUpdate{GameID: res.GameID, Turn: turn, Board: board, Next: next, Moves: decisions})
		}
		board = next
	}

	res.Turns = turn
	for _, s := range board.Snakes {
		res.Survivors = append(res.Survivors, s.ID)
	}
	if len(board.Snakes) == 1 {
		res.Winner = board.Snakes[0].ID
	}
	end := api.NewGameRequest(res.GameID, turn, 0, board, seat)
	end.You.ID = seat
	a.recorder.End(end)
	log.Info("self-play game finished", "turns", res.Turns, "winner", res.Winner, "survivors", len(res.Survivors))
	return res, nil
}

// decideAll asks every living snake's engine for its move in parallel.
func (a *Arena) decideAll(ctx context.Context, gameID string, turn int, board *game.Board, engines map[string]*search.Engine) (map[string]search.Decision, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]search.Decision, len(board.Snakes))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range board.Snakes {
		id := s.ID
		e, ok := engines[id]
		if !ok {
			return nil, fmt.Errorf("no engine for snake %s", id)
		}
		g.Go(func() error {
			req := api.NewGameRequest(gameID, turn, 0, board, id)
			t := search.Turn{GameID: gameID, Turn: turn, Board: req.GameBoard(), YouID: id}
			d := e.Decide(gctx, t)
			a.recorder.Decision(req, store.Decision{
				GameID:   gameID,
				Turn:     turn,
				YouID:    id,
				Board:    t.Board,
				Move:     d.Move,
				Score:    d.Score,
				Explored: d.Explored,
				Think:    d.Think,
			})
			mu.Lock()
			out[id] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// InitialBoard places n snakes (up to four) near the corners with stacked
// length-three bodies and full health.
func InitialBoard(width, height int32, n int, rng *rand.Rand) (*game.Board, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("board %dx%d too small", width, height)
	}
	starts := []game.Point{
		{X: 1, Y: 1},
		{X: width - 2, Y: height - 2},
		{X: 1, Y: height - 2},
		{X: width - 2, Y: 1},
	}
	if n < 1 || n > len(starts) {
		return nil, fmt.Errorf("need 1 to %d snakes, got %d", len(starts), n)
	}
	// The first two seats are opposite corners; swap them so snake1 does not
	// always start bottom-left.
	if rng != nil && rng.Intn(2) == 0 {
		starts[0], starts[1] = starts[1], starts[0]
	}

	b := &game.Board{Width: width, Height: height}
	for i := 0; i < n; i++ {
		p := starts[i]
		b.Snakes = append(b.Snakes, game.Snake{
			ID:     fmt.Sprintf("snake%d", i+1),
			Name:   fmt.Sprintf("snekstep-%d", i+1),
			Health: rules.FullHealth,
			Body:   []game.Point{p, p, p},
		})
	}
	return b, nil
}
