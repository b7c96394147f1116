// Command replay re-decides recorded positions with the current engine and
// prints the recorded move next to the replayed one. It reads request logs
// (.jsonl.zst) and decision archives (.parquet).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/logging"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
)

// position is one recorded decision to replay.
type position struct {
	GameID  string
	Turn    int
	YouID   string
	Board   *game.Board
	Move    string
	Score   uint32
	Timeout time.Duration
}

type summary struct {
	Positions int
	Agreed    int
}

func main() {
	think := flag.Duration("think", 200*time.Millisecond, "Think time per replayed move")
	workers := flag.Int("workers", 2, "Workers per game")
	seed := flag.Int64("seed", 0, "Search seed (0 = random)")
	turn := flag.Int("turn", -1, "Only replay this turn")
	showBoard := flag.Bool("board", false, "Print each board")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatalf("usage: replay [flags] <file.jsonl.zst|file.parquet>...")
	}

	logger, err := logging.New(os.Stderr, "text", *logLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := search.DefaultConfig()
	cfg.ThinkTime = *think
	cfg.WorkersPerGame = *workers
	cfg.Seed = *seed
	engine := search.NewEngine(cfg, search.UniformPolicy{}, logger)
	defer engine.Close()

	var total summary
	for _, path := range flag.Args() {
		positions, err := loadPositions(path)
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}
		if *turn >= 0 {
			positions = filterTurn(positions, *turn)
		}
		s := replay(ctx, engine, positions, os.Stdout, *showBoard)
		total.Positions += s.Positions
		total.Agreed += s.Agreed
		if ctx.Err() != nil {
			break
		}
	}
	if total.Positions > 0 {
		fmt.Printf("\n%d positions, %d agreed (%.1f%%)\n", total.Positions, total.Agreed, 100*float64(total.Agreed)/float64(total.Positions))
	}
}

func loadPositions(path string) ([]position, error) {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		rows, err := store.ReadDecisions(path)
		if err != nil {
			return nil, err
		}
		return fromRows(rows), nil
	case strings.HasSuffix(path, ".jsonl.zst"):
		entries, err := store.ReadRequestLog(path)
		if err != nil {
			return nil, err
		}
		return fromEntries(entries), nil
	default:
		return nil, fmt.Errorf("unknown file type %q", path)
	}
}

func fromEntries(entries []store.RequestEntry) []position {
	var out []position
	for _, e := range entries {
		if e.Kind != store.KindMove || e.Request == nil {
			continue
		}
		out = append(out, position{
			GameID:  e.Request.Game.ID,
			Turn:    e.Request.Turn,
			YouID:   e.Request.You.ID,
			Board:   e.Request.GameBoard(),
			Move:    e.Move,
			Score:   e.Score,
			Timeout: e.Request.Timeout(),
		})
	}
	return out
}

func fromRows(rows []store.DecisionRow) []position {
	out := make([]position, 0, len(rows))
	for _, r := range rows {
		out = append(out, position{
			GameID: r.GameID,
			Turn:   int(r.Turn),
			YouID:  r.YouID,
			Board:  r.Board(),
			Move:   game.Direction(r.Move).String(),
			Score:  uint32(r.Score),
		})
	}
	return out
}

func filterTurn(ps []position, turn int) []position {
	var out []position
	for _, p := range ps {
		if p.Turn == turn {
			out = append(out, p)
		}
	}
	return out
}

// replay re-decides every position in a fresh game of its own so no tree is
// shared with the previous turn.
func replay(ctx context.Context, engine *search.Engine, ps []position, w io.Writer, showBoard bool) summary {
	var s summary
	for i, p := range ps {
		if ctx.Err() != nil {
			break
		}
		id := fmt.Sprintf("replay-%d-%s", i, p.GameID)
		t := search.Turn{GameID: id, Turn: p.Turn, Timeout: p.Timeout, Board: p.Board, YouID: p.YouID}
		engine.Start(t)
		d := engine.Decide(ctx, t)
		engine.End(id)

		s.Positions++
		mark := "!="
		if d.Move.String() == p.Move {
			s.Agreed++
			mark = "=="
		}
		if showBoard {
			fmt.Fprintln(w, game.Render(p.Board, p.YouID))
		}
		fmt.Fprintf(w, "%s turn %-4d %-10s recorded %-5s (%6d) %s replayed %-5s (%6d) explored %d\n",
			p.GameID, p.Turn, p.YouID, p.Move, p.Score, mark, d.Move, d.Score, d.Explored)
	}
	return s
}
