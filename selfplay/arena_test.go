package selfplay

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/rules"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 7, 7
	cfg.MaxTurns = 8
	cfg.Seed = 3
	cfg.Engine.ThinkTime = 5 * time.Millisecond
	cfg.Engine.MinThinkTime = time.Millisecond
	cfg.Engine.Seed = 11
	cfg.Policy = search.SafePolicy{}
	return cfg
}

func TestInitialBoard(t *testing.T) {
	b, err := InitialBoard(11, 11, 4, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("InitialBoard: %v", err)
	}
	if len(b.Snakes) != 4 {
		t.Fatalf("snakes = %d", len(b.Snakes))
	}
	seen := map[game.Point]bool{}
	for _, s := range b.Snakes {
		if s.Health != rules.FullHealth || len(s.Body) != 3 {
			t.Fatalf("snake %s = %+v", s.ID, s)
		}
		if s.Body[0] != s.Body[1] || s.Body[1] != s.Body[2] {
			t.Fatalf("snake %s not stacked: %v", s.ID, s.Body)
		}
		if !b.InBounds(s.Head()) || seen[s.Head()] {
			t.Fatalf("bad start %v", s.Head())
		}
		seen[s.Head()] = true
	}

	if _, err := InitialBoard(11, 11, 5, nil); err == nil {
		t.Fatalf("five snakes accepted")
	}
	if _, err := InitialBoard(2, 11, 2, nil); err == nil {
		t.Fatalf("tiny board accepted")
	}
}

func TestPlayRunsToLimitOrEnd(t *testing.T) {
	dir := t.TempDir()
	rec, err := store.OpenRecorder(store.RecorderOptions{
		IndexPath: filepath.Join(dir, "index.db"),
		Source:    "selfplay",
	}, quietLogger())
	if err != nil {
		t.Fatalf("OpenRecorder: %v", err)
	}
	defer rec.Close()

	arena := NewArena(fastConfig(), rec, quietLogger())
	turns := 0
	arena.OnTurn = func(u TurnUpdate) {
		if u.Turn != turns {
			t.Errorf("update turn %d, want %d", u.Turn, turns)
		}
		turns++
		if len(u.Moves) != len(u.Board.Snakes) {
			t.Errorf("turn %d: %d moves for %d snakes", u.Turn, len(u.Moves), len(u.Board.Snakes))
		}
		for id := range u.Moves {
			if id != "snake1" && id != "snake2" {
				t.Errorf("unexpected mover %s", id)
			}
		}
	}

	res, err := arena.Play(context.Background())
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.Turns < 1 || res.Turns > 8 || res.Turns != turns {
		t.Fatalf("turns = %d (updates %d)", res.Turns, turns)
	}
	if res.Decisions == 0 {
		t.Fatalf("no decisions made")
	}
	if res.Winner != "" && len(res.Survivors) != 1 {
		t.Fatalf("winner %s with survivors %v", res.Winner, res.Survivors)
	}

	ctx := context.Background()
	if err := rec.Index.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	g, err := rec.Index.Game(ctx, res.GameID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if g.Decisions != res.Decisions || g.Turns != res.Turns || g.Source != "selfplay" {
		t.Fatalf("index summary = %+v, result = %+v", g, res)
	}
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	arena := NewArena(fastConfig(), nil, quietLogger())
	if _, err := arena.Play(ctx); err == nil {
		t.Fatalf("cancelled game returned no error")
	}
}
