package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/brensch/snekstep/api"
	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
)

// cornered has "me" in the bottom-left corner heading down, so Right is its
// only survivable move.
func cornered() *game.Board {
	return &game.Board{
		Width:  7,
		Height: 7,
		Snakes: []game.Snake{
			{ID: "me", Health: 80, Body: []game.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}}},
			{ID: "them", Health: 80, Body: []game.Point{{X: 6, Y: 6}, {X: 6, Y: 5}, {X: 6, Y: 4}}},
		},
	}
}

func testEngine() *search.Engine {
	cfg := search.DefaultConfig()
	cfg.ThinkTime = 20 * time.Millisecond
	cfg.MinThinkTime = time.Millisecond
	cfg.Seed = 5
	return search.NewEngine(cfg, search.UniformPolicy{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReplayRequestLog(t *testing.T) {
	dir := t.TempDir()
	rl, err := store.NewRequestLog(dir)
	if err != nil {
		t.Fatalf("NewRequestLog: %v", err)
	}
	b := cornered()
	start := api.NewGameRequest("g1", 0, 500*time.Millisecond, b, "me")
	move := api.NewGameRequest("g1", 1, 500*time.Millisecond, b, "me")
	for _, e := range []store.RequestEntry{
		{Kind: store.KindStart, At: time.Now(), Request: start},
		{Kind: store.KindMove, At: time.Now(), Request: move, Move: "right", Score: 300},
		{Kind: store.KindEnd, At: time.Now(), Request: move},
	} {
		if err := rl.Append("g1", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := rl.CloseGame("g1"); err != nil {
		t.Fatalf("CloseGame: %v", err)
	}

	ps, err := loadPositions(rl.PathFor("g1"))
	if err != nil {
		t.Fatalf("loadPositions: %v", err)
	}
	if len(ps) != 1 || ps[0].Turn != 1 || ps[0].YouID != "me" || ps[0].Move != "right" {
		t.Fatalf("positions = %+v", ps)
	}
	if ps[0].Timeout != 500*time.Millisecond {
		t.Fatalf("timeout = %v", ps[0].Timeout)
	}

	engine := testEngine()
	defer engine.Close()
	var out bytes.Buffer
	s := replay(context.Background(), engine, ps, &out, false)
	if s.Positions != 1 {
		t.Fatalf("summary = %+v", s)
	}
	line := out.String()
	if !strings.Contains(line, "recorded right") {
		t.Fatalf("output = %q", line)
	}
	if !strings.Contains(line, "replayed right") {
		t.Fatalf("replayed a fatal move: %q", line)
	}
	if engine.Stats().Games != 0 {
		t.Fatalf("replay games left registered: %d", engine.Stats().Games)
	}
}

func TestReplayArchive(t *testing.T) {
	dir := t.TempDir()
	w, err := store.NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	rows := []store.DecisionRow{
		store.Decision{GameID: "g2", Turn: 4, YouID: "me", Board: cornered(), Move: game.Up, Score: 120, At: time.Now()}.Row(),
		store.Decision{GameID: "g2", Turn: 5, YouID: "me", Board: cornered(), Move: game.Right, Score: 130, At: time.Now()}.Row(),
	}
	if err := w.WriteRows(rows); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	path, _, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	ps, err := loadPositions(path)
	if err != nil {
		t.Fatalf("loadPositions: %v", err)
	}
	if len(ps) != 2 || ps[0].Move != "up" || ps[1].Move != "right" {
		t.Fatalf("positions = %+v", ps)
	}
	if got := filterTurn(ps, 5); len(got) != 1 || got[0].Turn != 5 {
		t.Fatalf("filterTurn = %+v", got)
	}

	engine := testEngine()
	defer engine.Close()
	var out bytes.Buffer
	s := replay(context.Background(), engine, ps, &out, true)
	if s.Positions != 2 || s.Agreed > 2 {
		t.Fatalf("summary = %+v", s)
	}
	if strings.Count(out.String(), "recorded") != 2 {
		t.Fatalf("output = %q", out.String())
	}
}

func TestLoadPositionsRejectsUnknownFiles(t *testing.T) {
	if _, err := loadPositions("game.csv"); err == nil {
		t.Fatalf("csv accepted")
	}
}
