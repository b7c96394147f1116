package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brensch/snekstep/api"
	"github.com/brensch/snekstep/config"
	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
	"github.com/brensch/snekstep/stream"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv    *httptest.Server
	engine *search.Engine
	hub    *stream.Hub
	rec    *store.Recorder
}

func newTestEnv(t *testing.T, mutate func(*config.Config), rec *store.Recorder) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Search.ThinkTime = 30 * time.Millisecond
	cfg.Search.MinThinkTime = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	engine := search.NewEngine(cfg.Search.Engine(), search.SafePolicy{}, quietLogger())
	hub := stream.NewHub(quietLogger())
	s := NewServer(cfg, engine, rec, hub, quietLogger())
	env := &testEnv{srv: httptest.NewServer(s.Routes()), engine: engine, hub: hub, rec: rec}
	t.Cleanup(func() {
		hub.Close()
		env.srv.Close()
		engine.Close()
	})
	return env
}

// wallBoard has us heading left into the west wall.
func wallBoard() *game.Board {
	return &game.Board{
		Width:  11,
		Height: 11,
		Food:   []game.Point{{X: 8, Y: 8}},
		Snakes: []game.Snake{
			{ID: "me", Name: "snekstep", Health: 90, Body: []game.Point{{X: 0, Y: 5}, {X: 1, Y: 5}, {X: 2, Y: 5}}},
			{ID: "them", Name: "other", Health: 90, Body: []game.Point{{X: 9, Y: 1}, {X: 9, Y: 0}, {X: 10, Y: 0}}},
		},
	}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		if raw, err = json.Marshal(b); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resp, err := http.Get(env.srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	var info api.InfoResponse
	if err := json.Unmarshal(readBody(t, resp), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.APIVersion != "1" || info.Color != "#FF0080" {
		t.Fatalf("info = %+v", info)
	}

	resp, err = http.Get(env.srv.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", resp.StatusCode)
	}
}

func TestGameLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	req := api.NewGameRequest("g1", 0, 500*time.Millisecond, wallBoard(), "me")

	resp := env.post(t, "/start", req)
	var start api.StartResponse
	if err := json.Unmarshal(readBody(t, resp), &start); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if start.Color != "#FF0080" || start.HeadType != "safe" || start.TailType != "block-bum" {
		t.Fatalf("start = %+v", start)
	}
	if env.engine.Stats().Games != 1 {
		t.Fatalf("engine not tracking game after start")
	}

	req.Turn = 1
	resp = env.post(t, "/move", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move status = %d", resp.StatusCode)
	}
	var move api.MoveResponse
	if err := json.Unmarshal(readBody(t, resp), &move); err != nil {
		t.Fatalf("decode move: %v", err)
	}
	if move.Move != "up" && move.Move != "down" {
		t.Fatalf("move = %q, want up or down", move.Move)
	}
	if !strings.HasPrefix(move.Shout, "explored ") {
		t.Fatalf("shout = %q", move.Shout)
	}

	resp = env.post(t, "/end", req)
	if got := string(readBody(t, resp)); got != "Thanks for the game" {
		t.Fatalf("end body = %q", got)
	}
	if env.engine.Stats().Games != 0 {
		t.Fatalf("game still registered after end")
	}
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.ValidateRequests = true }, nil)

	cases := map[string]string{
		"malformed":    `{"game":`,
		"no game id":   `{"game":{"id":""},"turn":0,"board":{"width":11,"height":11,"snakes":[]},"you":{"id":"me","health":10,"body":[{"x":0,"y":0}]}}`,
		"schema fails": `{"game":{"id":"g"},"turn":-1,"board":{"width":11,"height":11,"snakes":[]},"you":{"id":"me","health":10,"body":[{"x":0,"y":0}]}}`,
	}
	for name, body := range cases {
		for _, path := range []string{"/start", "/move", "/end"} {
			resp := env.post(t, path, body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("%s %s: status %d, want 400", name, path, resp.StatusCode)
			}
		}
	}

	resp, err := http.Get(env.srv.URL + "/move")
	if err != nil {
		t.Fatalf("GET /move: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /move status = %d", resp.StatusCode)
	}
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resp := env.post(t, "/ping", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping status = %d", resp.StatusCode)
	}
	if body := string(readBody(t, resp)); body != "pong" {
		t.Fatalf("ping body = %q, want pong", body)
	}

	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	if err := json.Unmarshal(readBody(t, resp), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("health = %v", health)
	}
}

func TestWatchStreamsDecisions(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/watch"
	c, err := stream.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	deadline := time.Now().Add(5 * time.Second)
	for env.hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("watcher never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	req := api.NewGameRequest("g1", 5, 500*time.Millisecond, wallBoard(), "me")
	env.post(t, "/move", req).Body.Close()

	ev, err := c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Type != stream.TypeDecision || ev.GameID != "g1" || ev.Turn != 5 || ev.Board == "" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestMovesAreRecorded(t *testing.T) {
	dir := t.TempDir()
	rec, err := store.OpenRecorder(store.RecorderOptions{
		RequestLogDir: filepath.Join(dir, "requests"),
		IndexPath:     filepath.Join(dir, "index.db"),
		Source:        "server",
	}, quietLogger())
	if err != nil {
		t.Fatalf("OpenRecorder: %v", err)
	}
	defer rec.Close()
	env := newTestEnv(t, nil, rec)

	req := api.NewGameRequest("g1", 0, 500*time.Millisecond, wallBoard(), "me")
	env.post(t, "/start", req).Body.Close()
	req.Turn = 1
	env.post(t, "/move", req).Body.Close()
	req.Turn = 2
	env.post(t, "/move", req).Body.Close()
	env.post(t, "/end", req).Body.Close()

	ctx := context.Background()
	if err := rec.Index.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	g, err := rec.Index.Game(ctx, "g1")
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if g.Decisions != 2 || g.Turns != 2 || g.Source != "server" {
		t.Fatalf("summary = %+v", g)
	}
	entries, err := store.ReadRequestLog(rec.Requests.PathFor("g1"))
	if err != nil {
		t.Fatalf("ReadRequestLog: %v", err)
	}
	if len(entries) != 4 || entries[1].Kind != store.KindMove || entries[1].Move == "" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	dir := t.TempDir()
	rec, err := store.OpenRecorder(store.RecorderOptions{
		IndexPath: filepath.Join(dir, "index.db"),
		Source:    "server",
	}, quietLogger())
	if err != nil {
		t.Fatalf("OpenRecorder: %v", err)
	}
	defer rec.Close()
	env := newTestEnv(t, nil, rec)

	req := api.NewGameRequest("hist-1", 0, 500*time.Millisecond, wallBoard(), "me")
	env.post(t, "/start", req).Body.Close()
	req.Turn = 1
	env.post(t, "/move", req).Body.Close()
	if err := rec.Index.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	resp, err := http.Get(env.srv.URL + "/api/games?limit=5")
	if err != nil {
		t.Fatalf("GET games: %v", err)
	}
	var games []store.GameSummary
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		t.Fatalf("decode games: %v", err)
	}
	resp.Body.Close()
	if len(games) != 1 || games[0].ID != "hist-1" || games[0].Decisions != 1 {
		t.Fatalf("games = %+v", games)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	resp, err = http.Get(env.srv.URL + "/api/games/hist-1")
	if err != nil {
		t.Fatalf("GET game: %v", err)
	}
	var detail struct {
		Game      store.GameSummary       `json:"game"`
		Decisions []store.DecisionSummary `json:"decisions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		t.Fatalf("decode game: %v", err)
	}
	resp.Body.Close()
	if detail.Game.ID != "hist-1" || len(detail.Decisions) != 1 || detail.Decisions[0].Turn != 1 {
		t.Fatalf("detail = %+v", detail)
	}

	resp, err = http.Get(env.srv.URL + "/api/games/nope")
	if err != nil {
		t.Fatalf("GET missing game: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing game status = %d", resp.StatusCode)
	}

	resp, err = http.Get(env.srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()
	if stats["games"].(float64) != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestHistoryDisabledWithoutIndex(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	resp, err := http.Get(env.srv.URL + "/api/games")
	if err != nil {
		t.Fatalf("GET games: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
