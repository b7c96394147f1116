package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brensch/snekstep/api"
	"github.com/brensch/snekstep/config"
	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
	"github.com/brensch/snekstep/stream"
)

const maxRequestBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Server holds the engine and the optional sinks a decision is reported to.
type Server struct {
	engine   *search.Engine
	recorder *store.Recorder
	hub      *stream.Hub
	snake    config.SnakeConfig
	validate bool
	log      *slog.Logger
}

func NewServer(cfg config.Config, engine *search.Engine, recorder *store.Recorder, hub *stream.Hub, logger *slog.Logger) *Server {
	return &Server{
		engine:   engine,
		recorder: recorder,
		hub:      hub,
		snake:    cfg.Snake,
		validate: cfg.ValidateRequests,
		log:      logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /move", s.handleMove)
	mux.HandleFunc("POST /end", s.handleEnd)
	mux.HandleFunc("POST /ping", s.handlePing)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.hub != nil {
		mux.HandleFunc("GET /watch", s.hub.Handler())
	}
	s.historyRoutes(mux)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.InfoResponse{
		APIVersion: "1",
		Author:     s.snake.Author,
		Color:      s.snake.Color,
		Head:       s.snake.Head,
		Tail:       s.snake.Tail,
		Version:    s.snake.Version,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	s.engine.Start(turnOf(req))
	s.recorder.Start(req)
	s.publish(stream.Event{Type: stream.TypeStart, GameID: req.Game.ID, Turn: req.Turn, YouID: req.You.ID})
	s.log.Info("game started", "game", req.Game.ID, "turn", req.Turn, "you", req.You.Name, "snakes", len(req.Board.Snakes))

	writeJSON(w, api.StartResponse{
		Color:    s.snake.Color,
		HeadType: s.snake.Head,
		TailType: s.snake.Tail,
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	turn := turnOf(req)
	d := s.engine.Decide(r.Context(), turn)

	s.recorder.Decision(req, store.Decision{
		GameID:   req.Game.ID,
		Turn:     req.Turn,
		YouID:    req.You.ID,
		Board:    turn.Board,
		Move:     d.Move,
		Score:    d.Score,
		Explored: d.Explored,
		Think:    d.Think,
	})
	s.publish(stream.Event{
		Type:     stream.TypeDecision,
		GameID:   req.Game.ID,
		Turn:     req.Turn,
		YouID:    req.You.ID,
		Move:     d.Move.String(),
		Score:    d.Score,
		Explored: d.Explored,
		ThinkMs:  float64(d.Think.Microseconds()) / 1000,
		Board:    game.Render(turn.Board, req.You.ID),
	})
	s.log.Info("move",
		"game", req.Game.ID,
		"turn", req.Turn,
		"move", d.Move.String(),
		"score", d.Score,
		"explored", d.Explored,
		"think", d.Think,
	)

	writeJSON(w, api.MoveResponse{
		Move:  d.Move.String(),
		Shout: fmt.Sprintf("explored %d futures", d.Explored),
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	known := s.engine.End(req.Game.ID)
	result := req.Result()
	s.recorder.End(req)
	s.publish(stream.Event{Type: stream.TypeEnd, GameID: req.Game.ID, Turn: req.Turn, YouID: req.You.ID, Result: result})
	s.log.Info("game ended", "game", req.Game.ID, "turn", req.Turn, "result", result, "known", known)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Thanks for the game")
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "pong")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Stats()
	writeJSON(w, map[string]any{
		"status":  "ok",
		"games":    st.Games,
		"sessions": st.Sessions,
		"workers":  st.Workers,
		"nodes":    st.Nodes,
	})
}

// decode reads and, when enabled, schema-checks a turn payload. Every failure
// wraps errBadRequest.
func (s *Server) decode(r *http.Request) (*api.GameRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if s.validate {
		if err := api.ValidateGameRequest(body); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	var req api.GameRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", errBadRequest, err)
	}
	if req.Game.ID == "" {
		return nil, fmt.Errorf("%w: missing game id", errBadRequest)
	}
	return &req, nil
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn("rejected request", "path", r.URL.Path, "err", err)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) publish(ev stream.Event) {
	if s.hub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.hub.Publish(ev)
}

func turnOf(req *api.GameRequest) search.Turn {
	return search.Turn{
		GameID:  req.Game.ID,
		Turn:    req.Turn,
		Timeout: req.Timeout(),
		Board:   req.GameBoard(),
		YouID:   req.You.ID,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
