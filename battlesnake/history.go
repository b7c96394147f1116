package main

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const maxGamesLimit = 1000

// gameDetail is the /api/games/{id} body.
type gameDetail struct {
	Game      any `json:"game"`
	Decisions any `json:"decisions"`
}

func (s *Server) historyRoutes(mux *http.ServeMux) {
	if s.recorder == nil || s.recorder.Index == nil {
		return
	}
	mux.HandleFunc("GET /api/games", s.handleGames)
	mux.HandleFunc("GET /api/games/{id}", s.handleGame)
	mux.HandleFunc("GET /api/stats", s.handleStats)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	limit := parseIntQuery(r, "limit", 50)
	if limit > maxGamesLimit {
		limit = maxGamesLimit
	}
	games, err := s.recorder.Index.RecentGames(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, games)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	id := r.PathValue("id")
	g, err := s.recorder.Index.Game(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ds, err := s.recorder.Index.Decisions(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, gameDetail{Game: g, Decisions: ds})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	withCORS(w)
	st := s.engine.Stats()
	writeJSON(w, map[string]any{
		"games":    st.Games,
		"sessions": st.Sessions,
		"workers":  st.Workers,
		"nodes":    st.Nodes,
		"watchers": s.watchers(),
	})
}

func (s *Server) watchers() int {
	if s.hub == nil {
		return 0
	}
	return s.hub.Clients()
}

func withCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
