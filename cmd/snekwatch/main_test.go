package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekstep/stream"
)

func TestModelFoldsEvents(t *testing.T) {
	m := initialModel("ws://test/watch", nil, nil)
	now := time.Now()

	m.apply(stream.Event{Type: stream.TypeStart, GameID: "g1", YouID: "me", At: now})
	m.apply(stream.Event{Type: stream.TypeDecision, GameID: "g1", YouID: "me", Turn: 3, Move: "up", Score: 250, Explored: 40, Board: ". . .\n", At: now})
	m.apply(stream.Event{Type: stream.TypeDecision, GameID: "g2", YouID: "me", Turn: 1, Move: "left", Score: 10, Explored: 2, At: now})
	m.apply(stream.Event{Type: stream.TypeEnd, GameID: "g1", Turn: 4, Result: "won", At: now})
	m.apply(stream.Event{Type: "unknown", GameID: "g1"})

	if len(m.games) != 2 {
		t.Fatalf("games = %d, want 2", len(m.games))
	}
	g := m.games["g1"]
	if g.Turn != 4 || g.Move != "up" || g.Score != 250 || g.Result != "won" {
		t.Fatalf("g1 = %+v", g)
	}
	if m.decisions != 2 || m.explored != 42 {
		t.Fatalf("decisions=%d explored=%d", m.decisions, m.explored)
	}
	if len(m.recent) != 4 || !strings.Contains(m.recent[0], "won") {
		t.Fatalf("recent = %q", m.recent)
	}
	if m.focus != "g1" {
		t.Fatalf("focus = %q", m.focus)
	}

	view := m.View()
	for _, want := range []string{"snekwatch", "g1", "score 250", "[won]"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRecentIsBounded(t *testing.T) {
	m := initialModel("", nil, nil)
	for i := 0; i < maxRecent*2; i++ {
		m.apply(stream.Event{Type: stream.TypeDecision, GameID: "g", Turn: i, Move: "right"})
	}
	if len(m.recent) != maxRecent {
		t.Fatalf("recent = %d, want %d", len(m.recent), maxRecent)
	}
}

func TestUpdateHandlesKeysAndErrors(t *testing.T) {
	m := initialModel("", nil, nil)
	m.apply(stream.Event{Type: stream.TypeStart, GameID: "a"})
	m.apply(stream.Event{Type: stream.TypeStart, GameID: "b"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	if m.focus != "b" {
		t.Fatalf("focus after tab = %q, want b", m.focus)
	}

	next, _ = m.Update(streamErrMsg{err: errors.New("gone")})
	m = next.(model)
	if !strings.Contains(m.View(), "stream closed: gone") {
		t.Fatalf("error not shown")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("q did not quit")
	}
}
