// Command snekwatch is a terminal dashboard for a running snek's watch stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/snekstep/stream"
)

const maxRecent = 12

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0080"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boardStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// gameView is the latest known state of one game.
type gameView struct {
	ID        string
	YouID     string
	Turn      int
	Move      string
	Score     uint32
	Explored  uint64
	ThinkMs   float64
	Result    string
	Board     string
	UpdatedAt time.Time
}

type eventMsg stream.Event

type streamErrMsg struct{ err error }

type tickMsg time.Time

type model struct {
	url       string
	events    <-chan stream.Event
	errs      <-chan error
	startTime time.Time

	games     map[string]*gameView
	focus     string
	recent    []string
	decisions int
	explored  uint64
	err       error
}

func initialModel(url string, events <-chan stream.Event, errs <-chan error) model {
	return model{
		url:       url,
		events:    events,
		errs:      errs,
		startTime: time.Now(),
		games:     make(map[string]*gameView),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(events <-chan stream.Event, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-events:
			if !ok {
				return streamErrMsg{err: <-errs}
			}
			return eventMsg(ev)
		case err := <-errs:
			return streamErrMsg{err: err}
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events, m.errs), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.focus = m.nextGame()
		}
	case tickMsg:
		return m, tickCmd()
	case streamErrMsg:
		m.err = msg.err
		return m, nil
	case eventMsg:
		m.apply(stream.Event(msg))
		return m, waitForEvent(m.events, m.errs)
	}
	return m, nil
}

// apply folds one event into the model.
func (m *model) apply(ev stream.Event) {
	g, ok := m.games[ev.GameID]
	if !ok {
		g = &gameView{ID: ev.GameID}
		m.games[ev.GameID] = g
	}
	if m.focus == "" {
		m.focus = ev.GameID
	}
	g.UpdatedAt = ev.At
	if ev.YouID != "" {
		g.YouID = ev.YouID
	}

	var line string
	switch ev.Type {
	case stream.TypeStart:
		line = fmt.Sprintf("%s started", short(ev.GameID))
	case stream.TypeDecision:
		g.Turn = ev.Turn
		g.Move = ev.Move
		g.Score = ev.Score
		g.Explored = ev.Explored
		g.ThinkMs = ev.ThinkMs
		if ev.Board != "" {
			g.Board = ev.Board
		}
		m.decisions++
		m.explored += ev.Explored
		line = fmt.Sprintf("%s t%-4d %-8s %-5s score %-6d explored %d", short(ev.GameID), ev.Turn, ev.YouID, ev.Move, ev.Score, ev.Explored)
	case stream.TypeEnd:
		g.Turn = ev.Turn
		g.Result = ev.Result
		line = fmt.Sprintf("%s ended turn %d: %s", short(ev.GameID), ev.Turn, ev.Result)
	default:
		return
	}
	m.recent = append([]string{line}, m.recent...)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[:maxRecent]
	}
}

func (m model) gameIDs() []string {
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m model) nextGame() string {
	ids := m.gameIDs()
	if len(ids) == 0 {
		return ""
	}
	for i, id := range ids {
		if id == m.focus {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[0]
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("snekwatch") + " " + labelStyle.Render(m.url) + "\n\n")

	elapsed := time.Since(m.startTime)
	perSec := 0.0
	if elapsed >= time.Second {
		perSec = float64(m.decisions) / elapsed.Seconds()
	}
	fmt.Fprintf(&b, "%s %d   %s %d   %s %.2f   %s %d\n",
		labelStyle.Render("games:"), len(m.games),
		labelStyle.Render("decisions:"), m.decisions,
		labelStyle.Render("decisions/s:"), perSec,
		labelStyle.Render("futures:"), m.explored)

	if g, ok := m.games[m.focus]; ok {
		fmt.Fprintf(&b, "\n%s %s  turn %d  move %s  score %d  explored %d  think %.0fms",
			labelStyle.Render("game"), short(g.ID), g.Turn, g.Move, g.Score, g.Explored, g.ThinkMs)
		if g.Result != "" {
			fmt.Fprintf(&b, "  [%s]", g.Result)
		}
		b.WriteString("\n")
		if g.Board != "" {
			b.WriteString(boardStyle.Render(strings.TrimRight(g.Board, "\n")) + "\n")
		}
	}

	b.WriteString("\n" + labelStyle.Render("recent:") + "\n")
	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errStyle.Render("stream closed: "+m.err.Error()) + "\n")
	}
	b.WriteString("\ntab switches game, q quits.\n")
	return b.String()
}

func short(id string) string {
	if len(id) > 18 {
		return id[:18]
	}
	return id
}

func main() {
	url := flag.String("url", "ws://localhost:8080/watch", "Watch stream websocket URL")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := stream.Dial(ctx, *url)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	events := make(chan stream.Event, 64)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			ev, err := client.Next()
			if err != nil {
				errs <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	p := tea.NewProgram(initialModel(*url, events, errs), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}
