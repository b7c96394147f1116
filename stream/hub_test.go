package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialHub(t *testing.T, h *Hub) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(h.Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := Dial(context.Background(), url)
	if err != nil {
		srv.Close()
		t.Fatalf("Dial: %v", err)
	}
	return c, func() {
		c.Close()
		srv.Close()
	}
}

func TestHubDeliversEvents(t *testing.T) {
	h := NewHub(nil)
	c, done := dialHub(t, h)
	defer done()
	waitFor(t, "watcher registration", func() bool { return h.Clients() == 1 })

	h.Publish(Event{Type: TypeDecision, GameID: "g1", Turn: 7, Move: "up", Score: 99})
	h.Publish(Event{Type: TypeEnd, GameID: "g1", Turn: 8, Result: "won"})

	ev, err := c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Type != TypeDecision || ev.GameID != "g1" || ev.Turn != 7 || ev.Move != "up" || ev.Score != 99 || ev.At.IsZero() {
		t.Fatalf("event = %+v", ev)
	}
	ev, err = c.Next()
	if err != nil || ev.Type != TypeEnd || ev.Result != "won" {
		t.Fatalf("second event = %+v, %v", ev, err)
	}
}

func TestHubDropsForFullWatcher(t *testing.T) {
	h := NewHub(nil)
	// A watcher nobody drains.
	_, w, ok := h.add()
	if !ok {
		t.Fatalf("add failed")
	}
	for i := 0; i < clientBuffer+10; i++ {
		h.Publish(Event{Type: TypeDecision, Turn: i})
	}
	if len(w.out) != clientBuffer {
		t.Fatalf("buffered %d, want %d", len(w.out), clientBuffer)
	}
	if h.Dropped() != 10 {
		t.Fatalf("dropped = %d, want 10", h.Dropped())
	}
}

func TestHubCloseDisconnects(t *testing.T) {
	h := NewHub(nil)
	c, done := dialHub(t, h)
	defer done()
	waitFor(t, "watcher registration", func() bool { return h.Clients() == 1 })

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	go func() { ran <- h.Run(ctx) }()
	cancel()
	if err := <-ran; err != nil {
		t.Fatalf("Run: %v", err)
	}

	_, err := c.Next()
	if err == nil {
		t.Fatalf("expected close after hub shutdown")
	}
	if !Closed(err) {
		t.Fatalf("close was not normal: %v", err)
	}
	if h.Clients() != 0 {
		t.Fatalf("clients after close = %d", h.Clients())
	}
	if _, _, ok := h.add(); ok {
		t.Fatalf("closed hub accepted a watcher")
	}
}
