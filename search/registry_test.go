package search

import (
	"testing"
)

func TestRegistryPutMarksPreviousHistoric(t *testing.T) {
	r := NewRegistry()
	first := NewRoot(0, testBoard())
	second := NewRoot(1, testBoard())
	s := Session{GameID: "g1", YouID: "me"}

	if prev := r.Put(s, first); prev != nil {
		t.Fatalf("unexpected previous root")
	}
	if prev := r.Put(s, second); prev != first {
		t.Fatalf("Put should return the replaced root")
	}
	if !first.Historic() {
		t.Fatalf("replaced root not historic")
	}
	if second.Historic() {
		t.Fatalf("current root historic")
	}
	got, ok := r.Get(s)
	if !ok || got != second {
		t.Fatalf("Get returned %v/%v", got, ok)
	}
}

func TestRegistrySeatsAreIndependent(t *testing.T) {
	r := NewRegistry()
	a := NewRoot(0, testBoard())
	b := NewRoot(0, testBoard())
	r.Put(Session{GameID: "g1", YouID: "a"}, a)
	r.Put(Session{GameID: "g1", YouID: "b"}, b)

	if a.Historic() {
		t.Fatalf("second seat replaced the first seat's root")
	}
	if got, _ := r.Get(Session{GameID: "g1", YouID: "a"}); got != a {
		t.Fatalf("seat a root = %v", got)
	}
	if r.Len() != 2 || len(r.Games()) != 1 {
		t.Fatalf("len = %d, games = %v", r.Len(), r.Games())
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	root := NewRoot(0, testBoard())
	s := Session{GameID: "g1", YouID: "me"}
	r.Put(s, root)

	if !r.Remove(s) {
		t.Fatalf("Remove of present session returned false")
	}
	if !root.Historic() {
		t.Fatalf("removed root not historic")
	}
	if r.Remove(s) {
		t.Fatalf("second Remove returned true")
	}
	if _, ok := r.Get(s); ok {
		t.Fatalf("session still present")
	}
}

func TestRegistryRemoveGameDropsEverySeat(t *testing.T) {
	r := NewRegistry()
	a := NewRoot(0, testBoard())
	b := NewRoot(0, testBoard())
	other := NewRoot(0, testBoard())
	r.Put(Session{GameID: "g1", YouID: "a"}, a)
	r.Put(Session{GameID: "g1", YouID: "b"}, b)
	r.Put(Session{GameID: "g2", YouID: "a"}, other)

	if n := r.RemoveGame("g1"); n != 2 {
		t.Fatalf("RemoveGame = %d, want 2", n)
	}
	if !a.Historic() || !b.Historic() || other.Historic() {
		t.Fatalf("historic flags a=%v b=%v other=%v", a.Historic(), b.Historic(), other.Historic())
	}
	if r.RemoveGame("g1") != 0 {
		t.Fatalf("second RemoveGame found seats")
	}
	if games := r.Games(); len(games) != 1 || games[0] != "g2" {
		t.Fatalf("games = %v", games)
	}
}

func TestRegistryGamesAndClear(t *testing.T) {
	r := NewRegistry()
	roots := map[string]*Node{}
	for _, id := range []string{"c", "a", "b"} {
		roots[id] = NewRoot(0, testBoard())
		r.Put(Session{GameID: id, YouID: "me"}, roots[id])
	}
	games := r.Games()
	if len(games) != 3 || games[0] != "a" || games[2] != "c" {
		t.Fatalf("games = %v", games)
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len after clear = %d", r.Len())
	}
	for id, root := range roots {
		if !root.Historic() {
			t.Fatalf("root %s not historic after clear", id)
		}
	}
}
