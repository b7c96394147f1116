package search

import (
	"sort"
	"sync"
)

// Session is one controlled snake in one game. Each session has its own tree,
// scored from that snake's point of view.
type Session struct {
	GameID string
	YouID  string
}

func (s Session) String() string { return s.GameID + "/" + s.YouID }

// Registry maps a session to the root of its current tree. Replacing or
// removing a root marks the old one historic so workers still walking it
// notice and move on.
type Registry struct {
	mu    sync.Mutex
	roots map[Session]*Node
}

func NewRegistry() *Registry {
	return &Registry{roots: make(map[Session]*Node)}
}

// Put installs root for s and returns the root it replaced, if any.
func (r *Registry) Put(s Session, root *Node) *Node {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.roots[s]
	if prev != nil {
		prev.MarkHistoric()
	}
	r.roots[s] = root
	return prev
}

func (r *Registry) Get(s Session) (*Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	root, ok := r.roots[s]
	return root, ok
}

func (r *Registry) has(s Session) bool {
	_, ok := r.Get(s)
	return ok
}

// Remove drops s and reports whether it was present.
func (r *Registry) Remove(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	root, ok := r.roots[s]
	if !ok {
		return false
	}
	root.MarkHistoric()
	delete(r.roots, s)
	return true
}

// RemoveGame drops every session of gameID and returns how many there were.
func (r *Registry) RemoveGame(gameID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for s, root := range r.roots {
		if s.GameID != gameID {
			continue
		}
		root.MarkHistoric()
		delete(r.roots, s)
		n++
	}
	return n
}

// Len is the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roots)
}

// Games returns the distinct active game ids in sorted order.
func (r *Registry) Games() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.roots))
	ids := make([]string, 0, len(r.roots))
	for s := range r.roots {
		if seen[s.GameID] {
			continue
		}
		seen[s.GameID] = true
		ids = append(ids, s.GameID)
	}
	sort.Strings(ids)
	return ids
}

// Clear removes every session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s, root := range r.roots {
		root.MarkHistoric()
		delete(r.roots, s)
	}
}
