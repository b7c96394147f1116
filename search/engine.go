package search

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/snekstep/game"
)

// Config holds engine configuration.
type Config struct {
	WorkersPerGame int
	ExploreDepth   int
	// ThinkTime is how long Decide lets workers run before reading the tree.
	ThinkTime time.Duration
	// MinThinkTime floors the budget when the game timeout is tight.
	MinThinkTime time.Duration
	// LatencyBuffer is subtracted from the game's own timeout.
	LatencyBuffer time.Duration
	// Seed makes worker rngs reproducible when non-zero.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		WorkersPerGame: 2,
		ExploreDepth:   DefaultExploreDepth,
		ThinkTime:      450 * time.Millisecond,
		MinThinkTime:   50 * time.Millisecond,
		LatencyBuffer:  150 * time.Millisecond,
	}
}

// Turn is everything the engine needs from a turn notification.
type Turn struct {
	GameID  string
	Turn    int
	Timeout time.Duration
	Board   *game.Board
	YouID   string
}

// Decision is the outcome of one Decide call.
type Decision struct {
	Move     game.Direction
	Score    uint32
	Explored uint64
	Think    time.Duration
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Games    int
	Sessions int
	Workers  int64
	Nodes    uint64
}

// Engine owns the registry and the worker goroutines for every active game.
type Engine struct {
	cfg      Config
	registry *Registry
	policy   Policy
	log      *slog.Logger

	mu     sync.Mutex
	active map[Session]*crew

	wg       sync.WaitGroup
	workers  atomic.Int64
	nodes    atomic.Uint64
	workerID atomic.Int64
}

func NewEngine(cfg Config, policy Policy, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.WorkersPerGame <= 0 {
		cfg.WorkersPerGame = def.WorkersPerGame
	}
	if cfg.ExploreDepth <= 0 {
		cfg.ExploreDepth = def.ExploreDepth
	}
	if policy == nil {
		policy = UniformPolicy{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		registry: NewRegistry(),
		policy:   policy,
		log:      logger,
		active:   make(map[Session]*crew),
	}
}

func (e *Engine) Registry() *Registry { return e.registry }
func (e *Engine) Config() Config      { return e.cfg }

// Session is the registry key for t.
func (t Turn) Session() Session { return Session{GameID: t.GameID, YouID: t.YouID} }

// Start installs the opening board as the session's root and spawns its
// workers. Every controlled snake in a game is its own session.
func (e *Engine) Start(t Turn) *Node {
	root := NewRoot(uint32(t.Turn), t.Board)
	e.registry.Put(t.Session(), root)
	e.ensureWorkers(t.Session())
	return root
}

// Advance replaces the session's root with the new board without waiting.
// Sessions with no running workers (never started, or every worker failed)
// get workers too.
func (e *Engine) Advance(t Turn) *Node {
	root := NewRoot(uint32(t.Turn), t.Board)
	e.registry.Put(t.Session(), root)
	if e.ensureWorkers(t.Session()) {
		e.log.Warn("move without running workers, starting them", "game", t.GameID, "you", t.YouID, "turn", t.Turn)
	}
	return root
}

// Decide advances to the new board, lets the workers think and returns the
// best explored move. It always returns a move.
func (e *Engine) Decide(ctx context.Context, t Turn) Decision {
	start := time.Now()
	root := e.Advance(t)

	timer := time.NewTimer(e.ThinkBudget(t.Timeout))
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()

	move, score := SelectMove(root)
	return Decision{
		Move:     move,
		Score:    score,
		Explored: root.Explored(),
		Think:    time.Since(start),
	}
}

// ThinkBudget is ThinkTime, shortened to fit the game's timeout minus the
// latency buffer, but never below MinThinkTime.
func (e *Engine) ThinkBudget(gameTimeout time.Duration) time.Duration {
	budget := e.cfg.ThinkTime
	if gameTimeout > 0 {
		if fit := gameTimeout - e.cfg.LatencyBuffer; fit < budget {
			budget = fit
		}
	}
	if budget < e.cfg.MinThinkTime {
		budget = e.cfg.MinThinkTime
	}
	return budget
}

// End forgets every session of the game; their workers stop on their next
// root refresh.
func (e *Engine) End(gameID string) bool {
	e.mu.Lock()
	for s := range e.active {
		if s.GameID == gameID {
			delete(e.active, s)
		}
	}
	e.mu.Unlock()
	return e.registry.RemoveGame(gameID) > 0
}

// Close ends every game and waits for all workers to return.
func (e *Engine) Close() {
	e.mu.Lock()
	e.active = make(map[Session]*crew)
	e.mu.Unlock()
	e.registry.Clear()
	e.wg.Wait()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Games:    len(e.registry.Games()),
		Sessions: e.registry.Len(),
		Workers:  e.workers.Load(),
		Nodes:    e.nodes.Load(),
	}
}

// crew is the set of workers started together for one session.
type crew struct {
	running int
	failed  int
}

// ensureWorkers spawns the session's workers unless some are still running
// and reports whether it spawned any.
func (e *Engine) ensureWorkers(s Session) bool {
	c := &crew{running: e.cfg.WorkersPerGame}
	e.mu.Lock()
	if e.active[s] != nil {
		e.mu.Unlock()
		return false
	}
	e.active[s] = c
	e.mu.Unlock()

	for i := 0; i < e.cfg.WorkersPerGame; i++ {
		id := int(e.workerID.Add(1))
		seed := e.cfg.Seed + int64(id)*1000003
		if e.cfg.Seed == 0 {
			seed += time.Now().UnixNano()
		}
		w := &Worker{
			ID:       id,
			GameID:   s.GameID,
			YouID:    s.YouID,
			Registry: e.registry,
			Policy:   e.policy,
			Depth:    e.cfg.ExploreDepth,
			Rng:      rand.New(rand.NewSource(seed)),
			Logger:   e.log,
			Nodes:    &e.nodes,
		}

		e.wg.Add(1)
		e.workers.Add(1)
		go func() {
			defer e.wg.Done()
			defer e.workers.Add(-1)
			err := w.Run()
			if err != nil {
				e.log.Error("worker stopped", "game", s.GameID, "you", s.YouID, "worker", w.ID, "err", err)
			} else {
				e.log.Debug("worker finished", "game", s.GameID, "you", s.YouID, "worker", w.ID)
			}
			e.workerDone(s, c, err)
		}()
	}
	return true
}

// workerDone releases the session once its last worker returns, so the next
// Advance can start a fresh crew.
func (e *Engine) workerDone(s Session, c *crew, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c.running--
	if err != nil {
		c.failed++
	}
	if c.running > 0 {
		return
	}
	if e.active[s] == c {
		delete(e.active, s)
	}
	if c.failed > 0 && e.registry.has(s) {
		e.log.Error("session has no workers left", "game", s.GameID, "you", s.YouID, "failed", c.failed)
	}
}
