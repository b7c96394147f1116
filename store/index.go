package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned when writing to a closed index.
var ErrClosed = errors.New("index closed")

// Index is a sqlite summary of played games and their decisions. Writes go
// through a channel to a single writer goroutine that batches them into
// transactions; reads go straight to the database.
type Index struct {
	db *sql.DB

	ch   chan indexReq
	wg   sync.WaitGroup
	once sync.Once

	// mu keeps senders off ch while Close closes it.
	mu     sync.RWMutex
	closed atomic.Bool
}

type indexKind int

const (
	idxStart indexKind = iota + 1
	idxDecision
	idxEnd
	idxSync
)

type indexReq struct {
	kind indexKind

	gameID string
	youID  string
	source string
	at     time.Time

	turn     int
	move     string
	score    uint32
	explored uint64
	think    time.Duration
	result   string

	done chan struct{}
}

// GameSummary is one row of the games table.
type GameSummary struct {
	ID        string    `json:"id"`
	YouID     string    `json:"you_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Turns     int       `json:"turns"`
	Result    string    `json:"result"`
	Decisions int       `json:"decisions"`
}

// DecisionSummary is one row of the decisions table.
type DecisionSummary struct {
	YouID    string        `json:"you_id"`
	Turn     int           `json:"turn"`
	Move     string        `json:"move"`
	Score    uint32        `json:"score"`
	Explored uint64        `json:"explored"`
	Think    time.Duration `json:"think_ns"`
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initIndex(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	ix := &Index{db: db, ch: make(chan indexReq, 4096)}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.loop()
	}()
	return ix, nil
}

func initIndex(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			you_id TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL DEFAULT 0,
			turns INTEGER NOT NULL DEFAULT 0,
			result TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			game_id TEXT NOT NULL,
			you_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			move TEXT NOT NULL,
			score INTEGER NOT NULL,
			explored INTEGER NOT NULL,
			think_us INTEGER NOT NULL,
			PRIMARY KEY (game_id, you_id, turn)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_games_started ON games(started_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init index: %w", err)
		}
	}
	return nil
}

func (ix *Index) enqueue(r indexReq) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed.Load() {
		return ErrClosed
	}
	ix.ch <- r
	return nil
}

func (ix *Index) GameStarted(gameID, youID, source string, at time.Time) error {
	return ix.enqueue(indexReq{kind: idxStart, gameID: gameID, youID: youID, source: source, at: at})
}

func (ix *Index) Decision(gameID, youID string, turn int, move string, score uint32, explored uint64, think time.Duration) error {
	return ix.enqueue(indexReq{kind: idxDecision, gameID: gameID, youID: youID, turn: turn, move: move, score: score, explored: explored, think: think})
}

func (ix *Index) GameEnded(gameID string, turns int, result string, at time.Time) error {
	return ix.enqueue(indexReq{kind: idxEnd, gameID: gameID, turn: turns, result: result, at: at})
}

// Sync blocks until everything queued so far is committed.
func (ix *Index) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := ix.enqueue(indexReq{kind: idxSync, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ix *Index) Close() error {
	var err error
	ix.once.Do(func() {
		ix.mu.Lock()
		ix.closed.Store(true)
		close(ix.ch)
		ix.mu.Unlock()
		ix.wg.Wait()
		err = ix.db.Close()
	})
	return err
}

func (ix *Index) loop() {
	ctx := context.Background()

	var (
		tx          *sql.Tx
		ops         int
		lastCommit  = time.Now()
		commitEvery = 256
		commitWait  = time.Second
	)
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		ops = 0
		lastCommit = time.Now()
	}

	for r := range ix.ch {
		if r.kind == idxSync {
			commit()
			close(r.done)
			continue
		}
		if tx == nil {
			t, err := ix.db.BeginTx(ctx, nil)
			if err != nil {
				continue
			}
			tx = t
		}

		var err error
		switch r.kind {
		case idxStart:
			_, err = tx.Exec(`INSERT INTO games(id, you_id, source, started_at) VALUES(?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET you_id=excluded.you_id, source=excluded.source`,
				r.gameID, r.youID, r.source, r.at.UnixMilli())
		case idxDecision:
			_, err = tx.Exec(`INSERT OR REPLACE INTO decisions(game_id, you_id, turn, move, score, explored, think_us) VALUES(?,?,?,?,?,?,?)`,
				r.gameID, r.youID, r.turn, r.move, int64(r.score), int64(r.explored), r.think.Microseconds())
		case idxEnd:
			_, err = tx.Exec(`INSERT INTO games(id, you_id, started_at, ended_at, turns, result) VALUES(?,'',?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET ended_at=excluded.ended_at, turns=excluded.turns, result=excluded.result`,
				r.gameID, r.at.UnixMilli(), r.at.UnixMilli(), r.turn, r.result)
		}
		if err != nil {
			_ = tx.Rollback()
			tx = nil
			ops = 0
			continue
		}
		ops++
		if ops >= commitEvery || time.Since(lastCommit) >= commitWait {
			commit()
		}
	}
	commit()
}

// Game loads one game summary with its decision count.
func (ix *Index) Game(ctx context.Context, gameID string) (GameSummary, error) {
	row := ix.db.QueryRowContext(ctx, `SELECT g.id, g.you_id, g.source, g.started_at, g.ended_at, g.turns, g.result,
		(SELECT COUNT(*) FROM decisions d WHERE d.game_id = g.id)
		FROM games g WHERE g.id = ?`, gameID)
	return scanGame(row)
}

// RecentGames returns up to limit games, newest first.
func (ix *Index) RecentGames(ctx context.Context, limit int) ([]GameSummary, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT g.id, g.you_id, g.source, g.started_at, g.ended_at, g.turns, g.result,
		(SELECT COUNT(*) FROM decisions d WHERE d.game_id = g.id)
		FROM games g ORDER BY g.started_at DESC, g.id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameSummary
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Decisions lists a game's decisions in turn order.
func (ix *Index) Decisions(ctx context.Context, gameID string) ([]DecisionSummary, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT you_id, turn, move, score, explored, think_us
		FROM decisions WHERE game_id = ? ORDER BY turn, you_id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionSummary
	for rows.Next() {
		var (
			d               DecisionSummary
			score, explored int64
			thinkUs         int64
		)
		if err := rows.Scan(&d.YouID, &d.Turn, &d.Move, &score, &explored, &thinkUs); err != nil {
			return nil, err
		}
		d.Score = uint32(score)
		d.Explored = uint64(explored)
		d.Think = time.Duration(thinkUs) * time.Microsecond
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (GameSummary, error) {
	var (
		g              GameSummary
		started, ended int64
	)
	if err := s.Scan(&g.ID, &g.YouID, &g.Source, &started, &ended, &g.Turns, &g.Result, &g.Decisions); err != nil {
		return GameSummary{}, err
	}
	g.StartedAt = time.UnixMilli(started)
	if ended > 0 {
		g.EndedAt = time.UnixMilli(ended)
	}
	return g, nil
}
