package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/brensch/snekstep/api"
)

// Request kinds.
const (
	KindStart = "start"
	KindMove  = "move"
	KindEnd   = "end"
)

// RequestEntry is one line of a game's request log: the payload as received
// and, for moves, what we answered.
type RequestEntry struct {
	Kind     string           `json:"kind"`
	At       time.Time        `json:"at"`
	Request  *api.GameRequest `json:"request"`
	Move     string           `json:"move,omitempty"`
	Score    uint32           `json:"score,omitempty"`
	Explored uint64           `json:"explored,omitempty"`
}

type gameLog struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func (g *gameLog) close() error {
	var errs []error
	if err := g.w.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := g.enc.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := g.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RequestLog keeps one zstd compressed JSONL file per game under dir.
type RequestLog struct {
	dir string

	mu   sync.Mutex
	open map[string]*gameLog
}

func NewRequestLog(dir string) (*RequestLog, error) {
	if dir == "" {
		return nil, fmt.Errorf("request log dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create request log dir: %w", err)
	}
	return &RequestLog{dir: dir, open: make(map[string]*gameLog)}, nil
}

// PathFor is where gameID's log lives.
func (l *RequestLog) PathFor(gameID string) string {
	return filepath.Join(l.dir, sanitize(gameID)+".jsonl.zst")
}

func (l *RequestLog) Append(gameID string, e RequestEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.open[gameID]
	if !ok {
		f, err := os.OpenFile(l.PathFor(gameID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open request log: %w", err)
		}
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("zstd writer: %w", err)
		}
		g = &gameLog{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}
		l.open[gameID] = g
	}

	if _, err := g.w.Write(b); err != nil {
		return err
	}
	if err := g.w.WriteByte('\n'); err != nil {
		return err
	}
	return g.w.Flush()
}

// CloseGame finishes gameID's zstd frame. Later appends start a new frame in
// the same file.
func (l *RequestLog) CloseGame(gameID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.open[gameID]
	if !ok {
		return nil
	}
	delete(l.open, gameID)
	return g.close()
}

func (l *RequestLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.open))
	for id := range l.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := l.open[id].close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(l.open, id)
	}
	return errors.Join(errs...)
}

// ReadRequestLog decodes a .jsonl.zst request log. A truncated final line, as
// left by a crash, is ignored.
func ReadRequestLog(path string) ([]RequestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var entries []RequestEntry
	r := bufio.NewReaderSize(dec, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			var e RequestEntry
			if uerr := json.Unmarshal(line, &e); uerr != nil {
				return entries, fmt.Errorf("entry %d: %w", len(entries), uerr)
			}
			entries = append(entries, e)
		}
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("read %s: %w", path, err)
		}
	}
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
