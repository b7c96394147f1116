package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brensch/snekstep/api"
)

// RecorderOptions selects which sinks to open. Empty paths leave a sink off.
type RecorderOptions struct {
	ArchiveDir    string
	FlushRows     int
	RequestLogDir string
	IndexPath     string
	// Source tags every record, e.g. "server" or "selfplay".
	Source string
}

// Recorder fans game events out to whichever sinks are configured. A nil
// *Recorder is valid and records nothing. Sink failures are logged and never
// returned to the caller.
type Recorder struct {
	Archive  *Archive
	Requests *RequestLog
	Index    *Index

	source string
	log    *slog.Logger
}

func OpenRecorder(opts RecorderOptions, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{source: opts.Source, log: logger}

	var err error
	if opts.ArchiveDir != "" {
		if r.Archive, err = NewArchive(opts.ArchiveDir, opts.FlushRows); err != nil {
			return nil, err
		}
	}
	if opts.RequestLogDir != "" {
		if r.Requests, err = NewRequestLog(opts.RequestLogDir); err != nil {
			return nil, err
		}
	}
	if opts.IndexPath != "" {
		if r.Index, err = OpenIndex(opts.IndexPath); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Enabled reports whether any sink is open.
func (r *Recorder) Enabled() bool {
	return r != nil && (r.Archive != nil || r.Requests != nil || r.Index != nil)
}

func (r *Recorder) Start(req *api.GameRequest) {
	if r == nil {
		return
	}
	now := time.Now()
	if r.Requests != nil {
		r.warn(r.Requests.Append(req.Game.ID, RequestEntry{Kind: KindStart, At: now, Request: req}), "request log", req.Game.ID)
	}
	if r.Index != nil {
		r.warn(r.Index.GameStarted(req.Game.ID, req.You.ID, r.source, now), "index", req.Game.ID)
	}
}

func (r *Recorder) Decision(req *api.GameRequest, d Decision) {
	if r == nil {
		return
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	if d.Source == "" {
		d.Source = r.source
	}
	if r.Requests != nil {
		r.warn(r.Requests.Append(req.Game.ID, RequestEntry{
			Kind:     KindMove,
			At:       d.At,
			Request:  req,
			Move:     d.Move.String(),
			Score:    d.Score,
			Explored: d.Explored,
		}), "request log", req.Game.ID)
	}
	if r.Archive != nil {
		r.warn(r.Archive.Add(d.Row()), "archive", req.Game.ID)
	}
	if r.Index != nil {
		r.warn(r.Index.Decision(d.GameID, d.YouID, d.Turn, d.Move.String(), d.Score, d.Explored, d.Think), "index", req.Game.ID)
	}
}

func (r *Recorder) End(req *api.GameRequest) {
	if r == nil {
		return
	}
	now := time.Now()
	if r.Requests != nil {
		r.warn(r.Requests.Append(req.Game.ID, RequestEntry{Kind: KindEnd, At: now, Request: req}), "request log", req.Game.ID)
		r.warn(r.Requests.CloseGame(req.Game.ID), "request log", req.Game.ID)
	}
	if r.Index != nil {
		r.warn(r.Index.GameEnded(req.Game.ID, req.Turn, req.Result(), now), "index", req.Game.ID)
	}
}

// Flush finalizes the open archive batch.
func (r *Recorder) Flush() {
	if r == nil || r.Archive == nil {
		return
	}
	path, err := r.Archive.Flush()
	if err != nil {
		r.log.Error("archive flush failed", "err", err)
		return
	}
	if path != "" {
		r.log.Info("archive batch written", "path", path)
	}
}

// Run flushes the archive every interval until ctx is done.
func (r *Recorder) Run(ctx context.Context, every time.Duration) error {
	if r == nil || r.Archive == nil || every <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Flush()
		}
	}
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Archive != nil {
		errs = append(errs, r.Archive.Close())
	}
	if r.Requests != nil {
		errs = append(errs, r.Requests.Close())
	}
	if r.Index != nil {
		errs = append(errs, r.Index.Close())
	}
	return errors.Join(errs...)
}

func (r *Recorder) warn(err error, sink, gameID string) {
	if err != nil {
		r.log.Warn("record failed", "sink", sink, "game", gameID, "err", err)
	}
}
