// Command selfplay runs local games between engine-driven snakes and records
// every decision through the configured stores.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekstep/config"
	"github.com/brensch/snekstep/game"
	"github.com/brensch/snekstep/logging"
	"github.com/brensch/snekstep/rules"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/selfplay"
	"github.com/brensch/snekstep/store"
	"github.com/brensch/snekstep/stream"
)

func main() {
	configPath := flag.String("config", os.Getenv("SNEK_CONFIG"), "Path to yaml config (optional)")
	games := flag.Int("games", 1, "Games to play; 0 runs until interrupted")
	parallel := flag.Int("parallel", 1, "Games played at once")
	width := flag.Int("width", 11, "Board width")
	height := flag.Int("height", 11, "Board height")
	snakes := flag.Int("snakes", 2, "Snakes per game (1-4)")
	maxTurns := flag.Int("max-turns", 500, "Turn limit per game")
	think := flag.Duration("think", 100*time.Millisecond, "Think time per move")
	minFood := flag.Int("min-food", rules.DefaultFoodSettings.MinimumFood, "Minimum food on the board")
	foodChance := flag.Int("food-chance", rules.DefaultFoodSettings.FoodSpawnChance, "Percent chance of extra food per turn")
	seed := flag.Int64("seed", 0, "Seed for boards and search (0 = random)")
	verbose := flag.Bool("verbose", false, "Log the board every turn")
	watchAddr := flag.String("watch", "", "Serve the watch stream on this address, e.g. :8081")
	archiveDir := flag.String("archive-dir", "", "Parquet decision archive directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *archiveDir != "" {
		cfg.Store.ArchiveDir = *archiveDir
	}
	cfg.Search.ThinkTime = *think
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	recorder, err := store.OpenRecorder(store.RecorderOptions{
		ArchiveDir:    cfg.Store.ArchiveDir,
		FlushRows:     cfg.Store.FlushRows,
		RequestLogDir: cfg.Store.RequestLogDir,
		IndexPath:     cfg.Store.IndexPath,
		Source:        "selfplay",
	}, logger.With("component", "store"))
	if err != nil {
		log.Fatalf("open recorder: %v", err)
	}

	engineCfg := cfg.Search.Engine()
	if *seed != 0 {
		engineCfg.Seed = *seed
	}
	arenaCfg := selfplay.Config{
		Width:    int32(*width),
		Height:   int32(*height),
		Snakes:   *snakes,
		MaxTurns: *maxTurns,
		Food:     rules.FoodSettings{MinimumFood: *minFood, FoodSpawnChance: *foodChance},
		Engine:   engineCfg,
		Policy:   search.PolicyByName(cfg.Search.Policy),
		Seed:     *seed,
		Verbose:  *verbose,
	}

	hub := stream.NewHub(logger.With("component", "stream"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if *watchAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /watch", hub.Handler())
		srv := &http.Server{Addr: *watchAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("watch stream listening", "addr", *watchAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return recorder.Run(ctx, cfg.Store.FlushEvery) })

	var started, finished atomic.Int64
	wins := make(chan string, max(*parallel, 1))
	players, playCtx := errgroup.WithContext(ctx)
	for i := 0; i < max(*parallel, 1); i++ {
		worker := i
		players.Go(func() error {
			wlog := logger.With("worker", worker)
			for {
				n := started.Add(1)
				if *games > 0 && n > int64(*games) {
					return nil
				}
				c := arenaCfg
				if c.Seed != 0 {
					c.Seed += n
				}
				arena := selfplay.NewArena(c, recorder, wlog)
				arena.OnTurn = publishTurn(hub)
				res, err := arena.Play(playCtx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				total := finished.Add(1)
				wlog.Info("finished game", "number", total, "game", res.GameID, "winner", res.Winner, "turns", res.Turns, "decisions", res.Decisions)
				wins <- res.Winner
			}
		})
	}

	tally := map[string]int{}
	done := make(chan error, 1)
	go func() { done <- players.Wait() }()

	startTime := time.Now()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	var playErr error
loop:
	for {
		select {
		case w := <-wins:
			if w == "" {
				w = "draw"
			}
			tally[w]++
		case <-ticker.C:
			n := finished.Load()
			logger.Info("self-play progress", "games", n, "games_per_min", float64(n)/time.Since(startTime).Minutes(), "watchers", hub.Clients())
		case playErr = <-done:
			break loop
		}
	}
	for len(wins) > 0 {
		w := <-wins
		if w == "" {
			w = "draw"
		}
		tally[w]++
	}

	stop()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("supervisor", "err", err)
	}
	if err := recorder.Close(); err != nil {
		logger.Error("close recorder", "err", err)
	}
	if playErr != nil {
		log.Fatalf("self-play: %v", playErr)
	}
	logger.Info("self-play complete", "games", finished.Load(), "results", tally, "elapsed", time.Since(startTime).Round(time.Second))
}

// publishTurn forwards each simulated decision to stream watchers.
func publishTurn(hub *stream.Hub) func(selfplay.TurnUpdate) {
	return func(u selfplay.TurnUpdate) {
		if hub.Clients() == 0 {
			return
		}
		for id, d := range u.Moves {
			hub.Publish(stream.Event{
				Type:     stream.TypeDecision,
				GameID:   u.GameID,
				Turn:     u.Turn,
				YouID:    id,
				Move:     d.Move.String(),
				Score:    d.Score,
				Explored: d.Explored,
				ThinkMs:  float64(d.Think) / float64(time.Millisecond),
				Board:    game.Render(u.Board, id),
			})
		}
	}
}
