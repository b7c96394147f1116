// Command battlesnake serves the Battlesnake v1 API, answering each move with
// the best branch a speculative tree search found within the turn budget.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekstep/config"
	"github.com/brensch/snekstep/logging"
	"github.com/brensch/snekstep/search"
	"github.com/brensch/snekstep/store"
	"github.com/brensch/snekstep/stream"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configPath := fs.String("config", os.Getenv("SNEK_CONFIG"), "Path to yaml config (optional)")
	listen := fs.String("listen", "", "HTTP listen address (overrides config)")
	workers := fs.Int("workers", 0, "Workers per game (overrides config)")
	think := fs.Duration("think", 0, "Think time per move (overrides config)")
	logFormat := fs.String("log-format", "", "json, pretty or text (overrides config)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides config)")
	validate := fs.Bool("validate", false, "Validate requests against the JSON schema")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parse: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *workers > 0 {
		cfg.Search.WorkersPerGame = *workers
	}
	if *think > 0 {
		cfg.Search.ThinkTime = *think
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *validate {
		cfg.ValidateRequests = true
	}
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
		Source:        "server",
	}, logger.With("component", "store"))
	if err != nil {
		log.Fatalf("open recorder: %v", err)
	}

	engine := search.NewEngine(cfg.Search.Engine(), search.PolicyByName(cfg.Search.Policy), logger.With("component", "search"))
	hub := stream.NewHub(logger.With("component", "stream"))
	server := NewServer(cfg, engine, recorder, hub, logger)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("battlesnake server listening", "addr", cfg.Listen, "workers_per_game", cfg.Search.WorkersPerGame, "think", cfg.Search.ThinkTime, "policy", cfg.Search.Policy, "recording", recorder.Enabled())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return recorder.Run(ctx, cfg.Store.FlushEvery) })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	engine.Close()
	if cerr := recorder.Close(); cerr != nil {
		logger.Error("close recorder", "err", cerr)
	}
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	logger.Info("shut down", "nodes", engine.Stats().Nodes)
}
