// Command sentinel runs the phishing/scam protection service: the scoring
// engine, the per-tab quarantine state machine and the HTTP/WebSocket API the
// browser-side collaborators talk to.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentineltk/sentinel/internal/app"
	"github.com/sentineltk/sentinel/internal/engine"
	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/reputation"
	"github.com/sentineltk/sentinel/internal/rules"
	"github.com/sentineltk/sentinel/internal/server"
	"github.com/sentineltk/sentinel/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		memoryOnly = flag.Bool("memory", false, "run without persistent storage")
	)
	flag.Parse()

	logger := logging.NewStdoutLogger("sentinel")

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading config", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	var store storage.Store
	if *memoryOnly || cfg.DatabasePath == "" {
		store = storage.NewMemoryStore(cfg.Storage)
		logger.Info("using in-memory store")
	} else {
		store, err = storage.NewSQLiteStore(cfg.DatabasePath, cfg.Storage, logger)
		if err != nil {
			logger.Error("opening database",
				logging.Field{Key: "path", Value: cfg.DatabasePath},
				logging.Field{Key: "error", Value: err.Error()})
			os.Exit(1)
		}
	}
	defer store.Close()

	var lookup interfaces.ReputationLookup = reputation.Noop{}
	if cfg.Reputation.BaseURL != "" {
		client, err := reputation.NewClient(cfg.Reputation, logger, nil)
		if err != nil {
			logger.Error("creating reputation client", logging.Field{Key: "error", Value: err.Error()})
			os.Exit(1)
		}
		lookup = client
	}

	eng, err := engine.NewRiskEngine(cfg.Weights, store, lookup, logger)
	if err != nil {
		logger.Error("creating engine", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	hub := server.NewActionHub(logger)

	// The block-rule platform is host-provided. The service itself has no
	// browser to install rules into, so the standalone daemon records them
	// in memory; a real host wires its own RulePlatform here.
	ruleMgr, err := rules.NewManager(rules.NewMemoryPlatform(), logger)
	if err != nil {
		logger.Error("creating rule manager", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	coordinator, err := app.NewCoordinator(eng, store, ruleMgr, lookup, hub, hub, logger)
	if err != nil {
		logger.Error("creating coordinator", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	srv, err := server.NewServer(server.Config{ListenAddr: cfg.ListenAddr}, coordinator, store, hub, logger)
	if err != nil {
		logger.Error("creating server", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	httpServer := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: cfg.ListenAddr})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", logging.Field{Key: "error", Value: err.Error()})
			os.Exit(1)
		}
	}
}
