package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docsift/internal/api"
	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/export"
	"github.com/dgallion1/docsift/internal/pipeline"
	"github.com/dgallion1/docsift/internal/rules"
	"github.com/dgallion1/docsift/internal/stats"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	heuristics := rules.Default()
	if cfg.HeuristicsFile != "" {
		r, err := rules.Load(cfg.HeuristicsFile)
		if err != nil {
			log.Error("invalid heuristics file", "path", cfg.HeuristicsFile, "error", err)
			os.Exit(1)
		}
		heuristics = r
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize pipeline.
	latency := stats.NewLatency(time.Hour)
	svc := pipeline.NewService(cfg, heuristics, latency, log)
	orch := pipeline.NewOrchestrator(cfg, svc, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, export.New(log), log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docsift", "port", cfg.Port, "workers", cfg.WorkerCount, "auth", cfg.APIKey != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
