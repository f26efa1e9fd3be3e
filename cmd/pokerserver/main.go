// Package main provides the poker server binary: an HTTP listener serving the
// room listing plus the websocket endpoint for live estimation sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/scrumpoker/internal/config"
	"github.com/cory-johannsen/scrumpoker/internal/gateway"
	"github.com/cory-johannsen/scrumpoker/internal/httpapi"
	"github.com/cory-johannsen/scrumpoker/internal/observability"
	"github.com/cory-johannsen/scrumpoker/internal/room"
	"github.com/cory-johannsen/scrumpoker/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	store := room.NewStore()
	gw := gateway.New(store, cfg.WebSocket, logger)
	router := httpapi.NewRouter(store, gw, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening",
				zap.String("addr", cfg.Server.Addr()),
			)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	sweeper := room.NewSweeper(store, cfg.Rooms.SweepInterval, cfg.Rooms.InactiveAfter, logger)
	lifecycle.Add("sweeper", sweeper)

	logger.Info("poker server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("sweep_interval", cfg.Rooms.SweepInterval),
		zap.Duration("inactive_after", cfg.Rooms.InactiveAfter),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
