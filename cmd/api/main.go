package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funnelboard_backend/internal/board"
	"funnelboard_backend/internal/chatwoot"
	"funnelboard_backend/internal/funnel"
	apphttp "funnelboard_backend/internal/http"
	"funnelboard_backend/internal/http/router"
	"funnelboard_backend/platform/config"
	"funnelboard_backend/platform/logger"
	"funnelboard_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "chatwoot", cfg.ChatwootBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	api := chatwoot.NewClient(cfg, log)
	if api == nil {
		log.Warn("chatwoot credentials not configured; contact endpoints will report missing configuration")
	}

	cache := board.NewCache(cfg, log)
	if cache != nil {
		defer func() {
			_ = cache.Close()
		}()
		log.Info("board cache enabled", "ttl", cfg.GetBoardCacheTTL())
	}

	stageOrder := board.LoadStageOrder(cfg.GetStagesFile(), log)
	if len(stageOrder) > 0 {
		log.Info("stage order loaded", "stages", len(stageOrder))
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	boardModule := board.NewModule(api, cache, stageOrder, log)
	funnelModule := funnel.NewModule(api, cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Modules: []apphttp.Module{
			boardModule,
			funnelModule,
		},
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.New(app),
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}
