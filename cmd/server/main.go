// Command server starts the HH auto-apply HTTP server and scheduler.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	boardhh "github.com/fairyhunter13/hh-autopilot/internal/adapter/board/hh"
	rediscache "github.com/fairyhunter13/hh-autopilot/internal/adapter/cache/redis"
	"github.com/fairyhunter13/hh-autopilot/internal/adapter/httpserver"
	"github.com/fairyhunter13/hh-autopilot/internal/adapter/llm"
	"github.com/fairyhunter13/hh-autopilot/internal/adapter/observability"
	"github.com/fairyhunter13/hh-autopilot/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/hh-autopilot/internal/app"
	"github.com/fairyhunter13/hh-autopilot/internal/config"
	"github.com/fairyhunter13/hh-autopilot/internal/domain"
	"github.com/fairyhunter13/hh-autopilot/internal/service/scheduler"
	"github.com/fairyhunter13/hh-autopilot/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracing, err := observability.SetupTracing(cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	rdb, err := rediscache.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	settingsRepo := postgres.NewSettingsRepo(pool)
	runsRepo := postgres.NewRunRepo(pool)
	appsRepo := postgres.NewApplicationRepo(pool)
	tokensRepo := postgres.NewTokenRepo(pool)
	autoReplyRepo := postgres.NewAutoReplyRepo(pool)
	vacancyCache := rediscache.NewVacancyCache(rdb)
	stateStore := rediscache.NewOAuthStateStore(rdb)

	oauth := boardhh.NewOAuth(cfg.HHTokenURL, cfg.HHClientID, cfg.HHClientSecret, cfg.HHRedirectURI, cfg.BoardRequestTimeout)
	board := boardhh.NewClient(boardhh.Config{
		BaseURL:        cfg.HHBaseURL,
		RequestTimeout: cfg.BoardRequestTimeout,
		MinInterval:    cfg.BoardMinInterval,
	}, tokensRepo, oauth, logger)

	var provider domain.LLMProvider
	switch cfg.LLMProvider {
	case "stub":
		provider = llm.NewStub()
	default:
		provider = llm.NewOllama(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.LLMTimeout, logger)
	}

	applier := usecase.NewApplier(board, appsRepo, provider, "hh.ru", logger)
	pipeline := usecase.NewPipeline(board, vacancyCache, applier, logger)

	sched := scheduler.New(settingsRepo, runsRepo, pipeline, logger)
	if cfg.SchedulerEnabled && cfg.SchedulerAutoStart {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := &httpserver.Server{
		Cfg:          cfg,
		Scheduler:    sched,
		Applier:      applier,
		Pipeline:     pipeline,
		Board:        board,
		OAuth:        oauth,
		Tokens:       tokensRepo,
		States:       stateStore,
		AutoReply:    autoReplyRepo,
		AuthorizeURL: oauth.AuthorizeURL,
		OnTokenSaved: board.InvalidateToken,
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      app.BuildRouter(cfg, srv),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown", slog.Any("error", err))
		}
	}
	return nil
}
