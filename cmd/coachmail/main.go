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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachmail/coachmail/cmd/mainconfig"
	"github.com/coachmail/coachmail/internal/app/bootstrap"
	appconfig "github.com/coachmail/coachmail/internal/config"
	"github.com/coachmail/coachmail/internal/runlock"
	"github.com/coachmail/coachmail/pkg/logging"
)

const defaultWatchInterval = 5 * time.Minute

func main() {
	watch := flag.Bool("watch", false, "keep running, one pass per interval, with health and metrics endpoints")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger, err := logging.NewWithFile(cfg.LogLevel, cfg.LogDir())
	if err != nil {
		logger.Warn("file logging unavailable, using stdout only", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine, err := bootstrap.Build(ctx, cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if !*watch {
		if err := runOnce(ctx, engine, logger); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	interval := cfg.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	srv := startHTTP(cfg, engine, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("watch mode started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runOnce(ctx, engine, logger); err != nil && !errors.Is(err, context.Canceled) {
			// Keep watching; the next pass may succeed.
			logger.Error("run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
		}
	}
}

// runOnce executes one correspondence pass under the run lock when one is
// configured.
func runOnce(ctx context.Context, engine *bootstrap.Engine, logger *logging.Logger) error {
	if engine.Lock != nil {
		if err := engine.Lock.Acquire(ctx); err != nil {
			if errors.Is(err, runlock.ErrHeld) {
				logger.Warn("another instance is processing this account, skipping pass")
				return nil
			}
			return err
		}
		defer func() {
			if err := engine.Lock.Release(context.Background()); err != nil {
				logger.Error("failed to release run lock", "error", err)
			}
		}()
	}
	_, err := engine.Coordinator.Run(ctx)
	return err
}

func startHTTP(cfg *appconfig.Config, engine *bootstrap.Engine, logger *logging.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(engine.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
	}()
	return srv
}
