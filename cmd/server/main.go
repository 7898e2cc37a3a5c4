package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"personring/internal/people/crypto"
	"personring/internal/people/handler"
	"personring/internal/people/metrics"
	"personring/internal/people/scheduler"
	"personring/internal/people/service"
	"personring/internal/people/store"
	"personring/internal/platform/config"
	"personring/internal/platform/httpserver"
	"personring/internal/platform/logger"
	"personring/internal/platform/middleware"
)

// main wires high-level dependencies, exposes the HTTP router and runs the
// maintenance scheduler alongside the server. Business logic lives in the
// internal/people packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	mem := store.NewMemory(cfg.OnboardingSize)
	m := metrics.New()

	svc, err := service.New(service.Config{
		MaxRingSize:   cfg.MaxRingSize,
		QueuePageSize: cfg.QueuePageSize,
		MergeDivisor:  2,
	}, mem, crypto.NewBlake2Ring(), log, m)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(svc, cfg.StepBudget, log, m)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.ContentTypeJSON)

	handler.New(svc, cfg.AdminToken, log).Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting personring server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sched.Run(ctx, cfg.StepInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
