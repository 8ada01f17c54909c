// Package server wires the HTTP router and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/quadkey-index/internal/core/config"
	"github.com/mohammed-shakir/quadkey-index/internal/core/health"
	middleware "github.com/mohammed-shakir/quadkey-index/internal/core/middleware"
	"github.com/mohammed-shakir/quadkey-index/internal/core/router"
)

// NewHandler builds the full route tree. ready may be nil when no store is configured;
// /readyz then always reports ready.
func NewHandler(cfg config.Config, logger *slog.Logger, h *router.Handlers, ready health.Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	if ready == nil {
		ready = alwaysReady{}
	}
	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready, cfg.CacheOpTimeout))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	h.Mount(r)
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type alwaysReady struct{}

func (alwaysReady) Ping(context.Context) error { return nil }
