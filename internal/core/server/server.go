package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/config"
	"github.com/mohammed-shakir/csv-geocoder/internal/core/health"
	middleware "github.com/mohammed-shakir/csv-geocoder/internal/core/middleware"
	"github.com/mohammed-shakir/csv-geocoder/internal/core/router"
	"github.com/mohammed-shakir/csv-geocoder/internal/limiter"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Search  router.Processor
	Reverse router.Processor
	Limiter limiter.Limiter
	Ready   health.ReadinessReporter
}

func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())
	r.Use(chimiddleware.StripSlashes)

	r.Get("/healthz", health.Liveness())
	if d.Ready != nil {
		r.Get("/readyz", health.Readiness(d.Ready, cfg.GeocoderTimeout))
	}
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/search/csv", router.HandleCSV(logger, cfg, "/search/csv", d.Search, d.Limiter))
	r.Post("/reverse/csv", router.HandleCSV(logger, cfg, "/reverse/csv", d.Reverse, d.Limiter))
	// legacy alias
	r.Post("/csv", router.HandleCSV(logger, cfg, "/csv", d.Search, d.Limiter))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		// a batch makes one lookup per row
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
