package exporter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
	"github.com/naka-gawa/github-pr-exporter/internal/usecase"
)

const (
	rootBody     = "Hello World!"
	notFoundBody = "Not found. Only available paths are '/' and '/metrics'"
)

// Collector runs one collection pass.
type Collector interface {
	Collect(ctx context.Context, repos []domain.RepositoryIdentity) (usecase.CollectionResult, error)
}

// Exporter ties a collector to a registry and serves the HTTP surface.
type Exporter struct {
	collector       Collector
	repos           []domain.RepositoryIdentity
	registry        *Registry
	logger          zerolog.Logger
	collectOnScrape bool
}

// NewExporter creates an Exporter. When collectOnScrape is false, /metrics
// only serves what the registry already holds and collection is driven by a Poller.
func NewExporter(collector Collector, repos []domain.RepositoryIdentity, registry *Registry, logger zerolog.Logger, collectOnScrape bool) *Exporter {
	return &Exporter{
		collector:       collector,
		repos:           repos,
		registry:        registry,
		logger:          logger,
		collectOnScrape: collectOnScrape,
	}
}

// CollectOnce runs a collection pass and applies it to the registry.
func (e *Exporter) CollectOnce(ctx context.Context) error {
	start := time.Now()
	result, err := e.collector.Collect(ctx, e.repos)
	e.registry.Update(result)
	e.registry.ObserveCollectionDuration(time.Since(start))
	if err != nil {
		return fmt.Errorf("collection pass interrupted: %w", err)
	}
	e.logger.Info().
		Int("collected", len(result.Records)).
		Int("failed", len(result.Failures)).
		Dur("duration", time.Since(start)).
		Msg("Collection pass complete")
	return nil
}

// Router returns the HTTP handler exposing "/" and "/metrics".
func (e *Exporter) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(e.loggingMiddleware)
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, rootBody)
	})

	metrics := promhttp.HandlerFor(e.registry.Gatherer(), promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if e.collectOnScrape {
			if err := e.CollectOnce(req.Context()); err != nil {
				e.logger.Error().Err(err).Msg("Scrape failed")
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		metrics.ServeHTTP(w, req)
	})
	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, notFoundBody)
}

func (e *Exporter) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		e.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}
