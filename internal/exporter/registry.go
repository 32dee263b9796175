// Package exporter publishes collected pull request metrics in the Prometheus
// text exposition format.
package exporter

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/naka-gawa/github-pr-exporter/internal/usecase"
)

const repositoryLabel = "repository"

// Registry holds the latest sample per repository. Repositories that fail a
// pass keep their previous samples.
type Registry struct {
	mu                 sync.Mutex
	registry           *prom.Registry
	allPullRequests    *prom.GaugeVec
	openPullRequests   *prom.GaugeVec
	oldestOpenAgeDays  *prom.GaugeVec
	lastSuccess        *prom.GaugeVec
	collectionFailures *prom.CounterVec
	collectionDuration prom.Histogram
}

// NewRegistry constructs a Registry backed by its own Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{registry: prom.NewRegistry()}
	r.allPullRequests = prom.NewGaugeVec(prom.GaugeOpts{
		Name: "all_pull_requests",
		Help: "Number of pull requests in any state",
	}, []string{repositoryLabel})
	r.openPullRequests = prom.NewGaugeVec(prom.GaugeOpts{
		Name: "open_pull_requests",
		Help: "Number of open pull requests",
	}, []string{repositoryLabel})
	r.oldestOpenAgeDays = prom.NewGaugeVec(prom.GaugeOpts{
		Name: "oldest_open_pull_request_age_days",
		Help: "Age in whole days of the oldest open pull request",
	}, []string{repositoryLabel})
	r.lastSuccess = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "pr_exporter",
		Name:      "last_collection_success",
		Help:      "Whether the last collection of the repository succeeded (1) or failed (0)",
	}, []string{repositoryLabel})
	r.collectionFailures = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "pr_exporter",
		Name:      "collection_failures_total",
		Help:      "Repository collection failures by kind",
	}, []string{repositoryLabel, "kind"})
	r.collectionDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "pr_exporter",
		Name:      "collection_duration_seconds",
		Help:      "Duration of a full collection pass",
		Buckets:   prom.DefBuckets,
	})
	r.registry.MustRegister(
		r.allPullRequests,
		r.openPullRequests,
		r.oldestOpenAgeDays,
		r.lastSuccess,
		r.collectionFailures,
		r.collectionDuration,
	)
	return r
}

// Gatherer exposes the underlying registry to the encoder.
func (r *Registry) Gatherer() prom.Gatherer {
	return r.registry
}

// Update applies one collection pass. A record without an open pull request
// removes the repository's oldest-age series instead of reporting zero.
func (r *Registry) Update(result usecase.CollectionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range result.Records {
		label := record.Identity.String()
		r.allPullRequests.WithLabelValues(label).Set(float64(record.Metrics.TotalCount))
		r.openPullRequests.WithLabelValues(label).Set(float64(record.Metrics.OpenCount))
		if days, ok := record.Metrics.OldestOpenAgeDays(); ok {
			r.oldestOpenAgeDays.WithLabelValues(label).Set(float64(days))
		} else {
			r.oldestOpenAgeDays.DeleteLabelValues(label)
		}
		r.lastSuccess.WithLabelValues(label).Set(1)
	}
	for _, failure := range result.Failures {
		label := failure.Identity.String()
		r.collectionFailures.WithLabelValues(label, string(failure.Kind)).Inc()
		r.lastSuccess.WithLabelValues(label).Set(0)
	}
}

// ObserveCollectionDuration records how long a pass took.
func (r *Registry) ObserveCollectionDuration(d time.Duration) {
	r.collectionDuration.Observe(d.Seconds())
}
