// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
	"github.com/naka-gawa/github-pr-exporter/internal/gateway"
)

// Failure records why a repository was skipped during a collection pass.
type Failure struct {
	Identity domain.RepositoryIdentity
	Kind     gateway.FailureKind
	Err      error
}

// CollectionResult holds the outcome of one pass. Records and Failures are
// both in configured order.
type CollectionResult struct {
	Records  []domain.RepositoryMetricsRecord
	Failures []Failure
}

// Collector is the use case for collecting pull request metrics.
// It orchestrates the query builder, the gateway and the response parser.
type Collector struct {
	fetcher     gateway.Fetcher
	logger      zerolog.Logger
	now         func() time.Time
	timeout     time.Duration
	concurrency int
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces the clock used to compute pull request ages.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithTimeout bounds each repository's fetch. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Collector) { c.timeout = timeout }
}

// WithConcurrency sets how many repositories are fetched at once.
func WithConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCollector creates a new Collector instance.
func NewCollector(fetcher gateway.Fetcher, logger zerolog.Logger, opts ...Option) *Collector {
	c := &Collector{
		fetcher:     fetcher,
		logger:      logger,
		now:         time.Now,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type outcome struct {
	record  domain.RepositoryMetricsRecord
	failure *Failure
}

// Collect runs one collection pass over repos. A repository that cannot be
// fetched or parsed is logged and reported in Failures; it never stops the
// others. The returned error is only set when ctx ends before the pass does.
func (c *Collector) Collect(ctx context.Context, repos []domain.RepositoryIdentity) (CollectionResult, error) {
	c.logger.Debug().Int("repositories", len(repos)).Msg("Usecase: Starting collection pass...")

	outcomes := make([]outcome, len(repos))
	var eg errgroup.Group
	eg.SetLimit(c.concurrency)
	for i, repo := range repos {
		i, repo := i, repo
		eg.Go(func() error {
			outcomes[i] = c.collectOne(ctx, repo)
			return nil
		})
	}
	_ = eg.Wait()

	result := CollectionResult{Records: make([]domain.RepositoryMetricsRecord, 0, len(repos))}
	for _, o := range outcomes {
		if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
			continue
		}
		result.Records = append(result.Records, o.record)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	c.logger.Debug().
		Int("collected", len(result.Records)).
		Int("failed", len(result.Failures)).
		Msg("Usecase: Collection pass complete.")
	return result, nil
}

func (c *Collector) collectOne(ctx context.Context, repo domain.RepositoryIdentity) outcome {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.fetcher.Fetch(ctx, gateway.BuildPullRequestQuery(repo))
	if err == nil {
		var metrics domain.PullRequestMetrics
		metrics, err = gateway.ParsePullRequestMetrics(raw, c.now())
		if err == nil {
			c.logger.Debug().
				Str("repository", repo.String()).
				Int("all", metrics.TotalCount).
				Int("open", metrics.OpenCount).
				Str("oldest_url", metrics.OldestOpenURL).
				Msg("Collected pull request metrics")
			return outcome{record: domain.RepositoryMetricsRecord{Identity: repo, Metrics: metrics}}
		}
	}

	kind := gateway.Classify(err)
	event := c.logger.Warn().Err(err).Str("repository", repo.String()).Str("kind", string(kind))
	var apiErr *gateway.APIReportedError
	if errors.As(err, &apiErr) {
		event = event.RawJSON("errors", []byte(apiErr.Raw))
	}
	event.Msg("Skipping repository for this collection pass")
	return outcome{failure: &Failure{Identity: repo, Kind: kind, Err: err}}
}
