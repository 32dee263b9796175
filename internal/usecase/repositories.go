package usecase

import (
	"context"
	"fmt"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
)

// ResolveRepositories returns the configured repositories followed by the ones
// discovered for discoverOwner, without duplicates. Discovery is skipped when
// discoverOwner is empty.
func (c *Collector) ResolveRepositories(ctx context.Context, configured []domain.RepositoryIdentity, discoverOwner string) ([]domain.RepositoryIdentity, error) {
	if discoverOwner == "" {
		return configured, nil
	}
	discovered, err := c.fetcher.ListRepositories(ctx, discoverOwner)
	if err != nil {
		return nil, fmt.Errorf("discovering repositories of %q: %w", discoverOwner, err)
	}

	seen := make(map[domain.RepositoryIdentity]bool, len(configured)+len(discovered))
	resolved := make([]domain.RepositoryIdentity, 0, len(configured)+len(discovered))
	for _, repo := range append(append([]domain.RepositoryIdentity{}, configured...), discovered...) {
		if seen[repo] {
			continue
		}
		seen[repo] = true
		resolved = append(resolved, repo)
	}
	c.logger.Info().Int("configured", len(configured)).Int("discovered", len(discovered)).Int("total", len(resolved)).Msg("Resolved repository list")
	return resolved, nil
}
