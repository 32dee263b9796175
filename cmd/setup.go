package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-pr-exporter/internal/config"
	"github.com/naka-gawa/github-pr-exporter/internal/domain"
	"github.com/naka-gawa/github-pr-exporter/internal/gateway"
	"github.com/naka-gawa/github-pr-exporter/internal/logging"
	"github.com/naka-gawa/github-pr-exporter/internal/usecase"
)

// app bundles what every command needs once configuration is resolved.
type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	collector *usecase.Collector
	repos     []domain.RepositoryIdentity
}

// setup loads the configuration, builds the logger and the GitHub gateway,
// and resolves the repository list (running discovery when enabled).
func setup(cmd *cobra.Command) (*app, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	cfg.Logging.Output = cmd.ErrOrStderr()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logging.Install(logger)

	// Inject dependencies.
	githubGateway, err := gateway.NewGitHubGateway(cfg.GitHubToken, gateway.Options{
		BaseURL:        cfg.GitHubURL,
		RateLimitSleep: cfg.RateLimitSleep,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	collector := usecase.NewCollector(githubGateway, logger,
		usecase.WithTimeout(cfg.RepoTimeout),
		usecase.WithConcurrency(cfg.Concurrency),
	)

	discoverOwner := ""
	if cfg.Discover {
		discoverOwner = cfg.Owner
	}
	repos, err := collector.ResolveRepositories(cmd.Context(), cfg.Repositories, discoverOwner)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories to collect")
	}

	return &app{cfg: cfg, logger: logger, collector: collector, repos: repos}, nil
}
