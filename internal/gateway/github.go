// Package gateway provides a gateway to the GitHub API: it builds the pull
// request statistics query, sends it, and decodes the answer.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// Fetch sends a GraphQL query and returns the raw JSON answer.
	Fetch(ctx context.Context, query string) ([]byte, error)
	// ListRepositories returns the active repositories of an organization or user.
	ListRepositories(ctx context.Context, owner string) ([]domain.RepositoryIdentity, error)
}

// Options tune the GitHub client.
type Options struct {
	// BaseURL points the client at a GitHub Enterprise Server, e.g. https://ghe.example.com/.
	BaseURL string
	// RateLimitSleep caps a single sleep on secondary rate limits.
	RateLimitSleep time.Duration
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient *github.Client
	graphqlURL string
	logger     zerolog.Logger
}

type graphqlRequest struct {
	Query string `json:"query"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, opts Options, logger zerolog.Logger) (Fetcher, error) {
	sleepLimit := opts.RateLimitSleep
	if sleepLimit <= 0 {
		sleepLimit = 1 * time.Hour
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(sleepLimit, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlURL := "graphql"
	if opts.BaseURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure GitHub Enterprise URL %q: %w", opts.BaseURL, err)
		}
		graphqlURL = enterpriseGraphQLURL(restClient.BaseURL.String())
	}

	return &GitHubGateway{
		restClient: restClient,
		graphqlURL: graphqlURL,
		logger:     logger,
	}, nil
}

// enterpriseGraphQLURL derives https://host/api/graphql from https://host/api/v3/.
func enterpriseGraphQLURL(restBase string) string {
	return strings.TrimSuffix(restBase, "v3/") + "graphql"
}

// Fetch posts the query to the GraphQL endpoint. Non-2xx answers and network
// failures are returned as *TransportError; the body of a 2xx answer is
// returned untouched, even when it carries GraphQL errors.
func (g *GitHubGateway) Fetch(ctx context.Context, query string) ([]byte, error) {
	req, err := g.restClient.NewRequest(http.MethodPost, g.graphqlURL, graphqlRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL request: %w", err)
	}

	var body bytes.Buffer
	resp, err := g.restClient.Do(ctx, req, &body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	g.logger.Debug().
		Int("status", resp.StatusCode).
		Int("rate_remaining", resp.Rate.Remaining).
		Int("bytes", body.Len()).
		Msg("GraphQL query answered")
	return body.Bytes(), nil
}

// ListRepositories pages through the owner's repositories, skipping archived
// and disabled ones. Organizations are tried first, then users.
func (g *GitHubGateway) ListRepositories(ctx context.Context, owner string) ([]domain.RepositoryIdentity, error) {
	g.logger.Info().Str("owner", owner).Msg("Discovering repositories...")

	repos, err := g.listPages(func(page int) ([]*github.Repository, *github.Response, error) {
		opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100, Page: page}}
		return g.restClient.Repositories.ListByOrg(ctx, owner, opts)
	})
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		g.logger.Debug().Str("owner", owner).Msg("  Owner is not an organization, listing user repositories...")
		repos, err = g.listPages(func(page int) ([]*github.Repository, *github.Response, error) {
			opts := &github.RepositoryListByUserOptions{Type: "owner", ListOptions: github.ListOptions{PerPage: 100, Page: page}}
			return g.restClient.Repositories.ListByUser(ctx, owner, opts)
		})
	}
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to list repositories of %q: %w", owner, err)}
	}

	identities := make([]domain.RepositoryIdentity, 0, len(repos))
	for _, repo := range repos {
		if repo.GetArchived() || repo.GetDisabled() {
			continue
		}
		identities = append(identities, domain.RepositoryIdentity{
			Owner: repo.GetOwner().GetLogin(),
			Name:  repo.GetName(),
		})
	}
	g.logger.Info().Str("owner", owner).Int("repositories", len(identities)).Msg("Completed repository discovery.")
	return identities, nil
}

func (g *GitHubGateway) listPages(list func(page int) ([]*github.Repository, *github.Response, error)) ([]*github.Repository, error) {
	var all []*github.Repository
	page := 0
	for {
		repos, resp, err := list(page)
		if err != nil {
			return nil, err
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
		g.logger.Debug().Int("page", page).Msg("  Fetching next page of repositories...")
	}
	return all, nil
}
