package gateway

import (
	"fmt"
	"strings"

	"github.com/shurcooL/githubv4"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
)

// Aliases under which each sub-query result appears in the response.
const (
	repositoryAlias = "pullRequests"
	allAlias        = "all"
	openAlias       = "open"
	oldestAlias     = "oldest"
)

// allPullRequestsFragment counts every pull request regardless of state.
func allPullRequestsFragment() string {
	return fmt.Sprintf(`%s: pullRequests {
      totalCount
    }`, allAlias)
}

// openPullRequestsFragment counts open pull requests only.
func openPullRequestsFragment() string {
	return fmt.Sprintf(`%s: pullRequests(states: %s) {
      totalCount
    }`, openAlias, githubv4.PullRequestStateOpen)
}

// oldestOpenPullRequestFragment fetches the single oldest open pull request.
func oldestOpenPullRequestFragment() string {
	return fmt.Sprintf(`%s: pullRequests(
      orderBy: {field: %s, direction: %s}
      states: %s
      first: 1
    ) {
      edges {
        node {
          createdAt
          url
        }
      }
    }`, oldestAlias, githubv4.PullRequestOrderFieldCreatedAt, githubv4.OrderDirectionAsc, githubv4.PullRequestStateOpen)
}

// BuildPullRequestQuery assembles the GraphQL query for one repository.
// Owner and name are expected to be non-empty.
func BuildPullRequestQuery(repo domain.RepositoryIdentity) string {
	var b strings.Builder
	b.WriteString("query RepoStats {\n")
	fmt.Fprintf(&b, "  %s: repository(owner: %q, name: %q) {\n", repositoryAlias, repo.Owner, repo.Name)
	for _, fragment := range []string{
		allPullRequestsFragment(),
		openPullRequestsFragment(),
		oldestOpenPullRequestFragment(),
	} {
		b.WriteString("    ")
		b.WriteString(fragment)
		b.WriteString("\n")
	}
	b.WriteString("  }\n}\n")
	return b.String()
}
