// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RepositoryIdentity names a single GitHub repository.
type RepositoryIdentity struct {
	Owner string `json:"owner" yaml:"owner"`
	Name  string `json:"name" yaml:"name"`
}

// String returns the "owner/name" form used as the repository label.
func (r RepositoryIdentity) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// PullRequestMetrics holds the pull request statistics of one repository.
// OldestOpenAge is nil when the repository has no open pull request.
type PullRequestMetrics struct {
	TotalCount    int            `json:"total_count"`
	OpenCount     int            `json:"open_count"`
	OldestOpenAge *time.Duration `json:"-"`
	OldestOpenURL string         `json:"oldest_open_url,omitempty"`
}

// OldestOpenAgeDays returns the age of the oldest open pull request in whole days.
// The age is always non-negative and truncated toward zero.
func (m PullRequestMetrics) OldestOpenAgeDays() (int64, bool) {
	if m.OldestOpenAge == nil {
		return 0, false
	}
	age := *m.OldestOpenAge
	if age < 0 {
		age = -age
	}
	return int64(age / (24 * time.Hour)), true
}

// RepositoryMetricsRecord is the result of one successful collection for a repository.
type RepositoryMetricsRecord struct {
	Identity RepositoryIdentity `json:"repository"`
	Metrics  PullRequestMetrics `json:"pull_requests"`
}

// MarshalJSON flattens the optional oldest age into a nullable day count.
func (m PullRequestMetrics) MarshalJSON() ([]byte, error) {
	type plain PullRequestMetrics
	out := struct {
		plain
		OldestOpenAgeDays *int64 `json:"oldest_open_age_days"`
	}{plain: plain(m)}
	if days, ok := m.OldestOpenAgeDays(); ok {
		out.OldestOpenAgeDays = &days
	}
	return json.Marshal(out)
}
