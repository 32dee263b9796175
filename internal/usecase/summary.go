package usecase

import (
	"github.com/montanaflynn/stats"
)

// Summary aggregates one collection pass across repositories.
type Summary struct {
	Repositories            int     `json:"repositories"`
	Failed                  int     `json:"failed"`
	TotalPullRequests       float64 `json:"total_pull_requests"`
	OpenPullRequests        float64 `json:"open_pull_requests"`
	MedianOpenPullRequests  float64 `json:"median_open_pull_requests"`
	MaxOldestOpenAgeDays    float64 `json:"max_oldest_open_age_days"`
	MedianOldestOpenAgeDays float64 `json:"median_oldest_open_age_days"`
}

// Summarize computes totals, medians and maxima over the successful records.
// Repositories without an open pull request do not count toward age statistics.
func Summarize(result CollectionResult) Summary {
	summary := Summary{
		Repositories: len(result.Records) + len(result.Failures),
		Failed:       len(result.Failures),
	}

	var totals, opens, ages stats.Float64Data
	for _, record := range result.Records {
		totals = append(totals, float64(record.Metrics.TotalCount))
		opens = append(opens, float64(record.Metrics.OpenCount))
		if days, ok := record.Metrics.OldestOpenAgeDays(); ok {
			ages = append(ages, float64(days))
		}
	}

	// stats only fails on empty input, guarded by the length checks.
	if len(opens) > 0 {
		summary.TotalPullRequests, _ = stats.Sum(totals)
		summary.OpenPullRequests, _ = stats.Sum(opens)
		summary.MedianOpenPullRequests, _ = stats.Median(opens)
	}
	if len(ages) > 0 {
		summary.MaxOldestOpenAgeDays, _ = stats.Max(ages)
		summary.MedianOldestOpenAgeDays, _ = stats.Median(ages)
	}
	return summary
}
