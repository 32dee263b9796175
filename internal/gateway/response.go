package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/tidwall/gjson"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
)

const maxFragmentLen = 200

// implicitOffsetLayout is accepted for timestamps without a zone; they are read as UTC.
const implicitOffsetLayout = "2006-01-02T15:04:05"

// ParsePullRequestMetrics decodes the answer to BuildPullRequestQuery.
// now is the instant ages are measured against.
//
// The payload is checked in two stages: first the envelope (top-level object,
// "errors" list, "data" key), then each aliased sub-query is decoded on its own.
func ParsePullRequestMetrics(payload []byte, now time.Time) (domain.PullRequestMetrics, error) {
	data, err := checkEnvelope(payload)
	if err != nil {
		return domain.PullRequestMetrics{}, err
	}

	repoPath := "data." + repositoryAlias
	repo, err := requireObject(data.Get(repositoryAlias), repoPath)
	if err != nil {
		return domain.PullRequestMetrics{}, err
	}

	total, err := decodeTotalCount(repo.Get(allAlias), repoPath+"."+allAlias)
	if err != nil {
		return domain.PullRequestMetrics{}, err
	}
	open, err := decodeTotalCount(repo.Get(openAlias), repoPath+"."+openAlias)
	if err != nil {
		return domain.PullRequestMetrics{}, err
	}
	oldest, err := decodeOldest(repo.Get(oldestAlias), repoPath+"."+oldestAlias)
	if err != nil {
		return domain.PullRequestMetrics{}, err
	}

	if total < open {
		return domain.PullRequestMetrics{}, malformed(repoPath, "", fmt.Sprintf("total count %d is lower than open count %d", total, open))
	}
	if (open == 0) != (oldest == nil) {
		return domain.PullRequestMetrics{}, malformed(repoPath+"."+oldestAlias, "", fmt.Sprintf("open count %d disagrees with oldest open pull request presence", open))
	}

	metrics := domain.PullRequestMetrics{TotalCount: total, OpenCount: open}
	if oldest != nil {
		age := now.Sub(oldest.createdAt)
		metrics.OldestOpenAge = &age
		metrics.OldestOpenURL = oldest.url
	}
	return metrics, nil
}

// checkEnvelope validates the top level of the payload and returns its "data" object.
func checkEnvelope(payload []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, malformed("$", truncate(string(payload)), "invalid JSON")
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return gjson.Result{}, malformed("$", truncate(root.Raw), "top level is not an object")
	}

	if errs := root.Get("errors"); errs.Exists() && errs.Type != gjson.Null {
		if !errs.IsArray() {
			return gjson.Result{}, malformed("errors", truncate(errs.Raw), "not a list")
		}
		if entries := errs.Array(); len(entries) > 0 {
			return gjson.Result{}, newAPIReportedError(errs.Raw, entries)
		}
	}

	return requireObject(root.Get("data"), "data")
}

func newAPIReportedError(raw string, entries []gjson.Result) *APIReportedError {
	apiErr := &APIReportedError{Raw: raw, Errors: make([]APIError, 0, len(entries))}
	for _, entry := range entries {
		e := APIError{
			Type:    entry.Get("type").String(),
			Message: entry.Get("message").String(),
		}
		for _, p := range entry.Get("path").Array() {
			e.Path = append(e.Path, p.String())
		}
		if e.Message == "" && e.Type == "" {
			e.Message = entry.Raw
		}
		apiErr.Errors = append(apiErr.Errors, e)
	}
	return apiErr
}

// requireObject fails with ErrMissingField for absent or null values and with
// ErrMalformedResponse for anything that is not an object.
func requireObject(value gjson.Result, path string) (gjson.Result, error) {
	if !value.Exists() || value.Type == gjson.Null {
		return gjson.Result{}, missing(path)
	}
	if !value.IsObject() {
		return gjson.Result{}, malformed(path, truncate(value.Raw), "not an object")
	}
	return value, nil
}

// decodeTotalCount extracts the integer "totalCount" of a counting sub-query.
func decodeTotalCount(value gjson.Result, path string) (int, error) {
	obj, err := requireObject(value, path)
	if err != nil {
		return 0, err
	}
	countPath := path + ".totalCount"
	count := obj.Get("totalCount")
	if !count.Exists() {
		return 0, malformed(countPath, truncate(obj.Raw), "totalCount is absent")
	}
	if count.Type != gjson.Number {
		return 0, malformed(countPath, truncate(count.Raw), "not a number")
	}
	n, err := strconv.ParseInt(count.Raw, 10, 32)
	if err != nil {
		return 0, malformed(countPath, truncate(count.Raw), "not an integer")
	}
	if n < 0 {
		return 0, malformed(countPath, count.Raw, "negative count")
	}
	return int(n), nil
}

type oldestPullRequest struct {
	createdAt time.Time
	url       string
}

// decodeOldest reads the "oldest" sub-query. A nil result means there is no
// open pull request.
func decodeOldest(value gjson.Result, path string) (*oldestPullRequest, error) {
	obj, err := requireObject(value, path)
	if err != nil {
		return nil, err
	}
	edgesPath := path + ".edges"
	edges := obj.Get("edges")
	if !edges.Exists() {
		return nil, malformed(edgesPath, truncate(obj.Raw), "edges is absent")
	}
	if !edges.IsArray() {
		return nil, malformed(edgesPath, truncate(edges.Raw), "not a list")
	}

	entries := edges.Array()
	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, malformed(edgesPath, truncate(edges.Raw), fmt.Sprintf("expected at most one edge, got %d", len(entries)))
	}

	edge, err := requireObject(entries[0], edgesPath+".0")
	if err != nil {
		return nil, asMalformed(err, edgesPath+".0", entries[0].Raw)
	}
	nodePath := edgesPath + ".0.node"
	node, err := requireObject(edge.Get("node"), nodePath)
	if err != nil {
		return nil, asMalformed(err, nodePath, edge.Raw)
	}
	return decodeNode(node, nodePath)
}

func decodeNode(node gjson.Result, path string) (*oldestPullRequest, error) {
	createdAtPath := path + ".createdAt"
	createdAt := node.Get("createdAt")
	if !createdAt.Exists() {
		return nil, malformed(createdAtPath, truncate(node.Raw), "createdAt is absent")
	}
	if createdAt.Type != gjson.String {
		return nil, malformed(createdAtPath, truncate(createdAt.Raw), "not a string")
	}
	ts, err := parseTimestamp(createdAt.Str)
	if err != nil {
		return nil, malformed(createdAtPath, createdAt.Raw, err.Error())
	}

	pr := &oldestPullRequest{createdAt: ts}
	if u := node.Get("url"); u.Exists() && u.Type != gjson.Null {
		var uri githubv4.URI
		if err := json.Unmarshal([]byte(u.Raw), &uri); err != nil {
			return nil, malformed(path+".url", truncate(u.Raw), err.Error())
		}
		if uri.URL != nil {
			pr.url = uri.URL.String()
		}
	}
	return pr, nil
}

// parseTimestamp accepts RFC 3339 timestamps and zone-less ones, read as UTC.
func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return ts, nil
	}
	if implicit, implicitErr := time.ParseInLocation(implicitOffsetLayout, value, time.UTC); implicitErr == nil {
		return implicit, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
}

// asMalformed turns a missing edge or node into a malformed response: once an
// edge is present its node is part of the expected shape.
func asMalformed(err error, path, fragment string) error {
	if Classify(err) == FailureMissingField {
		return malformed(path, truncate(fragment), "required object is absent")
	}
	return err
}

func truncate(s string) string {
	if len(s) <= maxFragmentLen {
		return s
	}
	return s[:maxFragmentLen] + "..."
}
