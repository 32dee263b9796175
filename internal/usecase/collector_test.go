package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
	"github.com/naka-gawa/github-pr-exporter/internal/gateway"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, query string) ([]byte, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockFetcher) ListRepositories(ctx context.Context, owner string) ([]domain.RepositoryIdentity, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RepositoryIdentity), args.Error(1)
}

var fixedNow = time.Date(2021, 1, 11, 0, 0, 0, 0, time.UTC)

func repo(name string) domain.RepositoryIdentity {
	return domain.RepositoryIdentity{Owner: "acme", Name: name}
}

func answer(all, open int, createdAt string) []byte {
	edges := "[]"
	if createdAt != "" {
		edges = fmt.Sprintf(`[{"node":{"createdAt":%q,"url":"https://example/pr/1"}}]`, createdAt)
	}
	return []byte(fmt.Sprintf(`{"data":{"pullRequests":{"all":{"totalCount":%d},"open":{"totalCount":%d},"oldest":{"edges":%s}}}}`, all, open, edges))
}

func queryFor(r domain.RepositoryIdentity) string {
	return gateway.BuildPullRequestQuery(r)
}

func TestCollector_Collect(t *testing.T) {
	tenDays := 10 * 24 * time.Hour

	testCases := []struct {
		name            string
		repos           []domain.RepositoryIdentity
		responses       map[string][]byte
		errors          map[string]error
		expectedRecords []domain.RepositoryMetricsRecord
		expectedFailed  map[string]gateway.FailureKind
	}{
		{
			name:  "happy path - all repositories collected in order",
			repos: []domain.RepositoryIdentity{repo("api"), repo("web")},
			responses: map[string][]byte{
				"api": answer(2, 1, "2021-01-01T00:00:00Z"),
				"web": answer(5, 0, ""),
			},
			expectedRecords: []domain.RepositoryMetricsRecord{
				{Identity: repo("api"), Metrics: domain.PullRequestMetrics{TotalCount: 2, OpenCount: 1, OldestOpenAge: &tenDays, OldestOpenURL: "https://example/pr/1"}},
				{Identity: repo("web"), Metrics: domain.PullRequestMetrics{TotalCount: 5, OpenCount: 0}},
			},
		},
		{
			name:  "partial failure - transport error on one repository",
			repos: []domain.RepositoryIdentity{repo("api"), repo("down"), repo("web")},
			responses: map[string][]byte{
				"api": answer(2, 1, "2021-01-01T00:00:00Z"),
				"web": answer(5, 0, ""),
			},
			errors: map[string]error{
				"down": &gateway.TransportError{Err: errors.New("connection refused")},
			},
			expectedRecords: []domain.RepositoryMetricsRecord{
				{Identity: repo("api"), Metrics: domain.PullRequestMetrics{TotalCount: 2, OpenCount: 1, OldestOpenAge: &tenDays, OldestOpenURL: "https://example/pr/1"}},
				{Identity: repo("web"), Metrics: domain.PullRequestMetrics{TotalCount: 5, OpenCount: 0}},
			},
			expectedFailed: map[string]gateway.FailureKind{"down": gateway.FailureTransport},
		},
		{
			name:  "partial failure - API reported and malformed payloads",
			repos: []domain.RepositoryIdentity{repo("missing"), repo("api"), repo("broken")},
			responses: map[string][]byte{
				"missing": []byte(`{"data":{"pullRequests":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a Repository"}]}`),
				"api":     answer(3, 0, ""),
				"broken":  []byte(`{"data":{"pullRequests":{"all":{"totalCount":"many"}}}}`),
			},
			expectedRecords: []domain.RepositoryMetricsRecord{
				{Identity: repo("api"), Metrics: domain.PullRequestMetrics{TotalCount: 3, OpenCount: 0}},
			},
			expectedFailed: map[string]gateway.FailureKind{
				"missing": gateway.FailureAPI,
				"broken":  gateway.FailureMalformed,
			},
		},
		{
			name:  "all repositories fail - empty record set, no error",
			repos: []domain.RepositoryIdentity{repo("a"), repo("b")},
			errors: map[string]error{
				"a": &gateway.TransportError{Err: errors.New("timeout")},
				"b": &gateway.TransportError{Err: errors.New("timeout")},
			},
			expectedRecords: []domain.RepositoryMetricsRecord{},
			expectedFailed: map[string]gateway.FailureKind{
				"a": gateway.FailureTransport,
				"b": gateway.FailureTransport,
			},
		},
		{
			name:            "empty case - no repositories configured",
			repos:           nil,
			expectedRecords: []domain.RepositoryMetricsRecord{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			fetcher := new(mockFetcher)
			for _, r := range tc.repos {
				if err, ok := tc.errors[r.Name]; ok {
					fetcher.On("Fetch", mock.Anything, queryFor(r)).Return(nil, err).Once()
					continue
				}
				fetcher.On("Fetch", mock.Anything, queryFor(r)).Return(tc.responses[r.Name], nil).Once()
			}
			collector := NewCollector(fetcher, zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))

			// --- Act ---
			result, err := collector.Collect(context.Background(), tc.repos)

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, tc.expectedRecords, result.Records)
			require.Len(t, result.Failures, len(tc.expectedFailed))
			for _, failure := range result.Failures {
				assert.Equal(t, tc.expectedFailed[failure.Identity.Name], failure.Kind, failure.Identity.String())
				assert.Error(t, failure.Err)
			}
			fetcher.AssertExpectations(t)
		})
	}
}

func TestCollector_Collect_FailuresKeepConfiguredOrder(t *testing.T) {
	repos := []domain.RepositoryIdentity{repo("z"), repo("a"), repo("m")}
	fetcher := new(mockFetcher)
	for _, r := range repos {
		fetcher.On("Fetch", mock.Anything, queryFor(r)).Return(nil, &gateway.TransportError{Err: errors.New("down")})
	}

	result, err := NewCollector(fetcher, zerolog.Nop(), WithConcurrency(3)).Collect(context.Background(), repos)
	require.NoError(t, err)
	require.Len(t, result.Failures, 3)
	for i, failure := range result.Failures {
		assert.Equal(t, repos[i], failure.Identity)
	}
}

// blockingFetcher counts concurrent Fetch calls.
type blockingFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (b *blockingFetcher) Fetch(ctx context.Context, query string) ([]byte, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return answer(1, 0, ""), nil
}

func (b *blockingFetcher) ListRepositories(ctx context.Context, owner string) ([]domain.RepositoryIdentity, error) {
	return nil, nil
}

func TestCollector_Collect_RespectsConcurrency(t *testing.T) {
	repos := []domain.RepositoryIdentity{repo("a"), repo("b"), repo("c"), repo("d"), repo("e"), repo("f")}

	fetcher := &blockingFetcher{}
	result, err := NewCollector(fetcher, zerolog.Nop(), WithConcurrency(2)).Collect(context.Background(), repos)
	require.NoError(t, err)
	assert.Len(t, result.Records, len(repos))
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(2))
	for i, record := range result.Records {
		assert.Equal(t, repos[i], record.Identity)
	}
}

func TestCollector_Collect_AppliesTimeout(t *testing.T) {
	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(answer(1, 0, ""), nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
	})

	_, err := NewCollector(fetcher, zerolog.Nop(), WithTimeout(time.Second)).Collect(context.Background(), []domain.RepositoryIdentity{repo("a")})
	require.NoError(t, err)
	fetcher.AssertExpectations(t)
}

func TestCollector_Collect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, &gateway.TransportError{Err: context.Canceled})

	_, err := NewCollector(fetcher, zerolog.Nop()).Collect(ctx, []domain.RepositoryIdentity{repo("a")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_ResolveRepositories(t *testing.T) {
	configured := []domain.RepositoryIdentity{repo("api"), {Owner: "other", Name: "lib"}}

	t.Run("without discovery", func(t *testing.T) {
		fetcher := new(mockFetcher)
		resolved, err := NewCollector(fetcher, zerolog.Nop()).ResolveRepositories(context.Background(), configured, "")
		require.NoError(t, err)
		assert.Equal(t, configured, resolved)
		fetcher.AssertNotCalled(t, "ListRepositories", mock.Anything, mock.Anything)
	})

	t.Run("with discovery - duplicates dropped", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("ListRepositories", mock.Anything, "acme").Return([]domain.RepositoryIdentity{repo("web"), repo("api")}, nil)

		resolved, err := NewCollector(fetcher, zerolog.Nop()).ResolveRepositories(context.Background(), configured, "acme")
		require.NoError(t, err)
		assert.Equal(t, []domain.RepositoryIdentity{repo("api"), {Owner: "other", Name: "lib"}, repo("web")}, resolved)
	})

	t.Run("error case - discovery fails", func(t *testing.T) {
		fetcher := new(mockFetcher)
		fetcher.On("ListRepositories", mock.Anything, "acme").Return(nil, errors.New("github api error"))

		resolved, err := NewCollector(fetcher, zerolog.Nop()).ResolveRepositories(context.Background(), configured, "acme")
		assert.Error(t, err)
		assert.Nil(t, resolved)
	})
}
