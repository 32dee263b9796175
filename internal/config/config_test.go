package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
)

func TestParseRepositories(t *testing.T) {
	testCases := []struct {
		name           string
		entries        []string
		defaultOwner   string
		expected       []domain.RepositoryIdentity
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:         "happy path - bare names use the default owner",
			entries:      []string{"api", "other/lib", " web "},
			defaultOwner: "acme",
			expected: []domain.RepositoryIdentity{
				{Owner: "acme", Name: "api"},
				{Owner: "other", Name: "lib"},
				{Owner: "acme", Name: "web"},
			},
		},
		{
			name:         "duplicates keep the first position",
			entries:      []string{"api", "acme/web", "acme/api"},
			defaultOwner: "acme",
			expected: []domain.RepositoryIdentity{
				{Owner: "acme", Name: "api"},
				{Owner: "acme", Name: "web"},
			},
		},
		{
			name:           "error case - bare name without default owner",
			entries:        []string{"api"},
			expectError:    true,
			expectedErrMsg: "no default owner",
		},
		{name: "error case - empty entry", entries: []string{""}, defaultOwner: "acme", expectError: true, expectedErrMsg: "invalid repository"},
		{name: "error case - empty owner", entries: []string{"/api"}, expectError: true, expectedErrMsg: "invalid repository"},
		{name: "error case - empty name", entries: []string{"acme/"}, expectError: true, expectedErrMsg: "invalid repository"},
		{name: "error case - too many segments", entries: []string{"a/b/c"}, expectError: true, expectedErrMsg: "invalid repository"},
		{name: "empty case", entries: nil, expected: []domain.RepositoryIdentity{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repos, err := ParseRepositories(tc.entries, tc.defaultOwner)
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, repos)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults with repositories from the environment", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "secret")
		t.Setenv("PR_EXPORTER_OWNER", "acme")
		t.Setenv("PR_EXPORTER_REPOSITORIES", "api other/lib")

		cfg, err := Load(New())
		require.NoError(t, err)
		assert.Equal(t, "secret", cfg.GitHubToken)
		assert.Equal(t, ":3000", cfg.ListenAddr)
		assert.Equal(t, 30*time.Second, cfg.RepoTimeout)
		assert.Equal(t, 1, cfg.Concurrency)
		assert.Equal(t, time.Duration(0), cfg.PollInterval)
		assert.Equal(t, time.Hour, cfg.RateLimitSleep)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, int(zerolog.InfoLevel), cfg.Logging.Level)
		assert.Equal(t, []domain.RepositoryIdentity{
			{Owner: "acme", Name: "api"},
			{Owner: "other", Name: "lib"},
		}, cfg.Repositories)
	})

	t.Run("error case - missing token", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		v := New()
		v.Set(KeyRepositories, []string{"acme/api"})

		_, err := Load(v)
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("error case - no repositories", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "secret")
		_, err := Load(New())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no repositories configured")
	})

	t.Run("discovery needs an owner", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "secret")
		v := New()
		v.Set(KeyDiscover, true)
		_, err := Load(v)
		assert.Error(t, err)

		v.Set(KeyOwner, "acme")
		cfg, err := Load(v)
		require.NoError(t, err)
		assert.True(t, cfg.Discover)
		assert.Empty(t, cfg.Repositories)
	})

	t.Run("verbose forces debug level", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "secret")
		v := New()
		v.Set(KeyRepositories, []string{"acme/api"})
		v.Set(KeyVerbose, true)

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, int(zerolog.DebugLevel), cfg.Logging.Level)
	})

	t.Run("error case - invalid concurrency", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "secret")
		v := New()
		v.Set(KeyRepositories, []string{"acme/api"})
		v.Set(KeyConcurrency, 0)

		_, err := Load(v)
		assert.Error(t, err)
	})
}

func TestLoad_RepositoryFile(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "secret")
	path := filepath.Join(t.TempDir(), "repositories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`owner: acme
repositories:
  - api
  - other/lib
  - owner: acme
    name: web
  - api
`), 0o644))

	v := New()
	v.Set(KeyConfigFile, path)
	v.Set(KeyRepositories, []string{"extra"})

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Owner)
	assert.Equal(t, []domain.RepositoryIdentity{
		{Owner: "acme", Name: "api"},
		{Owner: "other", Name: "lib"},
		{Owner: "acme", Name: "web"},
		{Owner: "acme", Name: "extra"},
	}, cfg.Repositories)
}

func TestLoad_RepositoryFileErrors(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "secret")

	v := New()
	v.Set(KeyConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reading")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("repositories:\n  - [a, b]\n"), 0o644))
	v.Set(KeyConfigFile, path)
	_, err = Load(v)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}
