// Package config loads the exporter settings from flags, environment
// variables, an optional .env file and an optional YAML repository file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/naka-gawa/github-pr-exporter/internal/domain"
	"github.com/naka-gawa/github-pr-exporter/internal/logging"
)

// ErrMissingToken is returned when no GitHub token is configured.
var ErrMissingToken = errors.New("GITHUB_TOKEN environment variable is not set")

// Config is the resolved runtime configuration.
type Config struct {
	ListenAddr     string
	Owner          string
	Repositories   []domain.RepositoryIdentity
	Discover       bool
	GitHubURL      string
	GitHubToken    string
	RepoTimeout    time.Duration
	Concurrency    int
	PollInterval   time.Duration
	RateLimitSleep time.Duration
	Logging        logging.Config
}

// New returns a viper instance with defaults and environment bindings. A .env
// file in the working directory is loaded first when present.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyGitHubToken, "GITHUB_TOKEN")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyListenAddr, ":3000")
	v.SetDefault(KeyRepoTimeout, 30*time.Second)
	v.SetDefault(KeyConcurrency, 1)
	v.SetDefault(KeyPollInterval, time.Duration(0))
	v.SetDefault(KeyRateLimitSleep, time.Hour)
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogLevel, int(zerolog.InfoLevel))
}

// BindFlags maps the command's flags onto configuration keys. Flags the
// command does not define are skipped.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		KeyConfigFile:     "config",
		KeyListenAddr:     "listen-addr",
		KeyOwner:          "owner",
		KeyRepositories:   "repo",
		KeyDiscover:       "discover",
		KeyGitHubURL:      "github-url",
		KeyRepoTimeout:    "repo-timeout",
		KeyConcurrency:    "concurrency",
		KeyPollInterval:   "poll-interval",
		KeyRateLimitSleep: "rate-limit-sleep",
		KeyLogFormat:      "log-format",
		KeyLogLevel:       "log-level",
		KeyVerbose:        "verbose",
	}
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		ListenAddr:     v.GetString(KeyListenAddr),
		Owner:          v.GetString(KeyOwner),
		Discover:       v.GetBool(KeyDiscover),
		GitHubURL:      v.GetString(KeyGitHubURL),
		GitHubToken:    v.GetString(KeyGitHubToken),
		RepoTimeout:    v.GetDuration(KeyRepoTimeout),
		Concurrency:    v.GetInt(KeyConcurrency),
		PollInterval:   v.GetDuration(KeyPollInterval),
		RateLimitSleep: v.GetDuration(KeyRateLimitSleep),
		Logging: logging.Config{
			Format: v.GetString(KeyLogFormat),
			Level:  v.GetInt(KeyLogLevel),
		},
	}
	if v.GetBool(KeyVerbose) && cfg.Logging.Level > int(zerolog.DebugLevel) {
		cfg.Logging.Level = int(zerolog.DebugLevel)
	}

	var entries []string
	if path := v.GetString(KeyConfigFile); path != "" {
		file, err := readRepositoryFile(path)
		if err != nil {
			return Config{}, err
		}
		if cfg.Owner == "" {
			cfg.Owner = file.Owner
		}
		for _, entry := range file.Repositories {
			entries = append(entries, entry.String())
		}
	}
	entries = append(entries, v.GetStringSlice(KeyRepositories)...)

	repos, err := ParseRepositories(entries, cfg.Owner)
	if err != nil {
		return Config{}, err
	}
	cfg.Repositories = repos

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.GitHubToken == "" {
		return ErrMissingToken
	}
	if c.Discover && c.Owner == "" {
		return fmt.Errorf("repository discovery needs an owner, set --owner")
	}
	if len(c.Repositories) == 0 && !c.Discover {
		return fmt.Errorf("no repositories configured, use --repo, --config or --discover")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RepoTimeout < 0 || c.PollInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// ParseRepositories turns "name" and "owner/name" entries into identities,
// using defaultOwner for bare names. Duplicates keep their first position.
func ParseRepositories(entries []string, defaultOwner string) ([]domain.RepositoryIdentity, error) {
	seen := make(map[domain.RepositoryIdentity]bool, len(entries))
	repos := make([]domain.RepositoryIdentity, 0, len(entries))
	for _, entry := range entries {
		repo, err := parseRepository(entry, defaultOwner)
		if err != nil {
			return nil, err
		}
		if seen[repo] {
			continue
		}
		seen[repo] = true
		repos = append(repos, repo)
	}
	return repos, nil
}

func parseRepository(entry, defaultOwner string) (domain.RepositoryIdentity, error) {
	entry = strings.TrimSpace(entry)
	parts := strings.Split(entry, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		if defaultOwner == "" {
			return domain.RepositoryIdentity{}, fmt.Errorf("repository %q has no owner and no default owner is set", entry)
		}
		return domain.RepositoryIdentity{Owner: defaultOwner, Name: parts[0]}, nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return domain.RepositoryIdentity{Owner: parts[0], Name: parts[1]}, nil
	default:
		return domain.RepositoryIdentity{}, fmt.Errorf("invalid repository %q, expected 'name' or 'owner/name'", entry)
	}
}

func readRepositoryFile(path string) (repositoryFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return repositoryFile{}, fmt.Errorf("reading %q: %w", path, err)
	}
	file, err := parseRepositoryFile(b)
	if err != nil {
		return repositoryFile{}, fmt.Errorf("parsing %q: %w", path, err)
	}
	return file, nil
}
