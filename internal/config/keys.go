package config

const (
	KeyConfigFile     = "config"
	KeyListenAddr     = "listen_addr"
	KeyOwner          = "owner"
	KeyRepositories   = "repositories"
	KeyDiscover       = "discover"
	KeyGitHubURL      = "github_url"
	KeyGitHubToken    = "github_token"
	KeyRepoTimeout    = "repo_timeout"
	KeyConcurrency    = "concurrency"
	KeyPollInterval   = "poll_interval"
	KeyRateLimitSleep = "rate_limit_sleep"
	KeyLogFormat      = "log_format"
	KeyLogLevel       = "log_level"
	KeyVerbose        = "verbose"
)

// EnvPrefix is prepended to every key when read from the environment,
// except the GitHub token which is read from GITHUB_TOKEN.
const EnvPrefix = "PR_EXPORTER"
