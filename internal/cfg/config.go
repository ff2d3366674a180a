package cfg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/sethvargo/go-envconfig"
)

const (
	ExecutionModeTest       = "test"
	ExecutionModeProduction = "production"
)

const (
	DefHTTPListenAddr         = ":3002"
	DefGithubWebhookEndpoint  = "/api/webhooks/github"
	DefMetricsEndpoint        = "/metrics"
	DefLogFormat              = "logfmt"
	DefLogTimeKey             = "time"
	DefLogLevel               = "info"
	DefRepoInstructionsFile   = "CLAUDE.md"
	DefReporterRetryTimeout   = 2 * time.Minute
	DefSandboxImage           = "claudecode:latest"
	DefSandboxRuntimeBin      = "docker"
	DefSandboxTimeout         = 2 * time.Hour
	DefSandboxMemoryLimit     = "2g"
	DefSandboxCPUs            = "1"
	DefSandboxPidsLimit       = 256
	DefSandboxAuthHostDirName = ".claude-hub"
	DefLabelInProgress        = "claude:in-progress"
	DefLabelCompleted         = "claude:done"
	DefLabelFailed            = "claude:failed"
)

// Config is the process wide configuration. It is loaded once on startup and
// not modified afterwards.
type Config struct {
	HTTPListenAddr            string `toml:"http_server_listen_addr" env:"HTTP_LISTEN_ADDR, overwrite"`
	HTTPSListenAddr           string `toml:"https_server_listen_addr" env:"HTTPS_LISTEN_ADDR, overwrite"`
	HTTPSCertFile             string `toml:"https_ssl_cert_file" env:"HTTPS_SSL_CERT_FILE, overwrite"`
	HTTPSKeyFile              string `toml:"https_ssl_key_file" env:"HTTPS_SSL_KEY_FILE, overwrite"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint" env:"GITHUB_WEBHOOK_ENDPOINT, overwrite"`
	HTTPMetricsEndpoint       string `toml:"metrics_endpoint" env:"METRICS_ENDPOINT, overwrite"`

	GithubWebHookSecret string `toml:"github_webhook_secret" env:"GITHUB_WEBHOOK_SECRET, overwrite"`
	GithubAPIToken      string `toml:"github_api_token" env:"GITHUB_TOKEN, overwrite"`
	AnthropicAPIKey     string `toml:"anthropic_api_key" env:"ANTHROPIC_API_KEY, overwrite"`

	// BotUsername is the GitHub login of the bot, it may be prefixed with an "@".
	BotUsername     string   `toml:"bot_username" env:"BOT_USERNAME, overwrite"`
	AuthorizedUsers []string `toml:"authorized_users" env:"AUTHORIZED_USERS, overwrite"`
	PRHumanReviewer string   `toml:"pr_human_reviewer" env:"PR_HUMAN_REVIEWER, overwrite"`

	ExecutionMode        string        `toml:"execution_mode" env:"EXECUTION_MODE, overwrite"`
	DryRun               bool          `toml:"dry_run" env:"DRY_RUN, overwrite"`
	AutoTagging          bool          `toml:"auto_tagging" env:"AUTO_TAGGING, overwrite"`
	RepoInstructionsFile string        `toml:"repo_instructions_file" env:"REPO_INSTRUCTIONS_FILE, overwrite"`
	ReporterRetryTimeout time.Duration `toml:"reporter_retry_timeout" env:"REPORTER_RETRY_TIMEOUT, overwrite"`

	LogFormat  string `toml:"log_format" env:"LOG_FORMAT, overwrite"`
	LogTimeKey string `toml:"log_time_key" env:"LOG_TIME_KEY, overwrite"`
	LogLevel   string `toml:"log_level" env:"LOG_LEVEL, overwrite"`

	Sandbox      Sandbox        `toml:"sandbox"`
	Labels       Labels         `toml:"labels"`
	EventFilters []*EventFilter `toml:"event_filter"`
}

// Sandbox configures the container the agent runs in.
type Sandbox struct {
	Image      string        `toml:"image" env:"SANDBOX_IMAGE, overwrite"`
	RuntimeBin string        `toml:"runtime_bin" env:"SANDBOX_RUNTIME_BIN, overwrite"`
	Timeout    time.Duration `toml:"timeout" env:"SANDBOX_TIMEOUT, overwrite"`
	// AuthHostDir is mounted read-only into the home directory of the
	// agent user inside the container.
	AuthHostDir string `toml:"auth_host_dir" env:"CLAUDE_AUTH_HOST_DIR, overwrite"`
	MemoryLimit string `toml:"memory_limit" env:"SANDBOX_MEMORY_LIMIT, overwrite"`
	CPUs        string `toml:"cpus" env:"SANDBOX_CPUS, overwrite"`
	PidsLimit   int    `toml:"pids_limit" env:"SANDBOX_PIDS_LIMIT, overwrite"`
}

// Labels are the issue labels that reflect the processing state of an
// assigned issue.
type Labels struct {
	Enabled    bool   `toml:"enabled" env:"LABELS_ENABLED, overwrite"`
	InProgress string `toml:"in_progress" env:"LABEL_IN_PROGRESS, overwrite"`
	Completed  string `toml:"completed" env:"LABEL_COMPLETED, overwrite"`
	Failed     string `toml:"failed" env:"LABEL_FAILED, overwrite"`
}

// EventFilter is a jq query that must evaluate to true for the JSON payload
// of an event, otherwise the event is ignored.
type EventFilter struct {
	Name        string `toml:"name"`
	FilterQuery string `toml:"filter_query"`
}

// Load reads a TOML configuration.
// Defaults are not applied.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// LoadEnv overwrites fields of c with the values of environment variables
// returned by lookuper. If lookuper is nil, the process environment is used.
func (c *Config) LoadEnv(ctx context.Context, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   c,
		Lookuper: lookuper,
	})
}

// ApplyDefaults sets all unset fields that have a default value.
func (c *Config) ApplyDefaults() {
	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		c.HTTPListenAddr = DefHTTPListenAddr
	}

	setDefault(&c.HTTPGithubWebhookEndpoint, DefGithubWebhookEndpoint)
	setDefault(&c.HTTPMetricsEndpoint, DefMetricsEndpoint)
	setDefault(&c.ExecutionMode, ExecutionModeProduction)
	setDefault(&c.RepoInstructionsFile, DefRepoInstructionsFile)
	setDefault(&c.LogFormat, DefLogFormat)
	setDefault(&c.LogTimeKey, DefLogTimeKey)
	setDefault(&c.LogLevel, DefLogLevel)

	if c.ReporterRetryTimeout == 0 {
		c.ReporterRetryTimeout = DefReporterRetryTimeout
	}

	setDefault(&c.Sandbox.Image, DefSandboxImage)
	setDefault(&c.Sandbox.RuntimeBin, DefSandboxRuntimeBin)
	setDefault(&c.Sandbox.MemoryLimit, DefSandboxMemoryLimit)
	setDefault(&c.Sandbox.CPUs, DefSandboxCPUs)

	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = DefSandboxTimeout
	}

	if c.Sandbox.PidsLimit == 0 {
		c.Sandbox.PidsLimit = DefSandboxPidsLimit
	}

	if c.Sandbox.AuthHostDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Sandbox.AuthHostDir = filepath.Join(home, DefSandboxAuthHostDirName)
		}
	}

	setDefault(&c.Labels.InProgress, DefLabelInProgress)
	setDefault(&c.Labels.Completed, DefLabelCompleted)
	setDefault(&c.Labels.Failed, DefLabelFailed)
}

func setDefault(field *string, val string) {
	if *field == "" {
		*field = val
	}
}

// Validate returns an error if the configuration is incomplete or contains
// unsupported values.
func (c *Config) Validate() error {
	var errs []error

	if c.BotLogin() == "" {
		errs = append(errs, errors.New("bot_username (BOT_USERNAME) must be set"))
	}

	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		errs = append(errs, errors.New("https_server_listen_addr or http_server_listen_addr must be set"))
	}

	if c.HTTPSListenAddr != "" && (c.HTTPSCertFile == "" || c.HTTPSKeyFile == "") {
		errs = append(errs, errors.New("https_ssl_cert_file and https_ssl_key_file must be set when https_server_listen_addr is set"))
	}

	switch c.ExecutionMode {
	case ExecutionModeTest:
	case ExecutionModeProduction:
		if c.GithubWebHookSecret == "" {
			errs = append(errs, errors.New("github_webhook_secret (GITHUB_WEBHOOK_SECRET) must be set in production mode"))
		}

		if c.GithubAPIToken == "" {
			errs = append(errs, errors.New("github_api_token (GITHUB_TOKEN) must be set in production mode"))
		}

		if c.Sandbox.Image == "" {
			errs = append(errs, errors.New("sandbox image (SANDBOX_IMAGE) must be set in production mode"))
		}

	default:
		errs = append(errs, fmt.Errorf("unsupported execution_mode: %q, must be %q or %q",
			c.ExecutionMode, ExecutionModeTest, ExecutionModeProduction))
	}

	if c.Sandbox.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sandbox timeout must be positive, is: %s", c.Sandbox.Timeout))
	}

	for i, f := range c.EventFilters {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("event_filter %d: missing field: 'name'", i))
		}

		if f.FilterQuery == "" {
			errs = append(errs, fmt.Errorf("event_filter %d: missing field: 'filter_query'", i))
		}
	}

	return errors.Join(errs...)
}

// BotLogin returns the GitHub login of the bot without a leading "@".
func (c *Config) BotLogin() string {
	return strings.TrimPrefix(strings.TrimSpace(c.BotUsername), "@")
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
