package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"
)

// LLM provider names.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config holds the server's application settings. It follows the common
// RegisterFlags/Validate shape used by the go-core packages.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	LLMProvider           string
	ClaudeAPIKey          string
	ClaudeModel           string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	DatabaseURL           string
	SlackWebhookURL       string
	FetchIntervalHours    int
	FetchConcurrency      int
	FetchTimeout          time.Duration
	HostInterval          time.Duration
	SourceFile            string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "shared access token required by the API")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderClaude, "LLM provider for feed analysis (claude, openai, none)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI-compatible provider")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "https://dashscope.aliyuncs.com/compatible-mode/v1", "base URL of the OpenAI-compatible provider")
	fs.StringVar(&c.OpenAIModel, "openai-model", "qwen-plus", "model to use with the OpenAI-compatible provider")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for captured note notifications")
	fs.IntVar(&c.FetchIntervalHours, "fetch-interval-hours", 6, "hours between scheduled fetches of every source (0 = disabled, max 168)")
	fs.IntVar(&c.FetchConcurrency, "fetch-concurrency", 4, "sources fetched in parallel (1..64)")
	fs.DurationVar(&c.FetchTimeout, "fetch-timeout", 10*time.Minute, "time limit for one scheduled fetch run")
	fs.DurationVar(&c.HostInterval, "fetch-host-interval", time.Second, "minimum spacing between requests to one host (0 = unlimited)")
	fs.StringVar(&c.SourceFile, "source-file", "", "YAML source list used by sync-from-config")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// every route but auth/verify is token protected
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	switch c.LLMProvider {
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required"))
		}
		if !isHTTPURL(c.OpenAIBaseURL) {
			errs = append(errs, fmt.Errorf("invalid OPENAI_BASE_URL %q", c.OpenAIBaseURL))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude, openai or none)", c.LLMProvider))
	}

	if c.SlackWebhookURL != "" && !isHTTPURL(c.SlackWebhookURL) {
		errs = append(errs, errors.New("invalid SLACK_WEBHOOK_URL"))
	}

	if c.FetchIntervalHours < 0 || c.FetchIntervalHours > 168 {
		errs = append(errs, fmt.Errorf("invalid FETCH_INTERVAL_HOURS %d (must be 0..168)", c.FetchIntervalHours))
	}
	if c.FetchConcurrency <= 0 || c.FetchConcurrency > 64 {
		errs = append(errs, fmt.Errorf("invalid FETCH_CONCURRENCY %d (must be 1..64)", c.FetchConcurrency))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid FETCH_TIMEOUT %s (must be positive)", c.FetchTimeout))
	}
	if c.HostInterval < 0 {
		errs = append(errs, fmt.Errorf("invalid FETCH_HOST_INTERVAL %s (must not be negative)", c.HostInterval))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ClientConfig holds the CLI's settings.
type ClientConfig struct {
	APIURL             string
	AccessToken        string
	Timeout            time.Duration
	MarkAllConcurrency int
	NoteLanguage       string
	HistoryFile        string
}

// RegisterFlags binds ClientConfig fields to the given FlagSet.
func (c *ClientConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.APIURL, "api-url", "http://localhost:8080", "base URL of the brainsync server")
	fs.StringVar(&c.AccessToken, "access-token", "", "shared access token for the server")
	fs.DurationVar(&c.Timeout, "request-timeout", 2*time.Minute, "per-request timeout (analysis calls can be slow)")
	fs.IntVar(&c.MarkAllConcurrency, "mark-all-concurrency", 8, "parallel requests when marking a working set read (1..64)")
	fs.StringVar(&c.NoteLanguage, "note-language", "en", "language of note section headings (en, zh)")
	fs.StringVar(&c.HistoryFile, "history-file", "", "shell history file (empty = no history)")
}

// Validate checks all client fields.
func (c *ClientConfig) Validate() error {
	var errs []error

	if !isHTTPURL(c.APIURL) {
		errs = append(errs, fmt.Errorf("invalid API_URL %q", c.APIURL))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid TIMEOUT %s (must be positive)", c.Timeout))
	}
	if c.MarkAllConcurrency <= 0 || c.MarkAllConcurrency > 64 {
		errs = append(errs, fmt.Errorf("invalid MARK_ALL_CONCURRENCY %d (must be 1..64)", c.MarkAllConcurrency))
	}
	if c.NoteLanguage != "en" && c.NoteLanguage != "zh" {
		errs = append(errs, fmt.Errorf("invalid NOTE_LANGUAGE %q (must be en or zh)", c.NoteLanguage))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
