// Package config loads application configuration from environment variables
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	GitHubToken   string
	WebhookSecret string
	BotLogin      string
	// DefaultInstallationID is attached to webhook deliveries that carry no
	// installation, as sent by repository webhooks.
	DefaultInstallationID int64
	ListenAddr            string
	DBPath                string

	AnthropicAPIKey   string
	LLMModel          string
	LLMMaxConcurrency int

	CallTimeout  time.Duration
	EventTimeout time.Duration
	AutoApplyCap int
	BotUsernames []string

	Research ResearchConfig

	LogLevel  slog.Level
	LogFormat string
}

// ResearchConfig configures the periodic research sweep.
type ResearchConfig struct {
	Interval     time.Duration
	Queries      []string
	MaxResults   int
	SummarizeTop int
}

// DefaultResearchQueries are searched when the config file names none.
var DefaultResearchQueries = []string{
	"topic:cloudflare-workers",
	"topic:github-app language:go",
}

// fileConfig is the YAML file layout.
type fileConfig struct {
	Research struct {
		Queries      []string `yaml:"queries"`
		MaxResults   int      `yaml:"max_results"`
		SummarizeTop int      `yaml:"summarize_top"`
	} `yaml:"research"`
	Policy struct {
		AutoApplyCap int      `yaml:"auto_apply_cap"`
		BotUsernames []string `yaml:"bot_usernames"`
	} `yaml:"policy"`
}

// HasGitHubCredentials reports whether a GitHub token is configured. Without
// one the server still starts, but every event fails until credentials are
// provided and the process is signaled to reload.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// HasLLM reports whether an Anthropic API key is configured.
func (c *Config) HasLLM() bool {
	return c.AnthropicAPIKey != ""
}

// NewLogger builds a slog.Logger writing to w with the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Load reads configuration and returns a validated Config.
// COLBY_CONFIG_FILE, when set, names a YAML file whose values are applied
// first; COLBY_ environment variables override them.
func Load() (*Config, error) {
	cfg := &Config{
		BotLogin:              "colby[bot]",
		DefaultInstallationID: 1,
		ListenAddr:            "127.0.0.1:8080",
		DBPath:                "colby.db",
		LLMMaxConcurrency:     3,
		CallTimeout:           30 * time.Second,
		EventTimeout:          5 * time.Minute,
		AutoApplyCap:          50,
		BotUsernames:          []string{},
		Research: ResearchConfig{
			Interval:     6 * time.Hour,
			Queries:      append([]string(nil), DefaultResearchQueries...),
			MaxResults:   30,
			SummarizeTop: 5,
		},
		LogLevel:  slog.LevelInfo,
		LogFormat: "text",
	}

	if path, ok := os.LookupEnv("COLBY_CONFIG_FILE"); ok && path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("COLBY_CONFIG_FILE: open %q: %w", path, err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("COLBY_CONFIG_FILE: parse %q: %w", path, err)
	}

	if queries := cleanList(fc.Research.Queries); len(queries) > 0 {
		c.Research.Queries = queries
	}
	if fc.Research.MaxResults != 0 {
		c.Research.MaxResults = fc.Research.MaxResults
	}
	if fc.Research.SummarizeTop != 0 {
		c.Research.SummarizeTop = fc.Research.SummarizeTop
	}
	if fc.Policy.AutoApplyCap != 0 {
		c.AutoApplyCap = fc.Policy.AutoApplyCap
	}
	c.BotUsernames = append(c.BotUsernames, cleanList(fc.Policy.BotUsernames)...)

	return nil
}

func (c *Config) applyEnv() error {
	c.GitHubToken = os.Getenv("COLBY_GITHUB_TOKEN")
	c.WebhookSecret = os.Getenv("COLBY_WEBHOOK_SECRET")

	if v, ok := os.LookupEnv("COLBY_BOT_LOGIN"); ok && v != "" {
		c.BotLogin = v
	}
	if v, ok := os.LookupEnv("COLBY_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := os.LookupEnv("COLBY_DB_PATH"); ok {
		c.DBPath = v
	}

	c.AnthropicAPIKey = os.Getenv("COLBY_ANTHROPIC_API_KEY")
	if c.AnthropicAPIKey == "" {
		c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	c.LLMModel = os.Getenv("COLBY_LLM_MODEL")

	var err error
	if c.DefaultInstallationID, err = envInt64("COLBY_DEFAULT_INSTALLATION_ID", c.DefaultInstallationID); err != nil {
		return err
	}
	if c.LLMMaxConcurrency, err = envInt("COLBY_LLM_MAX_CONCURRENCY", c.LLMMaxConcurrency); err != nil {
		return err
	}
	if c.AutoApplyCap, err = envInt("COLBY_AUTO_APPLY_CAP", c.AutoApplyCap); err != nil {
		return err
	}
	if c.CallTimeout, err = envDuration("COLBY_CALL_TIMEOUT", c.CallTimeout); err != nil {
		return err
	}
	if c.EventTimeout, err = envDuration("COLBY_EVENT_TIMEOUT", c.EventTimeout); err != nil {
		return err
	}
	if c.Research.Interval, err = envDuration("COLBY_RESEARCH_INTERVAL", c.Research.Interval); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("COLBY_LOG_LEVEL"); ok && v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("COLBY_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}
	if v, ok := os.LookupEnv("COLBY_LOG_FORMAT"); ok && v != "" {
		c.LogFormat = strings.ToLower(v)
	}

	return nil
}

func (c *Config) validate() error {
	switch {
	case c.LLMMaxConcurrency < 1:
		return fmt.Errorf("COLBY_LLM_MAX_CONCURRENCY must be at least 1, got %d", c.LLMMaxConcurrency)
	case c.AutoApplyCap < 1:
		return fmt.Errorf("COLBY_AUTO_APPLY_CAP must be at least 1, got %d", c.AutoApplyCap)
	case c.CallTimeout <= 0:
		return fmt.Errorf("COLBY_CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	case c.EventTimeout < 0:
		return fmt.Errorf("COLBY_EVENT_TIMEOUT must not be negative, got %s", c.EventTimeout)
	case c.Research.Interval < 0:
		return fmt.Errorf("COLBY_RESEARCH_INTERVAL must not be negative, got %s", c.Research.Interval)
	case c.Research.MaxResults < 1 || c.Research.MaxResults > 100:
		return fmt.Errorf("research.max_results must be between 1 and 100, got %d", c.Research.MaxResults)
	case c.Research.SummarizeTop < 0:
		return fmt.Errorf("research.summarize_top must not be negative, got %d", c.Research.SummarizeTop)
	case c.DefaultInstallationID < 1:
		return fmt.Errorf("COLBY_DEFAULT_INSTALLATION_ID must be positive, got %d", c.DefaultInstallationID)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("COLBY_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

// cleanList trims entries and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
