package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	githubadapter "github.com/jmbish04/gh-bot/internal/adapter/driven/github"
	"github.com/jmbish04/gh-bot/internal/adapter/driven/llm"
	sqliteadapter "github.com/jmbish04/gh-bot/internal/adapter/driven/sqlite"
	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/config"
	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "colby",
		Short:         "GitHub bot that turns review comments into commits, issues and notes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if configFile != "" {
				return os.Setenv("COLBY_CONFIG_FILE", configFile)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides COLBY_CONFIG_FILE)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newResearchCmd(),
		newLedgerCmd(),
		newParseCmd(),
	)
	return root
}

// loadConfig loads configuration and installs the configured logger as the
// process default.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger(os.Stderr))
	return cfg, nil
}

// openDB opens the database and brings its schema up to date.
func openDB(ctx context.Context, cfg *config.Config) (*sqliteadapter.DB, error) {
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	version, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("ledger schema ready", "path", cfg.DBPath, "version", version)
	return db, nil
}

func closeDB(db *sqliteadapter.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// newClientBuilder returns a builder for token-authenticated clients, or nil
// when no token is configured. A token is not scoped to an installation, so
// every installation shares the same credentials.
func newClientBuilder(cfg *config.Config) application.ClientBuilder {
	if !cfg.HasGitHubCredentials() {
		return nil
	}
	token, timeout := cfg.GitHubToken, cfg.CallTimeout
	logger := slog.Default().With("component", "github")
	return func(_ int64) (driven.GitHubClient, error) {
		return githubadapter.NewClient(token, timeout, logger), nil
	}
}

// newTextGenerator returns the LLM adapter, or nil when no API key is set.
func newTextGenerator(cfg *config.Config) (driven.TextGenerator, error) {
	if !cfg.HasLLM() {
		return nil, nil
	}
	gen, err := llm.NewGenerator(llm.Config{
		APIKey:        cfg.AnthropicAPIKey,
		Model:         cfg.LLMModel,
		Timeout:       cfg.CallTimeout,
		MaxConcurrent: int64(cfg.LLMMaxConcurrency),
		Logger:        slog.Default().With("component", "llm"),
	})
	if err != nil {
		return nil, fmt.Errorf("create text generator: %w", err)
	}
	return gen, nil
}

func newResearchService(cfg *config.Config, clients driven.GitHubClientFactory, db *sqliteadapter.DB, gen driven.TextGenerator) *application.ResearchService {
	return application.NewResearchService(clients, sqliteadapter.NewProjectRepo(db), gen, application.ResearchConfig{
		Queries:      cfg.Research.Queries,
		MaxResults:   cfg.Research.MaxResults,
		SummarizeTop: cfg.Research.SummarizeTop,
		Interval:     cfg.Research.Interval,
	}, slog.Default().With("component", "research"))
}
