package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/jmbish04/gh-bot/internal/adapter/driven/sqlite"
	httphandler "github.com/jmbish04/gh-bot/internal/adapter/driving/http"
	webhandler "github.com/jmbish04/gh-bot/internal/adapter/driving/web"
	"github.com/jmbish04/gh-bot/internal/application"
	"github.com/jmbish04/gh-bot/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"bot_login", cfg.BotLogin,
		"auto_apply_cap", cfg.AutoApplyCap,
		"research_interval", cfg.Research.Interval,
		"llm_enabled", cfg.HasLLM(),
	)
	if cfg.WebhookSecret == "" {
		slog.Warn("COLBY_WEBHOOK_SECRET is not set, webhook deliveries will be rejected")
	}

	// 2. Open database and run migrations.
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)
	slog.Info("database ready", "path", cfg.DBPath)

	// 3. Wire driven adapters.
	commandStore := sqliteadapter.NewCommandRepo(db)
	operationStore := sqliteadapter.NewOperationRepo(db)
	bestPracticeStore := sqliteadapter.NewBestPracticeRepo(db)
	issueLinkStore := sqliteadapter.NewIssueLinkRepo(db)
	repoSettingsStore := sqliteadapter.NewRepoSettingsRepo(db)
	botConfigStore := sqliteadapter.NewBotConfigRepo(db)

	provider := application.NewGitHubClientProvider(newClientBuilder(cfg))
	if !provider.HasClient() {
		slog.Warn("no github token configured, events will fail until COLBY_GITHUB_TOKEN is set and SIGHUP is sent")
	}

	textGen, err := newTextGenerator(cfg)
	if err != nil {
		return err
	}

	// 4. Application services.
	workflow := application.NewEventWorkflow(application.WorkflowDeps{
		Clients:       provider,
		Commands:      commandStore,
		Operations:    operationStore,
		BestPractices: bestPracticeStore,
		IssueLinks:    issueLinkStore,
		RepoSettings:  repoSettingsStore,
		BotConfig:     botConfigStore,
		TextGenerator: textGen,
	}, application.WorkflowConfig{
		AutoApplyCap: cfg.AutoApplyCap,
		EventTimeout: cfg.EventTimeout,
		BotUsernames: cfg.BotUsernames,
	}, slog.Default())

	research := newResearchService(cfg, provider, db, textGen)
	go research.Start(ctx)

	// 5. Reload GitHub credentials on SIGHUP.
	go reloadOnHangup(ctx, provider)

	// 6. HTTP routes.
	apiHandler := httphandler.NewHandler(httphandler.Deps{
		Workflow:      workflow,
		Commands:      commandStore,
		Operations:    operationStore,
		BestPractices: bestPracticeStore,
		IssueLinks:    issueLinkStore,
		RepoSettings:  repoSettingsStore,
		BotConfig:     botConfigStore,
		Research:      research,
	}, httphandler.WebhookConfig{
		Secret:                []byte(cfg.WebhookSecret),
		BotLogin:              cfg.BotLogin,
		DefaultInstallationID: cfg.DefaultInstallationID,
	}, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webHandler := webhandler.NewHandler(commandStore, operationStore, bestPracticeStore, research, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler)

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	// Events run synchronously, so the write timeout must outlast the event timeout.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.EventTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("colby started", "listen_addr", cfg.ListenAddr)

	// 7. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 8. Graceful shutdown. In-flight events get the drain window to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// reloadOnHangup re-reads configuration on SIGHUP and swaps the GitHub
// client builder so a rotated token takes effect without a restart.
func reloadOnHangup(ctx context.Context, provider *application.GitHubClientProvider) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load()
			if err != nil {
				slog.Error("config reload failed, keeping current credentials", "error", err)
				continue
			}
			provider.Replace(newClientBuilder(cfg))
			slog.Info("github credentials reloaded", "has_token", cfg.HasGitHubCredentials())
		}
	}
}
