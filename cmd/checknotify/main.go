package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/checknotify/internal/adapter/driven/github"
	"github.com/ericfisherdev/checknotify/internal/adapter/driven/mailtemplate"
	sqliteadapter "github.com/ericfisherdev/checknotify/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/checknotify/internal/adapter/driving/http"
	"github.com/ericfisherdev/checknotify/internal/application"
	"github.com/ericfisherdev/checknotify/internal/config"
	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"adaptive_polling", cfg.AdaptivePolling,
		"use_html", cfg.UseHTML,
		"seed_repos", len(cfg.Repos),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	repoStore := sqliteadapter.NewWatchList(db)
	changeStore := sqliteadapter.NewChangeRepo(db)
	checkerStore := sqliteadapter.NewCheckerRepo(db)
	checkStore := sqliteadapter.NewCheckRepo(db)
	outbox := sqliteadapter.NewOutboxRepo(db)
	renderer := mailtemplate.NewRenderer(cfg.UseHTML)

	if err := seedRepos(ctx, repoStore, cfg.Repos); err != nil {
		return err
	}

	// 6. Create services. Polling needs a GitHub token.
	notifySvc := application.NewNotifyService(checkerStore, checkStore, renderer, outbox)

	var pollSvc *application.PollService
	if cfg.PollingEnabled() {
		ghClient := githubadapter.NewClient(cfg.GitHubToken)
		pollSvc = application.NewPollService(
			ghClient,
			repoStore,
			changeStore,
			checkerStore,
			checkStore,
			notifySvc,
			cfg.PollInterval,
			cfg.AdaptivePolling,
		)
		go pollSvc.Start(ctx)
	} else {
		slog.Warn("no github token configured, polling disabled")
	}

	// 7. Create HTTP handler.
	apiHandler := httphandler.NewHandler(ctx, repoStore, changeStore, checkerStore, checkStore, outbox, pollSvc, notifySvc, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second, // Synchronous refreshes can take a while.
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("checknotify started",
		"listen_addr", cfg.ListenAddr,
		"polling", pollSvc != nil,
	)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// 10. Let an in-flight poll finish its writes before the database closes.
	if pollSvc != nil {
		select {
		case <-pollSvc.Done():
		case <-shutdownCtx.Done():
			slog.Warn("poll service did not stop before shutdown timeout")
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// seedRepos adds the configured repositories to the watch list. Repositories
// already watched are left alone.
func seedRepos(ctx context.Context, store driven.RepoStore, repos []model.Repository) error {
	for _, repo := range repos {
		repo.AddedAt = time.Now().UTC()
		err := store.Add(ctx, repo)
		switch {
		case err == nil:
			slog.Info("repository seeded", "repo", repo.FullName)
		case errors.Is(err, driven.ErrRepoAlreadyExists):
		default:
			return fmt.Errorf("seed repository %s: %w", repo.FullName, err)
		}
	}
	return nil
}
