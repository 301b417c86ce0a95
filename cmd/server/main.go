// Command server runs the accounting AI backend: the tool-calling chat
// endpoint, the health check, and the compat REST routes.
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

	"github.com/comptaline/as400-ai-backend/pkg/agent"
	"github.com/comptaline/as400-ai-backend/pkg/config"
	"github.com/comptaline/as400-ai-backend/pkg/models"
	"github.com/comptaline/as400-ai-backend/pkg/server"
	"github.com/comptaline/as400-ai-backend/pkg/store"
	"github.com/comptaline/as400-ai-backend/pkg/tools"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := agent.NewRegistry(
		tools.NewQueryDatabase(st),
		tools.NewAccountBalance(st),
		tools.NewDetectAnomalies(st, tools.WithToolLogger(logger)),
	)
	if err != nil {
		return err
	}

	model, displayMode := buildModel(cfg, registry.Specs())

	executor := agent.NewExecutor(registry, logger)
	loop := agent.NewLoop(model, executor,
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithTurnTimeout(cfg.TurnTimeout),
		agent.WithBudget(cfg.Budget),
		agent.WithLoopLogger(logger),
	)

	srv := server.New(loop, st, displayMode,
		server.WithLogger(logger),
		server.WithOriginChecker(cfg.OriginAllowed),
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "mode", displayMode, "version", server.Version)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// openStore prefers a direct Postgres connection and falls back to the
// Supabase PostgREST API.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	rest, err := store.NewPostgREST(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		return nil, nil, err
	}
	return rest, func() {}, nil
}

func buildModel(cfg *config.Config, specs []agent.ToolSpec) (agent.ChatModel, string) {
	if cfg.Backend == config.BackendThesys {
		return models.NewThesys(cfg.ThesysAPIKey, cfg.ThesysModel, specs), "Thesys C1"
	}
	return models.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, specs), "Anthropic Claude"
}
