// Package app provides the top-level application lifecycle for the trade
// ledger. It wires together the data source, fetch cache, and services, and
// runs the one-shot computation for the configured operating mode, printing
// the result as a JSON document on stdout.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantstack/tradeledger/internal/config"
)

// Query carries the command-line query parameters that select what a mode
// computes. The leaderboard account set and metric live in the config, which
// the CLI merges its flags into before validation.
type Query struct {
	User           string
	Coin           string
	FromMs         int64
	ToMs           int64
	BuilderOnly    bool
	IncludeTrades  bool
	ExcludeTainted bool
}

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	query   Query
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration, query, and logger.
func New(cfg *config.Config, query Query, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		query:  query,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, runs the computation
// for the configured mode, and writes the resulting document to stdout. On
// return the caller should invoke Close to release resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting ledger",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "trades":
		return a.TradesMode(ctx, deps)
	case "pnl":
		return a.PnLMode(ctx, deps)
	case "positions":
		return a.PositionsMode(ctx, deps)
	case "lifecycles":
		return a.LifecyclesMode(ctx, deps)
	case "deposits":
		return a.DepositsMode(ctx, deps)
	case "leaderboard":
		return a.LeaderboardMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
