package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/quantstack/tradeledger/internal/domain"
	"github.com/quantstack/tradeledger/internal/service"
)

// emit writes v to stdout as an indented JSON document. Logs go to stderr, so
// stdout carries exactly one machine-readable payload per run.
func emit(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: encode output: %w", err)
	}
	return nil
}

func (a *App) serviceQuery() service.Query {
	return service.Query{
		User: a.query.User,
		Scope: domain.Scope{
			Coin:   a.query.Coin,
			FromMs: a.query.FromMs,
			ToMs:   a.query.ToMs,
		},
		BuilderOnly: a.query.BuilderOnly,
	}
}

// TradesMode prints the filtered trade history with its aggregates.
func (a *App) TradesMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Ledger.Trades(ctx, a.serviceQuery())
	if err != nil {
		return err
	}
	return emit(report)
}

// PnLMode prints the capital-normalized performance summary.
func (a *App) PnLMode(ctx context.Context, deps *Dependencies) error {
	result, err := deps.Ledger.PnL(ctx, a.serviceQuery())
	if err != nil {
		return err
	}
	return emit(result)
}

// PositionsMode prints per-trade position snapshots, newest first.
func (a *App) PositionsMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Ledger.PositionHistory(ctx, a.serviceQuery())
	if err != nil {
		return err
	}
	return emit(report)
}

// LifecyclesMode prints the account's holding episodes with summary counts.
func (a *App) LifecyclesMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Ledger.Lifecycles(ctx, a.serviceQuery(), a.query.IncludeTrades)
	if err != nil {
		return err
	}
	return emit(report)
}

// DepositsMode prints the account's USDC inflows.
func (a *App) DepositsMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Ledger.Deposits(ctx, a.serviceQuery())
	if err != nil {
		return err
	}
	return emit(report)
}

// LeaderboardMode ranks the configured accounts and prints the board.
func (a *App) LeaderboardMode(ctx context.Context, deps *Dependencies) error {
	users := a.cfg.Leaderboard.Users
	metric := a.cfg.Leaderboard.Metric

	a.logger.InfoContext(ctx, "building leaderboard",
		slog.Int("users", len(users)),
		slog.String("metric", metric),
	)

	report, err := deps.Leaderboard.Build(ctx, service.LeaderboardQuery{
		Users:  users,
		Metric: domain.Metric(metric),
		Scope: domain.Scope{
			Coin:   a.query.Coin,
			FromMs: a.query.FromMs,
			ToMs:   a.query.ToMs,
		},
		BuilderOnly:    a.query.BuilderOnly,
		ExcludeTainted: a.query.ExcludeTainted,
	})
	if err != nil {
		return err
	}
	return emit(report)
}
