// Package service composes the ledger engine with the upstream data source
// and fetch cache into the per-account and multi-account query pipelines.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/quantstack/tradeledger/internal/domain"
	"github.com/quantstack/tradeledger/internal/ledger"
)

// Query carries the caller-facing parameters shared by every per-account
// operation.
type Query struct {
	User        string
	Scope       domain.Scope
	BuilderOnly bool
}

// TradesReport is the trade-history payload: the filtered trade list plus
// the aggregates derived from it.
type TradesReport struct {
	User        string                 `json:"user"`
	BuilderOnly bool                   `json:"builderOnly"`
	Coin        string                 `json:"coin,omitempty"`
	FromMs      int64                  `json:"fromMs,omitempty"`
	ToMs        int64                  `json:"toMs,omitempty"`
	Trades      []domain.Trade         `json:"trades"`
	Stats       domain.TradeStats      `json:"stats"`
	Breakdowns  []domain.CoinBreakdown `json:"coinBreakdowns"`
	DailyPnl    []domain.PnLPoint      `json:"dailyPnl"`
}

// PositionsReport is the position-history payload.
type PositionsReport struct {
	User        string                 `json:"user"`
	BuilderOnly bool                   `json:"builderOnly"`
	Snapshots   []domain.PositionState `json:"snapshots"`
	Count       int                    `json:"count"`
}

// LifecyclesReport is the lifecycle payload with summary counts.
type LifecyclesReport struct {
	User        string                `json:"user"`
	BuilderOnly bool                  `json:"builderOnly"`
	Lifecycles  []domain.Lifecycle    `json:"lifecycles"`
	Stats       domain.LifecycleStats `json:"stats"`
}

// DepositsReport is the deposit-history payload.
type DepositsReport struct {
	User     string           `json:"user"`
	Deposits []domain.Deposit `json:"deposits"`
	Total    float64          `json:"total"`
	Count    int              `json:"count"`
}

// LedgerService answers per-account queries. It fetches raw upstream data
// (through the cache when one is configured), runs the ledger engine over
// it, and shapes the output payloads.
type LedgerService struct {
	source          domain.DataSource
	cache           domain.FetchCache // nil disables caching
	targetBuilder   string
	maxStartCapital float64
	logger          *slog.Logger
}

// NewLedgerService creates a LedgerService. cache may be nil.
func NewLedgerService(
	source domain.DataSource,
	cache domain.FetchCache,
	targetBuilder string,
	maxStartCapital float64,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		source:          source,
		cache:           cache,
		targetBuilder:   targetBuilder,
		maxStartCapital: maxStartCapital,
		logger:          logger,
	}
}

// resolveUser validates and canonicalizes an account address.
func resolveUser(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", domain.ErrMissingUser
	}
	if !common.IsHexAddress(user) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, user)
	}
	return strings.ToLower(user), nil
}

// fetchFills returns the account's fill history, cache-first. Cache failures
// other than a miss are logged and ignored.
func (s *LedgerService) fetchFills(ctx context.Context, user string) ([]domain.Fill, error) {
	if s.cache != nil {
		fills, err := s.cache.GetFills(ctx, user)
		if err == nil {
			return fills, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "ledger_service: fills cache read failed",
				slog.String("user", user),
				slog.String("error", err.Error()),
			)
		}
	}

	fills, err := s.source.UserFills(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: fetch fills for %s: %w", user, err)
	}

	if s.cache != nil {
		if err := s.cache.SetFills(ctx, user, fills); err != nil {
			s.logger.WarnContext(ctx, "ledger_service: fills cache write failed",
				slog.String("user", user),
				slog.String("error", err.Error()),
			)
		}
	}
	return fills, nil
}

// fetchState returns the account's clearinghouse snapshot, cache-first.
func (s *LedgerService) fetchState(ctx context.Context, user string) (domain.AccountState, error) {
	if s.cache != nil {
		state, err := s.cache.GetAccountState(ctx, user)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "ledger_service: state cache read failed",
				slog.String("user", user),
				slog.String("error", err.Error()),
			)
		}
	}

	state, err := s.source.AccountState(ctx, user)
	if err != nil {
		return domain.AccountState{}, fmt.Errorf("ledger_service: fetch state for %s: %w", user, err)
	}

	if s.cache != nil {
		if err := s.cache.SetAccountState(ctx, user, state); err != nil {
			s.logger.WarnContext(ctx, "ledger_service: state cache write failed",
				slog.String("user", user),
				slog.String("error", err.Error()),
			)
		}
	}
	return state, nil
}

// loadTrades fetches and normalizes the account's fills.
func (s *LedgerService) loadTrades(ctx context.Context, user string) ([]domain.Trade, error) {
	fills, err := s.fetchFills(ctx, user)
	if err != nil {
		return nil, err
	}
	return ledger.Normalize(fills, s.targetBuilder), nil
}

// Trades returns the scoped, attribution-filtered trade history with its
// derived aggregates.
func (s *LedgerService) Trades(ctx context.Context, q Query) (TradesReport, error) {
	user, err := resolveUser(q.User)
	if err != nil {
		return TradesReport{}, err
	}

	trades, err := s.loadTrades(ctx, user)
	if err != nil {
		return TradesReport{}, err
	}

	// Taint is a lifecycle property, so lifecycles are reconstructed over
	// the full history before any scope filter narrows the trade set.
	lifecycles := ledger.ReconstructLifecycles(trades)
	out := ledger.FilterTradesForOutput(trades, lifecycles, q.BuilderOnly)
	out = ledger.FilterScope(out, q.Scope)

	s.logger.InfoContext(ctx, "ledger_service: trades computed",
		slog.String("user", user),
		slog.Int("total", len(trades)),
		slog.Int("returned", len(out)),
		slog.Bool("builder_only", q.BuilderOnly),
	)

	return TradesReport{
		User:        user,
		BuilderOnly: q.BuilderOnly,
		Coin:        q.Scope.Coin,
		FromMs:      q.Scope.FromMs,
		ToMs:        q.Scope.ToMs,
		Trades:      out,
		Stats:       ledger.ComputeStats(out),
		Breakdowns:  ledger.ComputeCoinBreakdowns(out),
		DailyPnl:    ledger.ComputeDailyPnL(out),
	}, nil
}

// PnL returns the capital-normalized performance summary. Fills and the
// clearinghouse snapshot are fetched concurrently.
func (s *LedgerService) PnL(ctx context.Context, q Query) (domain.PnLResult, error) {
	user, err := resolveUser(q.User)
	if err != nil {
		return domain.PnLResult{}, err
	}

	var (
		trades []domain.Trade
		state  domain.AccountState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trades, err = s.loadTrades(gctx, user)
		return err
	})
	g.Go(func() error {
		var err error
		state, err = s.fetchState(gctx, user)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.PnLResult{}, err
	}

	lifecycles := ledger.ReconstructLifecycles(trades)
	result := ledger.CalculatePnL(trades, lifecycles, &state, user, q.Scope, q.BuilderOnly, s.maxStartCapital)

	s.logger.InfoContext(ctx, "ledger_service: pnl computed",
		slog.String("user", user),
		slog.Float64("realized_pnl", result.RealizedPnl),
		slog.Float64("return_pct", result.ReturnPct),
		slog.Bool("tainted", result.Tainted),
	)
	return result, nil
}

// PositionHistory returns per-trade position snapshots, newest first.
func (s *LedgerService) PositionHistory(ctx context.Context, q Query) (PositionsReport, error) {
	user, err := resolveUser(q.User)
	if err != nil {
		return PositionsReport{}, err
	}

	trades, err := s.loadTrades(ctx, user)
	if err != nil {
		return PositionsReport{}, err
	}

	scoped := ledger.FilterScope(trades, q.Scope)
	snapshots := ledger.BuildPositionHistory(scoped, q.BuilderOnly)

	return PositionsReport{
		User:        user,
		BuilderOnly: q.BuilderOnly,
		Snapshots:   snapshots,
		Count:       len(snapshots),
	}, nil
}

// Lifecycles returns the account's holding episodes. When includeTrades is
// false the per-lifecycle trade lists are stripped from the payload. In
// builder-only mode only builder-only lifecycles are returned; the stats
// still count tainted episodes so the exclusion is visible.
func (s *LedgerService) Lifecycles(ctx context.Context, q Query, includeTrades bool) (LifecyclesReport, error) {
	user, err := resolveUser(q.User)
	if err != nil {
		return LifecyclesReport{}, err
	}

	trades, err := s.loadTrades(ctx, user)
	if err != nil {
		return LifecyclesReport{}, err
	}

	lifecycles := ledger.ReconstructLifecycles(trades)
	stats := ledger.ComputeLifecycleStats(lifecycles, q.BuilderOnly)

	out := make([]domain.Lifecycle, 0, len(lifecycles))
	for _, lc := range lifecycles {
		if q.BuilderOnly && !lc.IsBuilderOnly {
			continue
		}
		if q.Scope.Coin != "" && lc.Coin != q.Scope.Coin {
			continue
		}
		if !includeTrades {
			lc.Trades = nil
		}
		out = append(out, lc)
	}

	return LifecyclesReport{
		User:        user,
		BuilderOnly: q.BuilderOnly,
		Lifecycles:  out,
		Stats:       stats,
	}, nil
}

// Deposits returns the account's USDC inflows, newest first, with the
// running total.
func (s *LedgerService) Deposits(ctx context.Context, q Query) (DepositsReport, error) {
	user, err := resolveUser(q.User)
	if err != nil {
		return DepositsReport{}, err
	}

	deposits, err := s.source.UserDeposits(ctx, user)
	if err != nil {
		return DepositsReport{}, fmt.Errorf("ledger_service: fetch deposits for %s: %w", user, err)
	}

	filtered := make([]domain.Deposit, 0, len(deposits))
	var total float64
	for _, d := range deposits {
		if q.Scope.FromMs > 0 && d.TimeMs < q.Scope.FromMs {
			continue
		}
		if q.Scope.ToMs > 0 && d.TimeMs > q.Scope.ToMs {
			continue
		}
		filtered = append(filtered, d)
		total += d.Amount
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].TimeMs > filtered[j].TimeMs
	})

	return DepositsReport{
		User:     user,
		Deposits: filtered,
		Total:    total,
		Count:    len(filtered),
	}, nil
}
