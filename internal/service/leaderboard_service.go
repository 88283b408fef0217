package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/quantstack/tradeledger/internal/domain"
)

// maxAccountFetches bounds how many accounts are processed concurrently.
const maxAccountFetches = 8

// LeaderboardQuery selects the accounts, ranking metric, and filters for a
// multi-account aggregate.
type LeaderboardQuery struct {
	Users          []string
	Metric         domain.Metric
	Scope          domain.Scope
	BuilderOnly    bool
	ExcludeTainted bool
}

// LeaderboardReport is the ranked multi-account payload. Skipped counts
// accounts dropped for fetch failures or filters.
type LeaderboardReport struct {
	Metric      domain.Metric             `json:"metric"`
	BuilderOnly bool                      `json:"builderOnly"`
	Entries     []domain.LeaderboardEntry `json:"entries"`
	Skipped     int                       `json:"skipped"`
}

// LeaderboardService ranks a set of accounts by one performance metric. It
// runs the per-account pipeline through a LedgerService with bounded
// parallelism; one account's failure never sinks the whole board.
type LeaderboardService struct {
	ledger *LedgerService
	logger *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService on top of the given
// per-account service.
func NewLeaderboardService(ledger *LedgerService, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{ledger: ledger, logger: logger}
}

func metricValue(m domain.Metric, r domain.PnLResult) float64 {
	switch m {
	case domain.MetricReturnPct:
		return r.ReturnPct
	case domain.MetricVolume:
		return r.Volume
	case domain.MetricTradeCount:
		return float64(r.TradeCount)
	default:
		return r.RealizedPnl
	}
}

// Build computes the ranked leaderboard for q. Accounts whose data cannot
// be fetched are logged and skipped; in builder-only mode tainted accounts
// are dropped, as are all tainted accounts when ExcludeTainted is set.
func (s *LeaderboardService) Build(ctx context.Context, q LeaderboardQuery) (LeaderboardReport, error) {
	if !q.Metric.Valid() {
		return LeaderboardReport{}, fmt.Errorf("leaderboard_service: unknown metric %q", q.Metric)
	}
	if len(q.Users) == 0 {
		return LeaderboardReport{}, fmt.Errorf("leaderboard_service: %w", domain.ErrMissingUser)
	}

	// One slot per requested account keeps results positionally stable; a
	// nil slot marks an account that failed and is skipped below.
	results := make([]*domain.LeaderboardEntry, len(q.Users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAccountFetches)

	for i, rawUser := range q.Users {
		g.Go(func() error {
			pq := Query{User: rawUser, Scope: q.Scope, BuilderOnly: q.BuilderOnly}

			result, err := s.ledger.PnL(gctx, pq)
			if err != nil {
				s.logger.WarnContext(gctx, "leaderboard_service: account skipped",
					slog.String("user", rawUser),
					slog.String("error", err.Error()),
				)
				return nil
			}

			lcReport, err := s.ledger.Lifecycles(gctx, pq, false)
			if err != nil {
				s.logger.WarnContext(gctx, "leaderboard_service: account skipped",
					slog.String("user", rawUser),
					slog.String("error", err.Error()),
				)
				return nil
			}

			results[i] = &domain.LeaderboardEntry{
				User:           result.User,
				MetricValue:    metricValue(q.Metric, result),
				Volume:         result.Volume,
				Pnl:            result.RealizedPnl,
				ReturnPct:      result.ReturnPct,
				TradeCount:     result.TradeCount,
				Tainted:        result.Tainted,
				LifecycleStats: lcReport.Stats,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LeaderboardReport{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	skipped := 0
	for _, e := range results {
		if e == nil {
			skipped++
			continue
		}
		if e.Tainted && (q.BuilderOnly || q.ExcludeTainted) {
			skipped++
			continue
		}
		entries = append(entries, *e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].MetricValue != entries[j].MetricValue {
			return entries[i].MetricValue > entries[j].MetricValue
		}
		return entries[i].User < entries[j].User
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	s.logger.InfoContext(ctx, "leaderboard_service: board built",
		slog.String("metric", string(q.Metric)),
		slog.Int("entries", len(entries)),
		slog.Int("skipped", skipped),
	)

	return LeaderboardReport{
		Metric:      q.Metric,
		BuilderOnly: q.BuilderOnly,
		Entries:     entries,
		Skipped:     skipped,
	}, nil
}
