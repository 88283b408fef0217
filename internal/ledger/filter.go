package ledger

import (
	"sort"
	"time"

	"github.com/quantstack/tradeledger/internal/domain"
)

// FilterScope returns the trades matching the scope, preserving order.
func FilterScope(trades []domain.Trade, scope domain.Scope) []domain.Trade {
	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if scope.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// FilterTradesForOutput applies strict builder-only filtering for
// presentation: the output is the attributed legs of non-tainted lifecycles
// in chronological order, so unattributed trades and whole tainted episodes
// are dropped while the clean residual leg of a split reversal survives.
// Without builderOnly the input is returned unchanged.
func FilterTradesForOutput(trades []domain.Trade, lifecycles []domain.Lifecycle, builderOnly bool) []domain.Trade {
	if !builderOnly {
		return trades
	}
	return cleanBuilderLegs(lifecycles)
}

// ComputeStats derives presentation aggregates from an already-filtered
// trade set. Winning means realized PnL strictly above zero; best and worst
// trade are 0 for an empty set.
func ComputeStats(trades []domain.Trade) domain.TradeStats {
	stats := domain.TradeStats{TradeCount: len(trades)}
	if len(trades) == 0 {
		return stats
	}

	winning := 0
	best, worst := trades[0].ClosedPnl, trades[0].ClosedPnl
	for _, t := range trades {
		if t.ClosedPnl > 0 {
			winning++
		}
		if t.ClosedPnl > best {
			best = t.ClosedPnl
		}
		if t.ClosedPnl < worst {
			worst = t.ClosedPnl
		}
		stats.TotalVolume += t.NotionalValue
		stats.TotalRealizedPnl += t.ClosedPnl
		stats.TotalFees += t.Fee
		if t.IsBuilderTrade {
			stats.BuilderTradeCount++
		}
	}

	stats.WinRate = float64(winning) / float64(len(trades)) * 100
	stats.AvgPnl = stats.TotalRealizedPnl / float64(len(trades))
	stats.BestTrade = best
	stats.WorstTrade = worst
	return stats
}

// ComputeCoinBreakdowns groups volume, realized PnL, fees, and trade count
// by coin, ordered by volume descending (coin ascending on ties).
func ComputeCoinBreakdowns(trades []domain.Trade) []domain.CoinBreakdown {
	byCoin := make(map[string]*domain.CoinBreakdown)
	for _, t := range trades {
		b, ok := byCoin[t.Coin]
		if !ok {
			b = &domain.CoinBreakdown{Coin: t.Coin}
			byCoin[t.Coin] = b
		}
		b.Volume += t.NotionalValue
		b.RealizedPnl += t.ClosedPnl
		b.FeesPaid += t.Fee
		b.TradeCount++
	}

	out := make([]domain.CoinBreakdown, 0, len(byCoin))
	for _, b := range byCoin {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Coin < out[j].Coin
	})
	return out
}

// ComputeDailyPnL buckets realized PnL per UTC day and carries a running
// cumulative total, oldest day first.
func ComputeDailyPnL(trades []domain.Trade) []domain.PnLPoint {
	sorted := sortChronological(trades)

	daily := make(map[string]float64)
	var days []string
	for _, t := range sorted {
		day := time.UnixMilli(t.TimeMs).UTC().Format("2006-01-02")
		if _, ok := daily[day]; !ok {
			days = append(days, day)
		}
		daily[day] += t.ClosedPnl
	}
	sort.Strings(days)

	points := make([]domain.PnLPoint, 0, len(days))
	var cumulative float64
	for _, day := range days {
		cumulative += daily[day]
		points = append(points, domain.PnLPoint{
			Date:       day,
			Pnl:        daily[day],
			Cumulative: cumulative,
		})
	}
	return points
}
