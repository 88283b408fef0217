package ledger

import "github.com/quantstack/tradeledger/internal/domain"

// Capital-normalization bounds. The floor keeps near-zero denominators from
// exploding the return percentage; the cap (configurable per request,
// DefaultMaxStartCapital when unset) levels the playing field across account
// sizes.
const (
	MinEffectiveCapital    = 100.0
	DefaultMaxStartCapital = 10000.0
)

// cleanBuilderLegs collects the builder-attributed trades of every
// non-tainted lifecycle, in chronological order. Episode membership decides
// exclusion, not trade identity: a reversal fill split across a tainted
// closing episode and a clean opening one contributes its residual leg even
// though both legs share the parent fill's hash.
func cleanBuilderLegs(lifecycles []domain.Lifecycle) []domain.Trade {
	var legs []domain.Trade
	for _, l := range lifecycles {
		if l.IsTainted {
			continue
		}
		for _, t := range l.Trades {
			if t.IsBuilderTrade {
				legs = append(legs, t)
			}
		}
	}
	return sortChronological(legs)
}

// CalculatePnL aggregates scope-matched trades into realized PnL, volume,
// fees, and a capped-denominator return percentage.
//
// In builder-only mode the sums run over the attributed legs of non-tainted
// lifecycles, so unattributed trades and whole tainted episodes are
// excluded; the Tainted flag still reports that the scope mixed attribution,
// because exclusion is a correction the caller should know about, not a
// silent one. Unrealized PnL always comes from the full account state: it
// reflects live exposure, not historical scope.
func CalculatePnL(
	trades []domain.Trade,
	lifecycles []domain.Lifecycle,
	state *domain.AccountState,
	user string,
	scope domain.Scope,
	builderOnly bool,
	maxStartCapital float64,
) domain.PnLResult {
	if maxStartCapital <= 0 {
		maxStartCapital = DefaultMaxStartCapital
	}

	var (
		hasBuilder, hasNonBuilder bool
		realizedPnl, feesPaid     float64
		volume                    float64
		tradeCount, builderCount  int
	)

	// Attribution diagnostics run over the raw trade set regardless of mode.
	for _, t := range trades {
		if !scope.Matches(t) {
			continue
		}
		if t.IsBuilderTrade {
			hasBuilder = true
			builderCount++
		} else {
			hasNonBuilder = true
		}
	}

	source := trades
	if builderOnly {
		source = cleanBuilderLegs(lifecycles)
	}
	for _, t := range source {
		if !scope.Matches(t) {
			continue
		}
		realizedPnl += t.ClosedPnl
		feesPaid += t.Fee
		volume += t.NotionalValue
		tradeCount++
	}

	var currentEquity, unrealizedPnl float64
	if state != nil {
		currentEquity = state.AccountValue
		unrealizedPnl = state.UnrealizedPnl()
	}

	// Back realized gains and fees out of current equity to estimate the
	// starting capital, then clamp into [floor, cap].
	estimatedStart := currentEquity - realizedPnl + feesPaid
	effectiveCapital := min(max(estimatedStart, MinEffectiveCapital), maxStartCapital)

	var returnPct float64
	if effectiveCapital > 0 {
		returnPct = realizedPnl / effectiveCapital * 100
	}

	return domain.PnLResult{
		User:              user,
		Coin:              scope.Coin,
		FromMs:            scope.FromMs,
		ToMs:              scope.ToMs,
		BuilderOnly:       builderOnly,
		RealizedPnl:       realizedPnl,
		UnrealizedPnl:     unrealizedPnl,
		ReturnPct:         returnPct,
		EffectiveCapital:  effectiveCapital,
		FeesPaid:          feesPaid,
		Volume:            volume,
		TradeCount:        tradeCount,
		BuilderTradeCount: builderCount,
		Tainted:           builderOnly && hasBuilder && hasNonBuilder,
		CurrentEquity:     currentEquity,
	}
}

// ComputeLifecycleStats counts open, closed, and tainted lifecycles. With
// builderOnly set, Open/Closed/Total count only attribution-pure lifecycles;
// Tainted always counts the full set.
func ComputeLifecycleStats(lifecycles []domain.Lifecycle, builderOnly bool) domain.LifecycleStats {
	var stats domain.LifecycleStats
	for _, l := range lifecycles {
		if l.IsTainted {
			stats.Tainted++
		}
		if builderOnly && (!l.IsBuilderOnly || l.IsTainted) {
			continue
		}
		stats.Total++
		if l.Status == domain.LifecycleOpen {
			stats.Open++
		} else {
			stats.Closed++
		}
	}
	return stats
}
