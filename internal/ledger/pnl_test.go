package ledger

import (
	"math"
	"testing"

	"github.com/quantstack/tradeledger/internal/domain"
)

func TestCalculatePnL_CappedNormalization(t *testing.T) {
	trades := []domain.Trade{
		tr("BTC", "A", 100, 1, 1, true, 500),
	}
	trades[0].Fee = 10
	state := &domain.AccountState{AccountValue: 50000}

	res := CalculatePnL(trades, nil, state, "0xuser", domain.Scope{}, false, 10000)

	// estimatedStart = 50000 - 500 + 10 = 49510 → capped at 10000.
	if res.EffectiveCapital != 10000 {
		t.Errorf("expected effective capital 10000, got %f", res.EffectiveCapital)
	}
	if res.ReturnPct != 5.0 {
		t.Errorf("expected return 5.0%%, got %f", res.ReturnPct)
	}
}

func TestCalculatePnL_FloorPreventsBlowup(t *testing.T) {
	trades := []domain.Trade{
		tr("BTC", "A", 100, 1, 1, true, 50),
	}
	state := &domain.AccountState{AccountValue: 20} // estimated start well below floor

	res := CalculatePnL(trades, nil, state, "0xuser", domain.Scope{}, false, 10000)
	if res.EffectiveCapital != MinEffectiveCapital {
		t.Errorf("expected floor %f, got %f", MinEffectiveCapital, res.EffectiveCapital)
	}
	if math.IsNaN(res.ReturnPct) || math.IsInf(res.ReturnPct, 0) {
		t.Errorf("return must stay finite, got %f", res.ReturnPct)
	}
}

func TestCalculatePnL_BoundednessProperty(t *testing.T) {
	equities := []float64{0, 1, 99.99, 100, 5000, 10000, 1e7, 1e12}
	pnls := []float64{-1e6, -500, 0, 42.5, 1e6}

	for _, eq := range equities {
		for _, pnl := range pnls {
			trades := []domain.Trade{tr("BTC", "A", 1, 1, 1, true, pnl)}
			state := &domain.AccountState{AccountValue: eq}

			res := CalculatePnL(trades, nil, state, "0xuser", domain.Scope{}, false, 10000)
			if res.EffectiveCapital < MinEffectiveCapital || res.EffectiveCapital > 10000 {
				t.Errorf("equity=%f pnl=%f: effective capital %f outside [100, 10000]", eq, pnl, res.EffectiveCapital)
			}
			if math.IsNaN(res.ReturnPct) || math.IsInf(res.ReturnPct, 0) {
				t.Errorf("equity=%f pnl=%f: non-finite return %f", eq, pnl, res.ReturnPct)
			}
		}
	}
}

func TestCalculatePnL_EmptyInput(t *testing.T) {
	res := CalculatePnL(nil, nil, nil, "0xuser", domain.Scope{}, false, 0)

	if res.RealizedPnl != 0 || res.Volume != 0 || res.TradeCount != 0 {
		t.Errorf("expected all-zero aggregates, got %+v", res)
	}
	if res.ReturnPct != 0 {
		t.Errorf("expected zero return for empty input, got %f", res.ReturnPct)
	}
	if res.Tainted {
		t.Error("empty scope cannot be tainted")
	}
}

func TestCalculatePnL_ScopeFiltering(t *testing.T) {
	trades := []domain.Trade{
		tr("BTC", "A", 100, 1, 100, true, 10),
		tr("BTC", "A", 100, 1, 200, true, 20),
		tr("ETH", "A", 100, 1, 150, true, 40),
		tr("BTC", "A", 100, 1, 300, true, 80),
	}

	res := CalculatePnL(trades, nil, nil, "0xuser", domain.Scope{Coin: "BTC", FromMs: 150, ToMs: 250}, false, 0)
	if res.TradeCount != 1 {
		t.Fatalf("expected 1 scope-matched trade, got %d", res.TradeCount)
	}
	if res.RealizedPnl != 20 {
		t.Errorf("expected realized pnl 20, got %f", res.RealizedPnl)
	}
}

func TestCalculatePnL_BuilderOnlyExcludesTaintedLifecycles(t *testing.T) {
	// Tainted episode: builder buy + non-builder sell. Pure episode on ETH.
	btcBuy := tr("BTC", "B", 100, 1, 1, true, 0)
	btcSell := tr("BTC", "A", 110, 1, 2, false, 10)
	ethBuy := tr("ETH", "B", 10, 1, 3, true, 0)
	ethSell := tr("ETH", "A", 12, 1, 4, true, 2)
	trades := []domain.Trade{btcBuy, btcSell, ethBuy, ethSell}

	lcs := ReconstructLifecycles(trades)
	res := CalculatePnL(trades, lcs, nil, "0xuser", domain.Scope{}, true, 0)

	// The builder-attributed BTC buy sits in a tainted lifecycle and must be
	// excluded along with the non-builder sell.
	if res.TradeCount != 2 {
		t.Errorf("expected only the 2 pure ETH trades, got %d", res.TradeCount)
	}
	if res.RealizedPnl != 2 {
		t.Errorf("expected realized pnl 2 from the pure episode, got %f", res.RealizedPnl)
	}
	if !res.Tainted {
		t.Error("mixed-attribution scope must report tainted even after exclusion")
	}
}

func TestCalculatePnL_SplitReversalKeepsCleanResidual(t *testing.T) {
	// An unattributed buy taints the closing episode, but the attributed
	// sell flips through zero: its residual leg opens a clean short episode
	// and must survive builder-only exclusion despite sharing the parent
	// fill's hash with the tainted closing leg.
	trades := []domain.Trade{
		tr("BTC", "B", 100, 1, 1, false, 0),
		tr("BTC", "A", 110, 3, 2, true, 10),
	}
	lcs := ReconstructLifecycles(trades)

	res := CalculatePnL(trades, lcs, nil, "0xuser", domain.Scope{}, true, 0)
	if res.TradeCount != 1 {
		t.Fatalf("expected the residual leg only, got %d trades", res.TradeCount)
	}
	if res.RealizedPnl != 0 {
		t.Errorf("the tainted closing leg's pnl must be excluded, got %f", res.RealizedPnl)
	}
	if res.Volume != 220 {
		t.Errorf("expected residual volume 220, got %f", res.Volume)
	}
	if !res.Tainted {
		t.Error("mixed-attribution scope must report tainted")
	}
}

func TestCalculatePnL_AllBuilderNotTainted(t *testing.T) {
	trades := []domain.Trade{
		tr("BTC", "B", 100, 1, 1, true, 0),
		tr("BTC", "A", 110, 1, 2, true, 10),
	}
	lcs := ReconstructLifecycles(trades)

	res := CalculatePnL(trades, lcs, nil, "0xuser", domain.Scope{}, true, 0)
	if res.Tainted {
		t.Error("all-builder scope must not be tainted")
	}
	if res.TradeCount != 2 {
		t.Errorf("builder-only must retain all pure trades, got %d", res.TradeCount)
	}
}

func TestCalculatePnL_FilterConsistency(t *testing.T) {
	trades := []domain.Trade{
		tr("BTC", "B", 100, 2, 1, true, 0),
		tr("BTC", "A", 105, 2, 2, false, 10),
		tr("ETH", "B", 10, 5, 3, true, 0),
		tr("ETH", "A", 11, 5, 4, true, 5),
	}
	lcs := ReconstructLifecycles(trades)

	unfiltered := CalculatePnL(trades, lcs, nil, "0xuser", domain.Scope{}, false, 0)
	filtered := CalculatePnL(trades, lcs, nil, "0xuser", domain.Scope{}, true, 0)

	if filtered.TradeCount > unfiltered.TradeCount {
		t.Errorf("builderOnly increased trade count: %d > %d", filtered.TradeCount, unfiltered.TradeCount)
	}
	if filtered.Volume > unfiltered.Volume {
		t.Errorf("builderOnly increased volume: %f > %f", filtered.Volume, unfiltered.Volume)
	}
}

func TestCalculatePnL_UnrealizedFromAccountState(t *testing.T) {
	state := &domain.AccountState{
		AccountValue: 1000,
		AssetPositions: []domain.AssetPosition{
			{Coin: "BTC", UnrealizedPnl: 50},
			{Coin: "ETH", UnrealizedPnl: -20},
		},
	}

	res := CalculatePnL(nil, nil, state, "0xuser", domain.Scope{Coin: "BTC"}, false, 0)
	// Unrealized PnL reflects live exposure and is never scope-filtered.
	if res.UnrealizedPnl != 30 {
		t.Errorf("expected unrealized 30, got %f", res.UnrealizedPnl)
	}
}

func TestComputeLifecycleStats(t *testing.T) {
	end := int64(10)
	lcs := []domain.Lifecycle{
		{Status: domain.LifecycleClosed, EndTime: &end, IsBuilderOnly: true},
		{Status: domain.LifecycleOpen, IsBuilderOnly: true},
		{Status: domain.LifecycleClosed, EndTime: &end, IsTainted: true},
		{Status: domain.LifecycleClosed, EndTime: &end}, // non-builder, pure
	}

	all := ComputeLifecycleStats(lcs, false)
	if all.Total != 4 || all.Open != 1 || all.Closed != 3 || all.Tainted != 1 {
		t.Errorf("unexpected stats %+v", all)
	}

	strict := ComputeLifecycleStats(lcs, true)
	if strict.Total != 2 || strict.Open != 1 || strict.Closed != 1 {
		t.Errorf("builder-only stats must count pure lifecycles only, got %+v", strict)
	}
	if strict.Tainted != 1 {
		t.Errorf("tainted count must cover the full set, got %d", strict.Tainted)
	}
}
