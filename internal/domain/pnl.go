package domain

// Scope restricts a trade set by coin and inclusive time bounds. A zero value
// leaves the corresponding dimension unbounded, matching the upstream API
// where 0/absent means "from the beginning" / "until now".
type Scope struct {
	Coin   string `json:"coin,omitempty"`
	FromMs int64  `json:"fromMs,omitempty"`
	ToMs   int64  `json:"toMs,omitempty"`
}

// Matches reports whether a trade falls inside the scope.
func (s Scope) Matches(t Trade) bool {
	if s.Coin != "" && t.Coin != s.Coin {
		return false
	}
	if s.FromMs > 0 && t.TimeMs < s.FromMs {
		return false
	}
	if s.ToMs > 0 && t.TimeMs > s.ToMs {
		return false
	}
	return true
}

// PnLResult is the capital-normalized performance summary for one account
// within one scope. EffectiveCapital is the capped denominator used for
// ReturnPct; Tainted warns that builder-only mode dropped trades from a
// mixed-attribution set.
type PnLResult struct {
	User              string  `json:"user"`
	Coin              string  `json:"coin,omitempty"`
	FromMs            int64   `json:"fromMs,omitempty"`
	ToMs              int64   `json:"toMs,omitempty"`
	BuilderOnly       bool    `json:"builderOnly"`
	RealizedPnl       float64 `json:"realizedPnl"`
	UnrealizedPnl     float64 `json:"unrealizedPnl"`
	ReturnPct         float64 `json:"returnPct"`
	EffectiveCapital  float64 `json:"effectiveCapital"`
	FeesPaid          float64 `json:"feesPaid"`
	Volume            float64 `json:"volume"`
	TradeCount        int     `json:"tradeCount"`
	BuilderTradeCount int     `json:"builderTradeCount"`
	Tainted           bool    `json:"tainted"`
	CurrentEquity     float64 `json:"currentEquity"`
}

// TradeStats are presentation-level aggregates derived from an
// already-filtered trade set.
type TradeStats struct {
	TradeCount        int     `json:"tradeCount"`
	WinRate           float64 `json:"winRate"` // percent, winning = pnl > 0 strictly
	TotalVolume       float64 `json:"totalVolume"`
	AvgPnl            float64 `json:"avgPnl"`
	BestTrade         float64 `json:"bestTrade"`
	WorstTrade        float64 `json:"worstTrade"`
	TotalRealizedPnl  float64 `json:"totalRealizedPnl"`
	TotalFees         float64 `json:"totalFees"`
	BuilderTradeCount int     `json:"builderTradeCount"`
}

// CoinBreakdown groups volume, PnL, fees, and trade count by coin.
type CoinBreakdown struct {
	Coin        string  `json:"coin"`
	Volume      float64 `json:"volume"`
	RealizedPnl float64 `json:"realizedPnl"`
	FeesPaid    float64 `json:"feesPaid"`
	TradeCount  int     `json:"tradeCount"`
}

// PnLPoint is one day of the cumulative realized-PnL series.
type PnLPoint struct {
	Date       string  `json:"date"` // UTC, YYYY-MM-DD
	Pnl        float64 `json:"pnl"`
	Cumulative float64 `json:"cumulative"`
}
