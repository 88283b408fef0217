package domain

// Metric selects the ranking dimension for the leaderboard.
type Metric string

const (
	MetricPnl        Metric = "pnl"
	MetricReturnPct  Metric = "returnPct"
	MetricVolume     Metric = "volume"
	MetricTradeCount Metric = "tradeCount"
)

// Valid reports whether m is a known leaderboard metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricPnl, MetricReturnPct, MetricVolume, MetricTradeCount:
		return true
	}
	return false
}

// LeaderboardEntry is one ranked account in a multi-account aggregate.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	User        string  `json:"user"`
	MetricValue float64 `json:"metricValue"`
	Volume      float64 `json:"volume"`
	Pnl         float64 `json:"pnl"`
	ReturnPct   float64 `json:"returnPct"`
	TradeCount  int     `json:"tradeCount"`
	Tainted     bool    `json:"tainted"`

	LifecycleStats LifecycleStats `json:"lifecycleStats"`
}
