package domain

// PositionState is a point-in-time snapshot of a coin's running position,
// emitted once per trade by the history builder. Tainted and BuilderOnly
// reflect the attribution mix of the currently open episode only and reset
// when the position returns to flat.
type PositionState struct {
	TimeMs      int64        `json:"timeMs"`
	Coin        string       `json:"coin"`
	NetSize     float64      `json:"netSize"` // signed, buy positive
	AvgEntryPx  float64      `json:"avgEntryPx"`
	Side        PositionSide `json:"side"`
	Tainted     bool         `json:"tainted"`
	BuilderOnly bool         `json:"builderOnly"`
}

// AssetPosition is one currently open position from the account-state
// snapshot, already parsed to floats by the data source adapter.
type AssetPosition struct {
	Coin           string   `json:"coin"`
	Szi            float64  `json:"szi"` // signed size, long positive
	EntryPx        float64  `json:"entryPx"`
	PositionValue  float64  `json:"positionValue"`
	UnrealizedPnl  float64  `json:"unrealizedPnl"`
	ReturnOnEquity float64  `json:"returnOnEquity"`
	LiquidationPx  *float64 `json:"liquidationPx"` // nil when not at risk
	MarginUsed     float64  `json:"marginUsed"`
	Leverage       float64  `json:"leverage"`
}

// AccountState is the current clearinghouse snapshot for one account.
type AccountState struct {
	AccountValue    float64         `json:"accountValue"`
	TotalNtlPos     float64         `json:"totalNtlPos"`
	TotalMarginUsed float64         `json:"totalMarginUsed"`
	Withdrawable    float64         `json:"withdrawable"`
	AssetPositions  []AssetPosition `json:"assetPositions"`
}

// UnrealizedPnl sums unrealized PnL across all open positions.
func (s AccountState) UnrealizedPnl() float64 {
	var sum float64
	for _, p := range s.AssetPositions {
		sum += p.UnrealizedPnl
	}
	return sum
}
