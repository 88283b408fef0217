package domain

// PositionSide classifies the direction of an episode or snapshot.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
	SideFlat  PositionSide = "flat"
)

// LifecycleStatus tracks whether an episode has returned to flat.
type LifecycleStatus string

const (
	LifecycleOpen   LifecycleStatus = "open"
	LifecycleClosed LifecycleStatus = "closed"
)

// Lifecycle is one continuous non-flat holding episode for a single coin,
// from the first trade that moves the position off zero to the trade that
// brings it back within epsilon of flat. A lifecycle is immutable once
// closed; an open one is a point-in-time materialization of the accumulator.
//
// IsTainted is true when the episode mixes builder-attributed and
// unattributed trades; IsBuilderOnly when every trade is attributed. The two
// are mutually exclusive and both false for episodes with no builder trades.
type Lifecycle struct {
	ID            string          `json:"id"`
	Coin          string          `json:"coin"`
	Side          PositionSide    `json:"side"` // long or short at open
	StartTime     int64           `json:"startTime"`
	EndTime       *int64          `json:"endTime"` // nil while open
	AvgEntryPx    float64         `json:"avgEntryPx"`
	AvgExitPx     *float64        `json:"avgExitPx"` // nil if no exit trades yet
	MaxSize       float64         `json:"maxSize"`
	RealizedPnl   float64         `json:"realizedPnl"`
	FeesPaid      float64         `json:"feesPaid"`
	TradeCount    int             `json:"tradeCount"`
	IsTainted     bool            `json:"isTainted"`
	IsBuilderOnly bool            `json:"isBuilderOnly"`
	Status        LifecycleStatus `json:"status"`
	Trades        []Trade         `json:"trades,omitempty"`
}

// LifecycleStats summarizes a set of lifecycles for reporting.
type LifecycleStats struct {
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Tainted int `json:"tainted"`
	Total   int `json:"total"`
}
