package domain

// Trade is the canonical form of a fill after normalization: decimal strings
// parsed, notional computed, and builder attribution resolved against the
// configured target builder tag.
type Trade struct {
	TimeMs         int64   `json:"timeMs"`
	Coin           string  `json:"coin"`
	Side           string  `json:"side"` // "B" or "A"
	Px             float64 `json:"px"`
	Sz             float64 `json:"sz"`
	Fee            float64 `json:"fee"`
	ClosedPnl      float64 `json:"closedPnl"`
	NotionalValue  float64 `json:"notionalValue"`
	Hash           string  `json:"hash"`
	Oid            int64   `json:"oid"`
	Tid            int64   `json:"tid"`
	Builder        string  `json:"builder,omitempty"`
	BuilderFee     float64 `json:"builderFee"`
	IsBuilderTrade bool    `json:"isBuilderTrade"`
}

// SignedSize returns the size with buy positive and sell negative.
func (t Trade) SignedSize() float64 {
	if t.Side == SideBuy {
		return t.Sz
	}
	return -t.Sz
}
