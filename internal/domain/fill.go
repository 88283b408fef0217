package domain

// Fill side as reported by the exchange: "B" is a buy (bid), "A" a sell (ask).
const (
	SideBuy  = "B"
	SideSell = "A"
)

// Fill is one executed trade leg exactly as the exchange info API reports it.
// Numeric fields arrive as decimal strings and stay that way until the
// normalizer parses them; a fill with a malformed field must still be
// representable.
type Fill struct {
	Coin          string `json:"coin"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Side          string `json:"side"` // "B" or "A"
	Time          int64  `json:"time"` // ms epoch
	StartPosition string `json:"startPosition"`
	Dir           string `json:"dir"`
	ClosedPnl     string `json:"closedPnl"`
	Hash          string `json:"hash"`
	Oid           int64  `json:"oid"`
	Crossed       bool   `json:"crossed"`
	Fee           string `json:"fee"`
	Tid           int64  `json:"tid"`
	FeeToken      string `json:"feeToken"`
	BuilderFee    string `json:"builderFee,omitempty"`
	Builder       string `json:"builder,omitempty"`
}
