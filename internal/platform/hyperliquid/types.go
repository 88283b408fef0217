package hyperliquid

import (
	"strconv"

	"github.com/quantstack/tradeledger/internal/domain"
)

// --------------------------------------------------------------------------
// Info API DTOs
// --------------------------------------------------------------------------

// infoRequest is the POST body for the info endpoint. Every query is a typed
// request against the same URL.
type infoRequest struct {
	Type      string `json:"type"`
	User      string `json:"user,omitempty"`
	StartTime int64  `json:"startTime,omitempty"`
}

// apiMarginSummary mirrors the marginSummary block of clearinghouseState.
type apiMarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// apiLeverage is the leverage descriptor inside a position.
type apiLeverage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// apiPosition is one open position inside clearinghouseState.
type apiPosition struct {
	Coin           string      `json:"coin"`
	Szi            string      `json:"szi"`
	Leverage       apiLeverage `json:"leverage"`
	EntryPx        string      `json:"entryPx"`
	PositionValue  string      `json:"positionValue"`
	UnrealizedPnl  string      `json:"unrealizedPnl"`
	ReturnOnEquity string      `json:"returnOnEquity"`
	LiquidationPx  *string     `json:"liquidationPx"`
	MarginUsed     string      `json:"marginUsed"`
}

// apiAssetPosition wraps a position with its margining type.
type apiAssetPosition struct {
	Type     string      `json:"type"`
	Position apiPosition `json:"position"`
}

// apiClearinghouseState is the clearinghouseState response.
type apiClearinghouseState struct {
	MarginSummary      apiMarginSummary   `json:"marginSummary"`
	CrossMarginSummary apiMarginSummary   `json:"crossMarginSummary"`
	AssetPositions     []apiAssetPosition `json:"assetPositions"`
	Withdrawable       string             `json:"withdrawable"`
}

// apiLedgerUpdate is one entry of userNonFundingLedgerUpdates. The delta is
// flattened to the fields the ledger cares about.
type apiLedgerUpdate struct {
	Time  int64  `json:"time"`
	Hash  string `json:"hash"`
	Delta struct {
		Type string `json:"type"`
		Usdc string `json:"usdc"`
	} `json:"delta"`
}

// parseFloat converts an API decimal string, treating malformed values as 0
// so one bad record cannot fail the whole response.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// ToDomainAccountState flattens the clearinghouse response into the domain
// snapshot, parsing decimal strings to floats.
func (s apiClearinghouseState) ToDomainAccountState() domain.AccountState {
	positions := make([]domain.AssetPosition, 0, len(s.AssetPositions))
	for _, ap := range s.AssetPositions {
		p := ap.Position

		var liq *float64
		if p.LiquidationPx != nil {
			v := parseFloat(*p.LiquidationPx)
			liq = &v
		}

		positions = append(positions, domain.AssetPosition{
			Coin:           p.Coin,
			Szi:            parseFloat(p.Szi),
			EntryPx:        parseFloat(p.EntryPx),
			PositionValue:  parseFloat(p.PositionValue),
			UnrealizedPnl:  parseFloat(p.UnrealizedPnl),
			ReturnOnEquity: parseFloat(p.ReturnOnEquity),
			LiquidationPx:  liq,
			MarginUsed:     parseFloat(p.MarginUsed),
			Leverage:       p.Leverage.Value,
		})
	}

	return domain.AccountState{
		AccountValue:    parseFloat(s.MarginSummary.AccountValue),
		TotalNtlPos:     parseFloat(s.MarginSummary.TotalNtlPos),
		TotalMarginUsed: parseFloat(s.MarginSummary.TotalMarginUsed),
		Withdrawable:    parseFloat(s.Withdrawable),
		AssetPositions:  positions,
	}
}

// ToDomainDeposit converts a ledger update to a Deposit. Valid returns false
// for entries that are not positive USDC inflows.
func (u apiLedgerUpdate) ToDomainDeposit() (domain.Deposit, bool) {
	amount := parseFloat(u.Delta.Usdc)
	if amount <= 0 {
		return domain.Deposit{}, false
	}
	switch u.Delta.Type {
	case "deposit", "internalTransfer":
	default:
		return domain.Deposit{}, false
	}
	return domain.Deposit{
		TimeMs: u.Time,
		Amount: amount,
		TxHash: u.Hash,
		Type:   u.Delta.Type,
	}, true
}
