package domain

// Deposit is one positive USDC inflow from the account's non-funding ledger,
// used to sanity-check capital normalization across accounts.
type Deposit struct {
	TimeMs int64   `json:"timeMs"`
	Amount float64 `json:"amount"`
	TxHash string  `json:"txHash"`
	Type   string  `json:"type"` // "deposit" or "internalTransfer"
}
