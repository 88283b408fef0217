// Package ledger implements the position lifecycle reconstruction and
// taint-propagation engine: a deterministic, sequential state machine that
// turns an account's raw fill history into discrete open-to-flat episodes,
// attributes each episode to a builder tag, and computes capital-normalized
// performance metrics. All functions are pure; identical inputs produce
// identical outputs.
package ledger

import (
	"strconv"

	"github.com/quantstack/tradeledger/internal/domain"
)

// flatEps is the tolerance under which a running signed position counts as
// flat. Partial closes accumulate float error, so an exact zero test would
// leave episodes dangling open.
const flatEps = 1e-4

// parseDecimal converts an exchange decimal string to a float64. Malformed or
// missing values degrade to 0 so a single bad fill cannot poison a batch.
func parseDecimal(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Normalize converts raw fills into canonical trades, order-preserving and
// without filtering. A trade counts as builder-attributed when its builder
// tag matches targetBuilder, when no target is configured and any builder
// tag or fee is present, or when a positive builder fee was charged.
func Normalize(fills []domain.Fill, targetBuilder string) []domain.Trade {
	trades := make([]domain.Trade, 0, len(fills))
	for _, f := range fills {
		px := parseDecimal(f.Px)
		sz := parseDecimal(f.Sz)
		builderFee := parseDecimal(f.BuilderFee)

		var isBuilder bool
		if targetBuilder != "" {
			isBuilder = f.Builder == targetBuilder || builderFee > 0
		} else {
			isBuilder = f.Builder != "" || builderFee > 0
		}

		trades = append(trades, domain.Trade{
			TimeMs:         f.Time,
			Coin:           f.Coin,
			Side:           f.Side,
			Px:             px,
			Sz:             sz,
			Fee:            parseDecimal(f.Fee),
			ClosedPnl:      parseDecimal(f.ClosedPnl),
			NotionalValue:  px * sz,
			Hash:           f.Hash,
			Oid:            f.Oid,
			Tid:            f.Tid,
			Builder:        f.Builder,
			BuilderFee:     builderFee,
			IsBuilderTrade: isBuilder,
		})
	}
	return trades
}
