package ledger

import (
	"math"
	"sort"

	"github.com/quantstack/tradeledger/internal/domain"
)

// BuildPositionHistory replays the same per-coin cost-basis state machine as
// ReconstructLifecycles but emits one snapshot per trade instead of one
// record per episode. Each snapshot's taint flags describe the attribution
// mix of the currently open episode only; they reset whenever the position
// returns to flat or reverses through zero.
//
// With builderOnly set, snapshots belonging to tainted or unattributed
// episodes are suppressed entirely rather than flagged. Output is ordered
// most recent first.
func BuildPositionHistory(trades []domain.Trade, builderOnly bool) []domain.PositionState {
	byCoin, coins := groupByCoin(sortChronological(trades))

	var states []domain.PositionState

	for _, coin := range coins {
		var netSize, avgEntryPx, totalCost float64
		var hasBuilder, hasNonBuilder bool

		for _, tr := range byCoin[coin] {
			direction := 1.0
			if tr.Side == domain.SideSell {
				direction = -1.0
			}

			adding := (netSize >= 0 && direction > 0) || (netSize <= 0 && direction < 0)
			switch {
			case adding:
				if tr.IsBuilderTrade {
					hasBuilder = true
				} else {
					hasNonBuilder = true
				}
				totalCost += tr.Px * tr.Sz
				netSize += tr.Sz * direction
				if math.Abs(netSize) > 0 {
					avgEntryPx = totalCost / math.Abs(netSize)
				}

			case tr.Sz-math.Abs(netSize) > flatEps:
				// Reversal: the residual starts a clean episode seeded with
				// this fill's attribution alone.
				residual := tr.Sz - math.Abs(netSize)
				netSize = residual * direction
				totalCost = tr.Px * residual
				avgEntryPx = tr.Px
				hasBuilder = tr.IsBuilderTrade
				hasNonBuilder = !tr.IsBuilderTrade

			default:
				if tr.IsBuilderTrade {
					hasBuilder = true
				} else {
					hasNonBuilder = true
				}
				reduce := math.Min(math.Abs(netSize), tr.Sz)
				totalCost -= avgEntryPx * reduce
				netSize += tr.Sz * direction

				if math.Abs(netSize) < flatEps {
					netSize = 0
					avgEntryPx = 0
					totalCost = 0
					hasBuilder = false
					hasNonBuilder = false
				} else {
					avgEntryPx = totalCost / math.Abs(netSize)
				}
			}

			tainted := hasBuilder && hasNonBuilder
			builderOnlyEpisode := hasBuilder && !hasNonBuilder

			if builderOnly && (tainted || !builderOnlyEpisode) {
				continue
			}

			side := domain.SideFlat
			switch {
			case netSize > 0:
				side = domain.SideLong
			case netSize < 0:
				side = domain.SideShort
			}

			states = append(states, domain.PositionState{
				TimeMs:      tr.TimeMs,
				Coin:        coin,
				NetSize:     netSize,
				AvgEntryPx:  avgEntryPx,
				Side:        side,
				Tainted:     tainted,
				BuilderOnly: builderOnlyEpisode,
			})
		}
	}

	sort.SliceStable(states, func(i, j int) bool {
		if states[i].TimeMs != states[j].TimeMs {
			return states[i].TimeMs > states[j].TimeMs
		}
		return states[i].Coin < states[j].Coin
	})
	return states
}
