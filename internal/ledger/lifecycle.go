package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantstack/tradeledger/internal/domain"
)

// episodeState accumulates one in-progress lifecycle while the state machine
// walks a coin's trade stream.
type episodeState struct {
	trades        []domain.Trade
	startTime     int64
	side          domain.PositionSide
	hasBuilder    bool
	hasNonBuilder bool
	maxSize       float64
	realizedPnl   float64
	feesPaid      float64
}

func newEpisode(startTime int64, side domain.PositionSide) *episodeState {
	return &episodeState{startTime: startTime, side: side}
}

// absorb records a trade into the episode. Attribution flags OR-accumulate
// and never reset within an episode: one unattributed trade taints the whole
// episode permanently.
func (e *episodeState) absorb(t domain.Trade) {
	if t.IsBuilderTrade {
		e.hasBuilder = true
	} else {
		e.hasNonBuilder = true
	}
	e.trades = append(e.trades, t)
	e.realizedPnl += t.ClosedPnl
	e.feesPaid += t.Fee
}

// finalize materializes the accumulator as a Lifecycle. endTime is nil for a
// still-open episode. Entry price is the size-weighted average of trades in
// the episode's opening direction, exit price of the opposite direction.
func (e *episodeState) finalize(coin string, endTime *int64) domain.Lifecycle {
	var entryNotional, entrySize, exitNotional, exitSize float64
	entrySide := domain.SideBuy
	if e.side == domain.SideShort {
		entrySide = domain.SideSell
	}
	for _, t := range e.trades {
		if t.Side == entrySide {
			entryNotional += t.Px * t.Sz
			entrySize += t.Sz
		} else {
			exitNotional += t.Px * t.Sz
			exitSize += t.Sz
		}
	}

	var avgEntry float64
	if entrySize > 0 {
		avgEntry = entryNotional / entrySize
	}
	var avgExit *float64
	if exitSize > 0 {
		v := exitNotional / exitSize
		avgExit = &v
	}

	status := domain.LifecycleOpen
	if endTime != nil {
		status = domain.LifecycleClosed
	}

	return domain.Lifecycle{
		ID:            fmt.Sprintf("lifecycle-%s-%d", coin, e.startTime),
		Coin:          coin,
		Side:          e.side,
		StartTime:     e.startTime,
		EndTime:       endTime,
		AvgEntryPx:    avgEntry,
		AvgExitPx:     avgExit,
		MaxSize:       e.maxSize,
		RealizedPnl:   e.realizedPnl,
		FeesPaid:      e.feesPaid,
		TradeCount:    len(e.trades),
		IsTainted:     e.hasBuilder && e.hasNonBuilder,
		IsBuilderOnly: e.hasBuilder && !e.hasNonBuilder,
		Status:        status,
		Trades:        e.trades,
	}
}

// sortChronological returns a copy of trades in timestamp order. The sort is
// stable: fills sharing a timestamp keep their original relative order, which
// matters because cost-basis averaging and taint accumulation are
// order-dependent.
func sortChronological(trades []domain.Trade) []domain.Trade {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeMs < sorted[j].TimeMs
	})
	return sorted
}

// groupByCoin partitions chronologically ordered trades per coin and returns
// the coin keys sorted so iteration is deterministic.
func groupByCoin(trades []domain.Trade) (map[string][]domain.Trade, []string) {
	byCoin := make(map[string][]domain.Trade)
	var coins []string
	for _, t := range trades {
		if _, ok := byCoin[t.Coin]; !ok {
			coins = append(coins, t.Coin)
		}
		byCoin[t.Coin] = append(byCoin[t.Coin], t)
	}
	sort.Strings(coins)
	return byCoin, coins
}

// ReconstructLifecycles replays the trade stream per coin through a
// cost-basis state machine and emits one Lifecycle per open-to-flat episode.
// A lifecycle opens when the running signed size leaves zero and closes when
// it returns within flatEps of zero. A fill that reverses the position
// through zero is split at the crossing: the closing portion (carrying the
// fill's realized PnL and fee) ends the old episode, the residual opens a
// fresh one at the fill's price with clean attribution flags.
//
// Output is ordered most-recent episode first, keyed on end time (start time
// for open episodes).
func ReconstructLifecycles(trades []domain.Trade) []domain.Lifecycle {
	byCoin, coins := groupByCoin(sortChronological(trades))

	var lifecycles []domain.Lifecycle

	for _, coin := range coins {
		var netSize, avgEntryPx, totalCost float64
		var cur *episodeState

		for _, tr := range byCoin[coin] {
			direction := 1.0
			if tr.Side == domain.SideSell {
				direction = -1.0
			}

			if cur == nil && netSize == 0 {
				side := domain.SideLong
				if direction < 0 {
					side = domain.SideShort
				}
				cur = newEpisode(tr.TimeMs, side)
				totalCost = 0
				avgEntryPx = 0
			}
			if cur == nil {
				continue
			}

			adding := (netSize >= 0 && direction > 0) || (netSize <= 0 && direction < 0)
			switch {
			case adding:
				cur.absorb(tr)
				totalCost += tr.Px * tr.Sz
				netSize += tr.Sz * direction
				if math.Abs(netSize) > 0 {
					avgEntryPx = totalCost / math.Abs(netSize)
				}
				cur.maxSize = math.Max(cur.maxSize, math.Abs(netSize))

				// A fill too small to move the position off flat closes its
				// episode immediately instead of lingering as the next
				// episode's start.
				if math.Abs(netSize) < flatEps {
					netSize = 0
					avgEntryPx = 0
					totalCost = 0
					end := tr.TimeMs
					lifecycles = append(lifecycles, cur.finalize(coin, &end))
					cur = nil
				}

			case tr.Sz-math.Abs(netSize) > flatEps:
				// Reversal through zero: split the fill at the crossing.
				closeLeg, openLeg := splitFill(tr, math.Abs(netSize))

				cur.absorb(closeLeg)
				end := tr.TimeMs
				lifecycles = append(lifecycles, cur.finalize(coin, &end))

				side := domain.SideLong
				if direction < 0 {
					side = domain.SideShort
				}
				cur = newEpisode(tr.TimeMs, side)
				cur.absorb(openLeg)
				netSize = openLeg.Sz * direction
				totalCost = tr.Px * openLeg.Sz
				avgEntryPx = tr.Px
				cur.maxSize = openLeg.Sz

			default:
				// Plain reduction.
				reduce := math.Min(math.Abs(netSize), tr.Sz)
				cur.absorb(tr)
				totalCost -= avgEntryPx * reduce
				netSize += tr.Sz * direction
				cur.maxSize = math.Max(cur.maxSize, math.Abs(netSize))

				if math.Abs(netSize) < flatEps {
					netSize = 0
					avgEntryPx = 0
					totalCost = 0
					end := tr.TimeMs
					lifecycles = append(lifecycles, cur.finalize(coin, &end))
					cur = nil
				} else {
					avgEntryPx = totalCost / math.Abs(netSize)
				}
			}
		}

		if cur != nil && math.Abs(netSize) > flatEps {
			lifecycles = append(lifecycles, cur.finalize(coin, nil))
		}
	}

	sort.SliceStable(lifecycles, func(i, j int) bool {
		ki, kj := sortKey(lifecycles[i]), sortKey(lifecycles[j])
		if ki != kj {
			return ki > kj
		}
		return lifecycles[i].Coin < lifecycles[j].Coin
	})
	return lifecycles
}

// splitFill divides a position-reversing fill into a leg that closes the
// outstanding size and a leg that opens the residual. The exchange attaches
// the fill's realized PnL and fees to the closed portion, so the opening leg
// carries none.
func splitFill(t domain.Trade, closeSize float64) (closeLeg, openLeg domain.Trade) {
	closeLeg = t
	closeLeg.Sz = closeSize
	closeLeg.NotionalValue = t.Px * closeSize

	openLeg = t
	openLeg.Sz = t.Sz - closeSize
	openLeg.NotionalValue = t.Px * openLeg.Sz
	openLeg.ClosedPnl = 0
	openLeg.Fee = 0
	openLeg.BuilderFee = 0
	return closeLeg, openLeg
}

func sortKey(l domain.Lifecycle) int64 {
	if l.EndTime != nil {
		return *l.EndTime
	}
	return l.StartTime
}
