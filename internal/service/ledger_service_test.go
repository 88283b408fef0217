package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantstack/tradeledger/internal/domain"
)

const (
	testUser    = "0x1111111111111111111111111111111111111111"
	testBuilder = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type stubSource struct {
	fills    map[string][]domain.Fill
	states   map[string]domain.AccountState
	deposits map[string][]domain.Deposit
	failFor  map[string]error

	fillCalls  atomic.Int32
	stateCalls atomic.Int32
}

func (s *stubSource) UserFills(_ context.Context, user string) ([]domain.Fill, error) {
	s.fillCalls.Add(1)
	if err, ok := s.failFor[user]; ok {
		return nil, err
	}
	return s.fills[user], nil
}

func (s *stubSource) AccountState(_ context.Context, user string) (domain.AccountState, error) {
	s.stateCalls.Add(1)
	if err, ok := s.failFor[user]; ok {
		return domain.AccountState{}, err
	}
	return s.states[user], nil
}

func (s *stubSource) UserDeposits(_ context.Context, user string) ([]domain.Deposit, error) {
	if err, ok := s.failFor[user]; ok {
		return nil, err
	}
	return s.deposits[user], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fill builds a raw fill; builder tags it as attributed to the test builder.
func fill(coin, side, px, sz string, timeMs int64, builder, pnl, fee string) domain.Fill {
	return domain.Fill{
		Coin:      coin,
		Px:        px,
		Sz:        sz,
		Side:      side,
		Time:      timeMs,
		ClosedPnl: pnl,
		Fee:       fee,
		Hash:      coin + "-" + side + "-" + strconv.FormatInt(timeMs, 10),
		Builder:   builder,
	}
}

// roundTripFills is a closed long with profit plus an open short, both on
// the test builder.
func roundTripFills() []domain.Fill {
	return []domain.Fill{
		fill("BTC", domain.SideBuy, "50000", "0.1", 1000, testBuilder, "0", "1"),
		fill("BTC", domain.SideSell, "51000", "0.1", 2000, testBuilder, "100", "1"),
		fill("ETH", domain.SideSell, "3000", "2", 3000, testBuilder, "0", "0.5"),
	}
}

func newTestService(src *stubSource, cache domain.FetchCache) *LedgerService {
	return NewLedgerService(src, cache, testBuilder, 10000, discardLogger())
}

func TestTrades_RejectsBadAddresses(t *testing.T) {
	svc := newTestService(&stubSource{}, nil)

	_, err := svc.Trades(context.Background(), Query{User: ""})
	require.ErrorIs(t, err, domain.ErrMissingUser)

	_, err = svc.Trades(context.Background(), Query{User: "not-an-address"})
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestTrades_LowercasesUser(t *testing.T) {
	src := &stubSource{fills: map[string][]domain.Fill{testUser: roundTripFills()}}
	svc := newTestService(src, nil)

	report, err := svc.Trades(context.Background(), Query{User: "0x1111111111111111111111111111111111111111"})
	require.NoError(t, err)
	require.Equal(t, testUser, report.User)
	require.Len(t, report.Trades, 3)
	require.Equal(t, 100.0, report.Stats.TotalRealizedPnl)
}

func TestTrades_ScopeByCoin(t *testing.T) {
	src := &stubSource{fills: map[string][]domain.Fill{testUser: roundTripFills()}}
	svc := newTestService(src, nil)

	report, err := svc.Trades(context.Background(), Query{
		User:  testUser,
		Scope: domain.Scope{Coin: "ETH"},
	})
	require.NoError(t, err)
	require.Len(t, report.Trades, 1)
	require.Equal(t, "ETH", report.Trades[0].Coin)
	require.Equal(t, "ETH", report.Coin)
}

func TestTrades_BuilderOnlyDropsTaintedLifecycle(t *testing.T) {
	// SOL episode mixes an attributed open with an unattributed close, so
	// builder-only mode must drop both of its trades.
	fills := append(roundTripFills(),
		fill("SOL", domain.SideBuy, "100", "5", 4000, testBuilder, "0", "0.2"),
		fill("SOL", domain.SideSell, "110", "5", 5000, "", "50", "0.2"),
	)
	src := &stubSource{fills: map[string][]domain.Fill{testUser: fills}}
	svc := newTestService(src, nil)

	report, err := svc.Trades(context.Background(), Query{User: testUser, BuilderOnly: true})
	require.NoError(t, err)
	for _, tr := range report.Trades {
		require.NotEqual(t, "SOL", tr.Coin)
	}
	require.Len(t, report.Trades, 3)
}

func TestPnL_CombinesFillsAndState(t *testing.T) {
	src := &stubSource{
		fills: map[string][]domain.Fill{testUser: roundTripFills()},
		states: map[string]domain.AccountState{testUser: {
			AccountValue: 5000,
			AssetPositions: []domain.AssetPosition{
				{Coin: "ETH", Szi: -2, UnrealizedPnl: 25},
			},
		}},
	}
	svc := newTestService(src, nil)

	result, err := svc.PnL(context.Background(), Query{User: testUser})
	require.NoError(t, err)
	require.Equal(t, testUser, result.User)
	require.InDelta(t, 100.0, result.RealizedPnl, 1e-9)
	require.InDelta(t, 25.0, result.UnrealizedPnl, 1e-9)
	require.Equal(t, 5000.0, result.CurrentEquity)
	require.Greater(t, result.ReturnPct, 0.0)
	require.LessOrEqual(t, result.EffectiveCapital, 10000.0)
	require.GreaterOrEqual(t, result.EffectiveCapital, 100.0)
}

func TestPnL_CacheShortCircuitsSource(t *testing.T) {
	cache := &stubCache{
		fills:  map[string][]domain.Fill{testUser: roundTripFills()},
		states: map[string]domain.AccountState{testUser: {AccountValue: 5000}},
	}
	src := &stubSource{}
	svc := newTestService(src, cache)

	_, err := svc.PnL(context.Background(), Query{User: testUser})
	require.NoError(t, err)
	require.Zero(t, src.fillCalls.Load())
	require.Zero(t, src.stateCalls.Load())
}

func TestPnL_CacheFailureFallsThrough(t *testing.T) {
	cache := &stubCache{err: errors.New("redis down")}
	src := &stubSource{
		fills:  map[string][]domain.Fill{testUser: roundTripFills()},
		states: map[string]domain.AccountState{testUser: {AccountValue: 5000}},
	}
	svc := newTestService(src, cache)

	result, err := svc.PnL(context.Background(), Query{User: testUser})
	require.NoError(t, err)
	require.InDelta(t, 100.0, result.RealizedPnl, 1e-9)
	require.Equal(t, int32(1), src.fillCalls.Load())
}

func TestPnL_PopulatesCacheAfterFetch(t *testing.T) {
	cache := &stubCache{}
	src := &stubSource{
		fills:  map[string][]domain.Fill{testUser: roundTripFills()},
		states: map[string]domain.AccountState{testUser: {AccountValue: 5000}},
	}
	svc := newTestService(src, cache)

	_, err := svc.PnL(context.Background(), Query{User: testUser})
	require.NoError(t, err)
	require.Len(t, cache.fills[testUser], 3)
	require.Equal(t, 5000.0, cache.states[testUser].AccountValue)
}

func TestLifecycles_StripsTradesUnlessRequested(t *testing.T) {
	src := &stubSource{fills: map[string][]domain.Fill{testUser: roundTripFills()}}
	svc := newTestService(src, nil)

	report, err := svc.Lifecycles(context.Background(), Query{User: testUser}, false)
	require.NoError(t, err)
	require.Len(t, report.Lifecycles, 2)
	for _, lc := range report.Lifecycles {
		require.Nil(t, lc.Trades)
	}
	require.Equal(t, 1, report.Stats.Open)
	require.Equal(t, 1, report.Stats.Closed)
	require.Equal(t, 2, report.Stats.Total)

	withTrades, err := svc.Lifecycles(context.Background(), Query{User: testUser}, true)
	require.NoError(t, err)
	for _, lc := range withTrades.Lifecycles {
		require.NotEmpty(t, lc.Trades)
	}
}

func TestDeposits_FiltersAndTotals(t *testing.T) {
	src := &stubSource{deposits: map[string][]domain.Deposit{testUser: {
		{TimeMs: 1000, Amount: 500, TxHash: "0x1", Type: "deposit"},
		{TimeMs: 2000, Amount: 250, TxHash: "0x2", Type: "internalTransfer"},
		{TimeMs: 9000, Amount: 100, TxHash: "0x3", Type: "deposit"},
	}}}
	svc := newTestService(src, nil)

	report, err := svc.Deposits(context.Background(), Query{
		User:  testUser,
		Scope: domain.Scope{FromMs: 1000, ToMs: 5000},
	})
	require.NoError(t, err)
	require.Equal(t, 2, report.Count)
	require.Equal(t, 750.0, report.Total)
	// Newest first.
	require.Equal(t, int64(2000), report.Deposits[0].TimeMs)
}

func TestReports_AreByteStable(t *testing.T) {
	src := &stubSource{
		fills: map[string][]domain.Fill{testUser: roundTripFills()},
		states: map[string]domain.AccountState{testUser: {AccountValue: 5000}},
	}
	svc := newTestService(src, nil)
	ctx := context.Background()
	q := Query{User: testUser}

	first, err := svc.Trades(ctx, q)
	require.NoError(t, err)
	second, err := svc.Trades(ctx, q)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.True(t, bytes.Equal(a, b), "trade report must be deterministic")

	lc1, err := svc.Lifecycles(ctx, q, true)
	require.NoError(t, err)
	lc2, err := svc.Lifecycles(ctx, q, true)
	require.NoError(t, err)

	a, err = json.Marshal(lc1)
	require.NoError(t, err)
	b, err = json.Marshal(lc2)
	require.NoError(t, err)
	require.True(t, bytes.Equal(a, b), "lifecycle report must be deterministic")
}

type stubCache struct {
	fills  map[string][]domain.Fill
	states map[string]domain.AccountState
	err    error
}

func (c *stubCache) GetFills(_ context.Context, user string) ([]domain.Fill, error) {
	if c.err != nil {
		return nil, c.err
	}
	fills, ok := c.fills[user]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return fills, nil
}

func (c *stubCache) SetFills(_ context.Context, user string, fills []domain.Fill) error {
	if c.err != nil {
		return c.err
	}
	if c.fills == nil {
		c.fills = make(map[string][]domain.Fill)
	}
	c.fills[user] = fills
	return nil
}

func (c *stubCache) GetAccountState(_ context.Context, user string) (domain.AccountState, error) {
	if c.err != nil {
		return domain.AccountState{}, c.err
	}
	state, ok := c.states[user]
	if !ok {
		return domain.AccountState{}, domain.ErrNotFound
	}
	return state, nil
}

func (c *stubCache) SetAccountState(_ context.Context, user string, state domain.AccountState) error {
	if c.err != nil {
		return c.err
	}
	if c.states == nil {
		c.states = make(map[string]domain.AccountState)
	}
	c.states[user] = state
	return nil
}
