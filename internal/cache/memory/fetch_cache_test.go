package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantstack/tradeledger/internal/domain"
)

func TestFetchCache_MissReturnsNotFound(t *testing.T) {
	fc := NewFetchCache(time.Minute)

	if _, err := fc.GetFills(context.Background(), "0xuser"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := fc.GetAccountState(context.Background(), "0xuser"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchCache_RoundTrip(t *testing.T) {
	fc := NewFetchCache(time.Minute)
	ctx := context.Background()

	fills := []domain.Fill{{Coin: "BTC", Px: "50000", Sz: "0.1", Side: domain.SideBuy}}
	if err := fc.SetFills(ctx, "0xuser", fills); err != nil {
		t.Fatalf("set fills: %v", err)
	}
	got, err := fc.GetFills(ctx, "0xuser")
	if err != nil {
		t.Fatalf("get fills: %v", err)
	}
	if len(got) != 1 || got[0].Coin != "BTC" {
		t.Errorf("unexpected fills %+v", got)
	}

	state := domain.AccountState{AccountValue: 5000}
	if err := fc.SetAccountState(ctx, "0xuser", state); err != nil {
		t.Fatalf("set state: %v", err)
	}
	gotState, err := fc.GetAccountState(ctx, "0xuser")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if gotState.AccountValue != 5000 {
		t.Errorf("unexpected state %+v", gotState)
	}
}

func TestFetchCache_PerUserIsolation(t *testing.T) {
	fc := NewFetchCache(time.Minute)
	ctx := context.Background()

	fc.SetFills(ctx, "0xaaa", []domain.Fill{{Coin: "ETH"}})
	if _, err := fc.GetFills(ctx, "0xbbb"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected miss for other user, got %v", err)
	}
}

func TestFetchCache_Expiry(t *testing.T) {
	fc := NewFetchCache(time.Minute)
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	fc.now = func() time.Time { return now }

	fc.SetFills(ctx, "0xuser", []domain.Fill{{Coin: "SOL"}})

	now = now.Add(30 * time.Second)
	if _, err := fc.GetFills(ctx, "0xuser"); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := fc.GetFills(ctx, "0xuser"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected miss after expiry, got %v", err)
	}
}
