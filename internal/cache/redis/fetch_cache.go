package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantstack/tradeledger/internal/domain"
)

// FetchCache implements domain.FetchCache using Redis string values with
// JSON-serialized payloads.
//
// Key schema:
//
//	fills:{user} - JSON array of raw fills
//	state:{user} - JSON clearinghouse snapshot
type FetchCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFetchCache creates a FetchCache backed by the given Client. Entries
// expire after ttl.
func NewFetchCache(c *Client, ttl time.Duration) *FetchCache {
	return &FetchCache{rdb: c.Underlying(), ttl: ttl}
}

func fillsKey(user string) string { return "fills:" + user }
func stateKey(user string) string { return "state:" + user }

// GetFills retrieves a user's cached fill history.
// It returns domain.ErrNotFound when the key does not exist.
func (fc *FetchCache) GetFills(ctx context.Context, user string) ([]domain.Fill, error) {
	data, err := fc.rdb.Get(ctx, fillsKey(user)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get fills %s: %w", user, err)
	}

	var fills []domain.Fill
	if err := json.Unmarshal(data, &fills); err != nil {
		return nil, fmt.Errorf("redis: unmarshal fills %s: %w", user, err)
	}
	return fills, nil
}

// SetFills stores a user's fill history with the configured TTL.
func (fc *FetchCache) SetFills(ctx context.Context, user string, fills []domain.Fill) error {
	data, err := json.Marshal(fills)
	if err != nil {
		return fmt.Errorf("redis: marshal fills %s: %w", user, err)
	}
	if err := fc.rdb.Set(ctx, fillsKey(user), data, fc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set fills %s: %w", user, err)
	}
	return nil
}

// GetAccountState retrieves a user's cached clearinghouse snapshot.
// It returns domain.ErrNotFound when the key does not exist.
func (fc *FetchCache) GetAccountState(ctx context.Context, user string) (domain.AccountState, error) {
	data, err := fc.rdb.Get(ctx, stateKey(user)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AccountState{}, domain.ErrNotFound
		}
		return domain.AccountState{}, fmt.Errorf("redis: get state %s: %w", user, err)
	}

	var state domain.AccountState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.AccountState{}, fmt.Errorf("redis: unmarshal state %s: %w", user, err)
	}
	return state, nil
}

// SetAccountState stores a user's clearinghouse snapshot with the configured TTL.
func (fc *FetchCache) SetAccountState(ctx context.Context, user string, state domain.AccountState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal state %s: %w", user, err)
	}
	if err := fc.rdb.Set(ctx, stateKey(user), data, fc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set state %s: %w", user, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.FetchCache = (*FetchCache)(nil)
