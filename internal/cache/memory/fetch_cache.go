// Package memory provides an in-process fetch cache used when Redis is
// disabled. Entries live in a mutex-guarded map and expire lazily on read.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quantstack/tradeledger/internal/domain"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// FetchCache implements domain.FetchCache with a process-local map.
type FetchCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	entries map[string]entry
}

// NewFetchCache creates an empty cache whose entries expire after ttl.
func NewFetchCache(ttl time.Duration) *FetchCache {
	return &FetchCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (fc *FetchCache) get(key string) (any, bool) {
	fc.mu.RLock()
	e, ok := fc.entries[key]
	fc.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if fc.now().After(e.expiresAt) {
		fc.mu.Lock()
		delete(fc.entries, key)
		fc.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (fc *FetchCache) set(key string, value any) {
	fc.mu.Lock()
	fc.entries[key] = entry{value: value, expiresAt: fc.now().Add(fc.ttl)}
	fc.mu.Unlock()
}

// GetFills returns a cached fill history or domain.ErrNotFound.
func (fc *FetchCache) GetFills(_ context.Context, user string) ([]domain.Fill, error) {
	v, ok := fc.get("fills:" + user)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v.([]domain.Fill), nil
}

// SetFills stores a fill history snapshot.
func (fc *FetchCache) SetFills(_ context.Context, user string, fills []domain.Fill) error {
	fc.set("fills:"+user, fills)
	return nil
}

// GetAccountState returns a cached clearinghouse snapshot or domain.ErrNotFound.
func (fc *FetchCache) GetAccountState(_ context.Context, user string) (domain.AccountState, error) {
	v, ok := fc.get("state:" + user)
	if !ok {
		return domain.AccountState{}, domain.ErrNotFound
	}
	return v.(domain.AccountState), nil
}

// SetAccountState stores a clearinghouse snapshot.
func (fc *FetchCache) SetAccountState(_ context.Context, user string, state domain.AccountState) error {
	fc.set("state:"+user, state)
	return nil
}

// Compile-time interface check.
var _ domain.FetchCache = (*FetchCache)(nil)
