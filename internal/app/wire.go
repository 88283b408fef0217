package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantstack/tradeledger/internal/cache/memory"
	"github.com/quantstack/tradeledger/internal/cache/redis"
	"github.com/quantstack/tradeledger/internal/config"
	"github.com/quantstack/tradeledger/internal/domain"
	"github.com/quantstack/tradeledger/internal/platform/hyperliquid"
	"github.com/quantstack/tradeledger/internal/service"
)

// Dependencies bundles the services the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Source      domain.DataSource
	Cache       domain.FetchCache
	Ledger      *service.LedgerService
	Leaderboard *service.LeaderboardService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	deps.Source = hyperliquid.New(hyperliquid.ClientConfig{
		APIURL:     cfg.Hyperliquid.APIURL,
		Timeout:    time.Duration(cfg.Hyperliquid.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Hyperliquid.MaxRetries,
		RetryDelay: time.Duration(cfg.Hyperliquid.RetryDelayMs) * time.Millisecond,
	})

	ttl := time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Cache = redis.NewFetchCache(redisClient, ttl)
	} else {
		deps.Cache = memory.NewFetchCache(ttl)
	}

	deps.Ledger = service.NewLedgerService(
		deps.Source,
		deps.Cache,
		cfg.Ledger.TargetBuilder,
		cfg.Ledger.MaxStartCapital,
		logger.With(slog.String("component", "ledger_service")),
	)
	deps.Leaderboard = service.NewLeaderboardService(
		deps.Ledger,
		logger.With(slog.String("component", "leaderboard_service")),
	)

	return deps, cleanup, nil
}
