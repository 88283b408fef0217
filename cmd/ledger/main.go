// Command ledger reconstructs position lifecycles and performance summaries
// from an account's exchange fill history. It loads configuration, validates
// it, wires dependencies, and runs one computation for the selected mode,
// printing the result as JSON on stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quantstack/tradeledger/internal/app"
	"github.com/quantstack/tradeledger/internal/config"
)

// applyFlagOverrides merges command-line values into the loaded config so
// that validation and the modes see the effective settings regardless of
// whether they came from a file, the environment, or flags.
func applyFlagOverrides(cfg *config.Config, mode string, maxStartCapital float64, metric string, users []string) {
	if mode != "" {
		cfg.Mode = mode
	}
	if maxStartCapital > 0 {
		cfg.Ledger.MaxStartCapital = maxStartCapital
	}
	if metric != "" {
		cfg.Leaderboard.Metric = metric
	}
	if len(users) > 0 {
		cfg.Leaderboard.Users = users
	}
}

// splitUsers parses the comma-separated -users flag value.
func splitUsers(s string) []string {
	if s == "" {
		return nil
	}
	var users []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return users
}

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	mode := flag.String("mode", "", "operating mode: trades, pnl, positions, lifecycles, deposits, leaderboard")
	user := flag.String("user", "", "account address to query")
	coin := flag.String("coin", "", "restrict to a single coin")
	fromMs := flag.Int64("from", 0, "inclusive lower time bound (ms epoch, 0 = unbounded)")
	toMs := flag.Int64("to", 0, "inclusive upper time bound (ms epoch, 0 = unbounded)")
	builderOnly := flag.Bool("builder-only", false, "restrict to builder-attributed activity")
	includeTrades := flag.Bool("include-trades", false, "include per-lifecycle trade lists")
	excludeTainted := flag.Bool("exclude-tainted", false, "drop mixed-attribution accounts from the leaderboard")
	maxStartCapital := flag.Float64("max-start-capital", 0, "override the capital normalization cap")
	metric := flag.String("metric", "", "leaderboard ranking metric")
	users := flag.String("users", "", "comma-separated leaderboard accounts")
	flag.Parse()

	// Logs go to stderr so stdout carries only the JSON payload.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Flags override the file and environment. This must happen before
	// Validate so a flag-only invocation (no config file) passes the
	// mode-specific checks.
	applyFlagOverrides(cfg, *mode, *maxStartCapital, *metric, splitUsers(*users))

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	query := app.Query{
		User:           *user,
		Coin:           *coin,
		FromMs:         *fromMs,
		ToMs:           *toMs,
		BuilderOnly:    *builderOnly,
		IncludeTrades:  *includeTrades,
		ExcludeTainted: *excludeTainted,
	}

	application := app.New(cfg, query, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shut down gracefully")
			return
		}
		logger.Error("exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
