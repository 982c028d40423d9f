// Command waitlistctl is the operator CLI for the waitlist contest.
package main

import (
	"context"
	"fmt"
	"os"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/config"
	"waitlist_contest/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "waitlistctl",
	Short:         "Operate the waitlist contest",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		cfg := config.FromEnv()
		logger.Init(cfg.LogLevel, cfg.LogJSON)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openDB connects using DATABASE_URL.
func openDB(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// openCache returns the shared Redis store when configured so run locks are
// visible to the server; otherwise a process-local one.
func openCache(cfg *config.Config) (cache.Store, func()) {
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "waitlist:")
		if err == nil {
			return rs, func() { _ = rs.Close() }
		}
		logger.Warn("redis unavailable, using in-memory cache", "error", err)
	}
	return cache.NewMemory(), func() {}
}

// loadConfig reads settings and the reward schedule without the server's
// required-variable checks.
func loadConfig() (*config.Config, error) {
	cfg := config.FromEnv()
	rewards, err := config.RewardsFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Rewards = rewards
	return cfg, nil
}
