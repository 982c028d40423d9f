package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/points"

	"github.com/joho/godotenv"
)

// Award weight modes for the referral award path.
const (
	AwardWeightsPreLaunch = "prelaunch"
	AwardWeightsClock     = "clock"
)

type Config struct {
	AppPort        string
	DatabaseURL    string
	AdminJWTSecret string
	AllowedOrigin  string

	LogLevel string
	LogJSON  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRateLimit   int
	APIRateWindow  time.Duration
	JoinRateLimit  int
	JoinRateWindow time.Duration

	LeaderboardCacheTTL time.Duration
	OTPTTL              time.Duration

	// RankAtLaunch schedules one ranking run at Rewards.LaunchAt.
	RankAtLaunch bool
	AwardWeights string
	// ReconcileInterval is how often uncredited referral awards are retried.
	// Zero disables the job.
	ReconcileInterval time.Duration

	Rewards points.Schedule
}

// Load reads .env and the environment. Missing required values are fatal.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	adminSecret := os.Getenv("ADMIN_JWT_SECRET")
	if adminSecret == "" {
		logger.Fatal("ADMIN_JWT_SECRET is not set")
	}

	cfg := FromEnv()
	cfg.DatabaseURL = dbURL
	cfg.AdminJWTSecret = adminSecret

	rewards, err := RewardsFromEnv()
	if err != nil {
		logger.Fatal("failed to load reward schedule", "error", err)
	}
	cfg.Rewards = rewards

	return cfg
}

// RewardsFromEnv loads REWARDS_FILE (defaults when unset) and applies a
// LAUNCH_AT override.
func RewardsFromEnv() (points.Schedule, error) {
	rewards, err := LoadRewards(os.Getenv("REWARDS_FILE"))
	if err != nil {
		return points.Schedule{}, err
	}
	if v := os.Getenv("LAUNCH_AT"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return points.Schedule{}, fmt.Errorf("LAUNCH_AT must be RFC3339: %w", err)
		}
		rewards.LaunchAt = at
	}
	return rewards, nil
}

// FromEnv reads the optional settings, applying defaults.
func FromEnv() *Config {
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	awardWeights := strings.ToLower(os.Getenv("AWARD_WEIGHTS"))
	if awardWeights != AwardWeightsClock {
		awardWeights = AwardWeightsPreLaunch
	}

	return &Config{
		AppPort:        port,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		AllowedOrigin:  os.Getenv("ALLOWED_ORIGIN"),

		LogLevel: strings.ToLower(os.Getenv("LOG_LEVEL")),
		LogJSON:  os.Getenv("LOG_JSON") == "true",

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		APIRateLimit:   envInt("API_RATE_LIMIT", 120),
		APIRateWindow:  envSeconds("API_RATE_WINDOW_SECONDS", 60),
		JoinRateLimit:  envInt("JOIN_RATE_LIMIT", 5),
		JoinRateWindow: envSeconds("JOIN_RATE_WINDOW_SECONDS", 60),

		LeaderboardCacheTTL: envSeconds("LEADERBOARD_CACHE_SECONDS", 15),
		OTPTTL:              envSeconds("OTP_TTL_SECONDS", 600),

		RankAtLaunch: os.Getenv("RANK_AT_LAUNCH") == "true",
		AwardWeights: awardWeights,

		ReconcileInterval: envSeconds("RECONCILE_INTERVAL_SECONDS", 300),

		Rewards: DefaultRewards(),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}
