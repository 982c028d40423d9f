package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/config"
	"waitlist_contest/internal/db"
	httpServer "waitlist_contest/internal/http"
	"waitlist_contest/internal/http/handlers"
	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/repository"
	"waitlist_contest/internal/scheduler"
	"waitlist_contest/internal/service"
	"waitlist_contest/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	if err := db.Migrate(context.Background(), dbPool, func(name string) {
		logger.Debug("migration applied", "file", name)
	}); err != nil {
		logger.Fatal("migrations failed", "error", err)
	}

	// Redis when configured, otherwise a process-local store.
	var store cache.Store
	var memStore *cache.Memory
	if cfg.RedisAddr != "" {
		rs, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "waitlist:")
		if err != nil {
			logger.Warn("redis unavailable, using in-memory cache", "error", err)
		} else {
			defer rs.Close()
			store = rs
		}
	}
	if store == nil {
		memStore = cache.NewMemory()
		store = memStore
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run(ctx)

	users := repository.NewUserRepository(dbPool)
	referrals := repository.NewReferralRepository(dbPool)
	rankings := repository.NewRankingRepository(dbPool)
	audit := service.NewAuditService(repository.NewAuditRepository(dbPool))

	referralSvc := service.NewReferralService(referrals, cfg.Rewards, cfg.AwardWeights, audit, hub)
	rankingSvc := service.NewRankingService(rankings, store, cfg.Rewards, audit, hub)
	otp := service.NewOTPService(store, service.LogSender{}, cfg.OTPTTL)

	logger.Info("reward schedule loaded",
		"award_weights", cfg.AwardWeights,
		"launch_at", cfg.Rewards.LaunchAt,
		"jackpot_threshold", cfg.Rewards.JackpotThreshold,
		"early_bird_cap", cfg.Rewards.EarlyBirdCap,
	)

	h := &handlers.Handler{
		Signup:        service.NewSignupService(users, otp, referralSvc, cfg.Rewards, audit),
		Leaderboard:   service.NewLeaderboardService(users, store, cfg.LeaderboardCacheTTL),
		Ranking:       rankingSvc,
		ReferralStats: service.NewReferralStatsService(users, referrals, cfg.Rewards),
		Audit:         audit,
		Admin:         service.NewAdminService(dbPool),
	}

	sched, err := scheduler.New()
	if err != nil {
		logger.Fatal("scheduler init failed", "error", err)
	}
	if cfg.RankAtLaunch {
		if err := sched.RankAt(cfg.Rewards.LaunchAt, rankingSvc); err != nil {
			logger.Warn("launch ranking not scheduled", "launch_at", cfg.Rewards.LaunchAt, "error", err)
		}
	}
	if cfg.ReconcileInterval > 0 {
		if err := sched.ReconcileEvery(cfg.ReconcileInterval, referralSvc); err != nil {
			logger.Warn("referral reconcile not scheduled", "error", err)
		}
	}
	if memStore != nil {
		if err := sched.SweepEvery(time.Minute, memStore); err != nil {
			logger.Warn("cache sweep not scheduled", "error", err)
		}
	}
	sched.Start()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler: h,
		Health:  handlers.NewHealthHandler(dbPool, store, version).WatchClients(hub.Clients),
		Hub:     hub,
		Tokens:  service.NewAdminTokens(cfg.AdminJWTSecret),
		Cache:   store,
		Limits: httpServer.Limits{
			API:        cfg.APIRateLimit,
			APIWindow:  cfg.APIRateWindow,
			Join:       cfg.JoinRateLimit,
			JoinWindow: cfg.JoinRateWindow,
		},
		AllowedOrigin: cfg.AllowedOrigin,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := sched.Shutdown(); err != nil {
		logger.Error("scheduler shutdown failed", "error", err)
	}

	logger.Info("server exited")
}
