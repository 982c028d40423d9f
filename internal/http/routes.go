package http

import (
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/http/handlers"
	"waitlist_contest/internal/http/middleware"
	"waitlist_contest/internal/service"
	"waitlist_contest/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Limits are the per-IP rate limits applied to the API.
type Limits struct {
	API        int
	APIWindow  time.Duration
	Join       int
	JoinWindow time.Duration
}

type Deps struct {
	Handler       *handlers.Handler
	Health        *handlers.HealthHandler
	Hub           *ws.Hub
	Tokens        *service.AdminTokens
	Cache         cache.Store // rate-limit windows; nil disables limiting
	Limits        Limits
	AllowedOrigin string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), middleware.AccessLog(), middleware.CORS(d.AllowedOrigin))

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.Cache, "api", d.Limits.API, d.Limits.APIWindow))
	registerAPIRoutes(v1, d)

	// Unversioned /api routes
	api := r.Group("/api")
	api.Use(middleware.RateLimit(d.Cache, "api", d.Limits.API, d.Limits.APIWindow))
	registerAPIRoutes(api, d)

	// Live leaderboard feed
	r.GET("/ws/leaderboard", ws.HandleWS(d.Hub, d.AllowedOrigin))
}

func registerAPIRoutes(api *gin.RouterGroup, d Deps) {
	h := d.Handler
	joinRL := middleware.RateLimit(d.Cache, "join", d.Limits.Join, d.Limits.JoinWindow)

	// Waitlist
	waitlist := api.Group("/waitlist")
	{
		waitlist.POST("/join", joinRL, h.Join)
		waitlist.POST("/send-code", joinRL, h.SendCode)
		waitlist.POST("/verify", h.Verify)
	}

	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/referral/:code", h.GetReferralStats)

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(d.Tokens))
	{
		admin.POST("/recalculate-final-points", h.RecalculateFinalPoints)
		admin.GET("/recalculate-final-points", h.RankingSnapshot)
		admin.GET("/audit", h.GetAuditLogs)
		admin.GET("/stats", h.GetStats)
	}
}
