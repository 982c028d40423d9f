package handlers

import (
	"errors"
	"net/http"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Signup        *service.SignupService
	Leaderboard   *service.LeaderboardService
	Ranking       *service.RankingService
	ReferralStats *service.ReferralStatsService
	Audit         *service.AuditService
	Admin         *service.AdminService // nil without a database
}

// writeError maps domain errors to status codes. Anything unknown is a 500
// and its detail stays in the log.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidReferralCode),
		errors.Is(err, domain.ErrSelfReferral),
		errors.Is(err, domain.ErrInvalidCode):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrAlreadyVerified),
		errors.Is(err, domain.ErrRankingInProgress):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
