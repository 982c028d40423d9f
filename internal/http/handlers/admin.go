package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/http/middleware"
	"waitlist_contest/internal/logger"

	"github.com/gin-gonic/gin"
)

// RecalculateFinalPoints runs the final ranking over every user
func (h *Handler) RecalculateFinalPoints(c *gin.Context) {
	ctx := c.Request.Context()
	logger.WithContext(ctx).Info("ranking run requested", "admin", c.GetString(middleware.AdminSubjectKey))

	res, err := h.Ranking.Run(ctx)
	if errors.Is(err, domain.ErrRankingInProgress) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err != nil {
		logger.WithContext(ctx).Error("ranking run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "ranking run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"stats":       res.Stats,
		"failedUsers": res.FailedUsers,
		"mode":        res.Mode,
		"durationMs":  res.DurationMS,
	})
}

// RankingSnapshot returns the persisted ranking without recomputing
func (h *Handler) RankingSnapshot(c *gin.Context) {
	snap, err := h.Ranking.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"topUser":              snap.TopUser,
		"jackpotEligibleCount": snap.JackpotEligibleCount,
		"eligibleUsers":        snap.Eligible,
	})
}

// GetAuditLogs returns recent audit entries
func (h *Handler) GetAuditLogs(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	logs, err := h.Audit.GetRecentLogs(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// GetStats returns waitlist statistics
func (h *Handler) GetStats(c *gin.Context) {
	if h.Admin == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
		return
	}
	stats, err := h.Admin.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
