package handlers

import (
	"net/http"
	"strconv"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/service"

	"github.com/gin-gonic/gin"
)

// GetLeaderboard returns the live provisional leaderboard.
// ?role= filters by role; ?limit= must be in [1,100], default 50.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	var role domain.Role
	if raw := c.Query("role"); raw != "" {
		r, err := domain.ParseRole(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		role = r
	}

	limit := service.DefaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxLeaderboardLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	entries, err := h.Leaderboard.Top(c.Request.Context(), role, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"leaderboard": entries,
		"role":        role,
		"limit":       limit,
	})
}
