package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetReferralStats returns the public stats for a referral code
func (h *Handler) GetReferralStats(c *gin.Context) {
	stats, err := h.ReferralStats.ByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
