package handlers

import (
	"net/http"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type JoinRequest struct {
	Email        string `json:"email" binding:"required"`
	Role         string `json:"role" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// JoinResponse is the signup view of a user.
type JoinResponse struct {
	ID                uuid.UUID   `json:"id"`
	Email             string      `json:"email"`
	Role              domain.Role `json:"role"`
	ReferralCode      string      `json:"referralCode"`
	Referred          bool        `json:"referred"`
	EarlyBird         bool        `json:"earlyBird"`
	ProvisionalPoints int         `json:"provisionalPoints"`
	NextMilestone     int         `json:"nextMilestone"`
	CreatedAt         time.Time   `json:"createdAt"`
}

func joinResponse(u *domain.User) JoinResponse {
	return JoinResponse{
		ID:                u.ID,
		Email:             u.Email,
		Role:              u.Role,
		ReferralCode:      u.ReferralCode,
		Referred:          u.ReferredBy != nil,
		EarlyBird:         u.EarlyBird,
		ProvisionalPoints: u.ProvisionalPoints,
		NextMilestone:     u.NextMilestone,
		CreatedAt:         u.CreatedAt,
	}
}

// Join adds a user to the waitlist
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and role are required"})
		return
	}

	u, err := h.Signup.Join(c.Request.Context(), service.JoinRequest{
		Email:        req.Email,
		Role:         req.Role,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, joinResponse(u))
}

type SendCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

// SendCode issues a verification code
func (h *Handler) SendCode(c *gin.Context) {
	var req SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	if err := h.Signup.SendCode(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

type VerifyRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// Verify confirms a code and credits the referrer, if any
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required"})
		return
	}
	res, err := h.Signup.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verified":        true,
		"alreadyVerified": res.AlreadyVerified,
		"user":            joinResponse(res.User),
	})
}
