package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records an action worth keeping beyond the process log.
type AuditLog struct {
	ID        int64          `db:"id" json:"id"`
	UserID    *uuid.UUID     `db:"user_id" json:"user_id,omitempty"`
	Action    string         `db:"action" json:"action"`
	Category  string         `db:"category" json:"category"`
	Details   map[string]any `db:"details" json:"details"`
	IP        string         `db:"ip" json:"ip,omitempty"`
	UserAgent string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryWaitlist = "waitlist"
	AuditCategoryReferral = "referral"
	AuditCategoryAdmin    = "admin"
)

// Audit actions
const (
	AuditActionSignup = "signup"
	AuditActionVerify = "verify"

	AuditActionReferralAward     = "referral_award"
	AuditActionReferralDuplicate = "referral_duplicate"

	AuditActionRankingRun    = "ranking_run"
	AuditActionRankingFailed = "ranking_failed"
)
