package service

import (
	"context"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"

	"github.com/google/uuid"
)

// AuditService handles audit logging
type AuditService struct {
	repo AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(repo AuditStore) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, userID *uuid.UUID, action, category string, details map[string]any) {
	if s == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.WithContext(ctx).Error("failed to create audit log", "error", err, "action", action)
	}
}

// LogSignup logs a waitlist signup
func (s *AuditService) LogSignup(ctx context.Context, u *domain.User, referred bool) {
	s.Log(ctx, &u.ID, domain.AuditActionSignup, domain.AuditCategoryWaitlist, map[string]any{
		"role":             u.Role,
		"early_bird_bonus": u.EarlyBirdBonus,
		"referred":         referred,
	})
}

// LogAward logs a referral award outcome
func (s *AuditService) LogAward(ctx context.Context, ev *domain.ReferralEvent, result domain.InsertResult) {
	action := domain.AuditActionReferralAward
	if result == domain.AlreadyExists {
		action = domain.AuditActionReferralDuplicate
	}
	s.Log(ctx, &ev.ReferrerID, action, domain.AuditCategoryReferral, map[string]any{
		"referred_id":    ev.ReferredID,
		"event_type":     ev.Type,
		"points_awarded": ev.PointsAwarded,
	})
}

// LogRankingRun logs a ranking run, successful or not
func (s *AuditService) LogRankingRun(ctx context.Context, details map[string]any, err error) {
	action := domain.AuditActionRankingRun
	if err != nil {
		action = domain.AuditActionRankingFailed
		details["error"] = err.Error()
	}
	s.Log(ctx, nil, action, domain.AuditCategoryAdmin, details)
}

// GetRecentLogs returns recent audit logs, optionally filtered by category
func (s *AuditService) GetRecentLogs(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetRecent(ctx, category, limit)
}
