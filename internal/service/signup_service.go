package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/points"

	"github.com/google/uuid"
)

// NormalizeEmail trims and lowercases email and rejects anything that is not
// a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

// JoinRequest is a raw signup as received from a client.
type JoinRequest struct {
	Email        string
	Role         string
	ReferralCode string
}

// SignupService handles joining the waitlist and verifying an address.
type SignupService struct {
	users     UserStore
	otp       *OTPService
	referrals *ReferralService
	schedule  points.Schedule
	audit     *AuditService
	now       func() time.Time
}

func NewSignupService(users UserStore, otp *OTPService, referrals *ReferralService, schedule points.Schedule, audit *AuditService) *SignupService {
	return &SignupService{
		users:     users,
		otp:       otp,
		referrals: referrals,
		schedule:  schedule,
		audit:     audit,
		now:       time.Now,
	}
}

// Join validates req and creates the user. No referral points are awarded
// here; that waits for verification.
func (s *SignupService) Join(ctx context.Context, req JoinRequest) (*domain.User, error) {
	log := logger.WithContext(ctx)

	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	var referredBy *uuid.UUID
	if strings.TrimSpace(req.ReferralCode) != "" {
		code, err := domain.NormalizeReferralCode(req.ReferralCode)
		if err != nil {
			return nil, err
		}
		referrer, err := s.users.GetByReferralCode(ctx, code)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Info("unknown referral code at signup", "referral_code", code)
		case err != nil:
			return nil, fmt.Errorf("lookup referral code: %w", err)
		case strings.EqualFold(referrer.Email, email):
			return nil, domain.ErrSelfReferral
		default:
			id := referrer.ID
			referredBy = &id
		}
	}

	u := &domain.User{
		ID:         uuid.New(),
		Email:      email,
		Role:       role,
		ReferredBy: referredBy,
	}
	grant := func(existing int) domain.SignupGrant {
		bonus := s.schedule.EarlyBirdBonusFor(existing)
		return domain.SignupGrant{
			Bonus:         bonus,
			NextMilestone: points.NextMilestone(bonus, s.schedule.Milestones),
		}
	}
	if err := s.users.Create(ctx, u, grant); err != nil {
		return nil, err
	}

	Signups.WithLabelValues(string(u.Role), fmt.Sprint(u.EarlyBird)).Inc()
	s.audit.LogSignup(ctx, u, referredBy != nil)
	log.Info("waitlist signup",
		"user_id", u.ID,
		"role", u.Role,
		"early_bird", u.EarlyBird,
		"referred", referredBy != nil,
	)
	return u, nil
}

// SendCode issues a verification code to a registered, unverified address.
func (s *SignupService) SendCode(ctx context.Context, rawEmail string) error {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Verified() {
		return domain.ErrAlreadyVerified
	}
	return s.otp.Issue(ctx, email)
}

// VerifyResult reports what verification did.
type VerifyResult struct {
	User            *domain.User `json:"user"`
	AlreadyVerified bool         `json:"alreadyVerified"`
	Award           AwardOutcome `json:"award,omitempty"`
}

// Verify checks code for email, marks the user verified and credits the
// referrer. Award failures are logged and never fail verification;
// ReferralService.Reconcile retries them later.
func (s *SignupService) Verify(ctx context.Context, rawEmail, code string) (*VerifyResult, error) {
	log := logger.WithContext(ctx)

	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	if err := s.otp.Check(ctx, email, strings.TrimSpace(code)); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	first, err := s.users.MarkVerified(ctx, u.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if first {
		u.VerifiedAt = &now
		s.audit.Log(ctx, &u.ID, domain.AuditActionVerify, domain.AuditCategoryWaitlist, nil)
		log.Info("user verified", "user_id", u.ID)
	}
	res := &VerifyResult{User: u, AlreadyVerified: !first}

	if u.ReferredBy != nil {
		outcome, err := s.referrals.Award(ctx, *u.ReferredBy, u.ID, u.Role)
		if err != nil {
			log.Error("referral award after verification failed", "error", err, "user_id", u.ID)
		}
		res.Award = outcome
	}
	return res, nil
}
