package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"waitlist_contest/internal/config"
	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"
	"waitlist_contest/internal/points"

	"github.com/google/uuid"
)

// AwardOutcome is what an award attempt did.
type AwardOutcome string

const (
	AwardInserted  AwardOutcome = "inserted"
	AwardDuplicate AwardOutcome = "duplicate"
	AwardSkipped   AwardOutcome = "skipped"
	AwardFailed    AwardOutcome = "failed"
)

// ReferralService credits referrers once their referred users verify.
type ReferralService struct {
	store    ReferralStore
	schedule points.Schedule
	mode     string
	audit    *AuditService
	pub      Publisher
	now      func() time.Time
}

// NewReferralService builds the award path. mode is config.AwardWeightsPreLaunch
// or config.AwardWeightsClock; anything else behaves as pre-launch.
func NewReferralService(store ReferralStore, schedule points.Schedule, mode string, audit *AuditService, pub Publisher) *ReferralService {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &ReferralService{
		store:    store,
		schedule: schedule,
		mode:     mode,
		audit:    audit,
		pub:      pub,
		now:      time.Now,
	}
}

// Phase returns the phase awards are credited in right now.
func (s *ReferralService) Phase() domain.Phase {
	if s.mode == config.AwardWeightsClock {
		return s.schedule.PhaseAt(s.now())
	}
	return domain.PhaseWaitlist
}

// PointsUpdated is pushed to live clients after an inserted award.
type PointsUpdated struct {
	UserID            uuid.UUID `json:"userId"`
	ReferralCode      string    `json:"referralCode"`
	ProvisionalPoints int       `json:"provisionalPoints"`
	RefCount          int       `json:"refCount"`
	NextMilestone     int       `json:"nextMilestone"`
}

// Award credits referrerID for referredID, whose role is role. Unknown users
// and unmapped roles are skipped without error. A repeated award for the same
// triple reports AwardDuplicate and changes nothing.
func (s *ReferralService) Award(ctx context.Context, referrerID, referredID uuid.UUID, role domain.Role) (AwardOutcome, error) {
	log := logger.WithContext(ctx).With("referrer_id", referrerID, "referred_id", referredID, "role", role)

	if !role.Valid() {
		return AwardFailed, domain.ErrInvalidRole
	}
	if referrerID == referredID {
		log.Warn("self referral ignored")
		ReferralAwards.WithLabelValues(string(AwardSkipped)).Inc()
		return AwardSkipped, nil
	}

	phase := s.Phase()
	evType, ok := domain.EventFor(phase, role)
	if !ok {
		log.Info("no referral event for role", "phase", phase)
		ReferralAwards.WithLabelValues(string(AwardSkipped)).Inc()
		return AwardSkipped, nil
	}
	weights := s.schedule.WeightsFor(phase)

	ev := &domain.ReferralEvent{
		ID:             uuid.New(),
		ReferrerID:     referrerID,
		ReferredID:     referredID,
		Type:           evType,
		PointsAwarded:  weights.For(evType),
		IdempotencyKey: domain.IdempotencyKey(referrerID, referredID, evType),
	}
	score := func(c domain.Counters, bonus int) domain.PointsUpdate {
		total := points.Calculate(c, bonus, weights)
		return domain.PointsUpdate{
			ProvisionalPoints: total,
			NextMilestone:     points.NextMilestone(total, s.schedule.Milestones),
		}
	}

	result, referrer, err := s.store.Award(ctx, ev, score)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("referral award skipped: user not found")
		ReferralAwards.WithLabelValues(string(AwardSkipped)).Inc()
		return AwardSkipped, nil
	case err != nil:
		log.Error("referral award failed", "error", err, "event_type", evType)
		ReferralAwards.WithLabelValues(string(AwardFailed)).Inc()
		return AwardFailed, fmt.Errorf("award %s: %w", ev.IdempotencyKey, err)
	}

	switch result {
	case domain.AlreadyExists:
		log.Info("referral already credited", "event_type", evType)
		ReferralAwards.WithLabelValues(string(AwardDuplicate)).Inc()
		s.audit.LogAward(ctx, ev, result)
		return AwardDuplicate, nil
	case domain.Inserted:
	default:
		ReferralAwards.WithLabelValues(string(AwardFailed)).Inc()
		return AwardFailed, fmt.Errorf("award %s: unexpected result %s", ev.IdempotencyKey, result)
	}

	ReferralAwards.WithLabelValues(string(AwardInserted)).Inc()
	s.audit.LogAward(ctx, ev, result)
	log.Info("referral awarded",
		"event_type", evType,
		"points_awarded", ev.PointsAwarded,
		"provisional_points", referrer.ProvisionalPoints,
	)
	s.pub.Publish(EventPointsUpdated, PointsUpdated{
		UserID:            referrer.ID,
		ReferralCode:      referrer.ReferralCode,
		ProvisionalPoints: referrer.ProvisionalPoints,
		RefCount:          referrer.RefCount,
		NextMilestone:     referrer.NextMilestone,
	})
	return AwardInserted, nil
}

// ReconcileLimit caps how many pending credits one Reconcile pass retries.
const ReconcileLimit = 500

// ReconcileResult counts the outcomes of one Reconcile pass.
type ReconcileResult struct {
	Pending  int `json:"pending"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Reconcile retries the award for verified, referred users whose credit was
// never recorded, e.g. because the store failed during verification. Awards
// are idempotent, so running it repeatedly or alongside verification is safe.
func (s *ReferralService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	pending, err := s.store.ListUncredited(ctx, ReconcileLimit)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list uncredited: %w", err)
	}

	res := ReconcileResult{Pending: len(pending)}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		u := &pending[i]
		outcome, err := s.Award(ctx, *u.ReferredBy, u.ID, u.Role)
		switch {
		case err != nil:
			res.Failed++
		case outcome == AwardInserted:
			res.Inserted++
		default:
			res.Skipped++
		}
	}
	if res.Pending > 0 {
		logger.WithContext(ctx).Info("referral reconcile finished",
			"pending", res.Pending,
			"inserted", res.Inserted,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
	return res, nil
}
