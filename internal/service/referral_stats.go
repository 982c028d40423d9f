package service

import (
	"context"
	"fmt"
	"time"

	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/points"
)

const recentReferralsLimit = 20

// ReferralStats is the public view of one referrer.
type ReferralStats struct {
	ReferralCode      string                 `json:"referralCode"`
	Role              domain.Role            `json:"role"`
	Verified          bool                   `json:"verified"`
	Counters          domain.Counters        `json:"counters"`
	RefCount          int                    `json:"refCount"`
	EarlyBird         bool                   `json:"earlyBird"`
	EarlyBirdBonus    int                    `json:"earlyBirdBonus"`
	ProvisionalPoints int                    `json:"provisionalPoints"`
	FinalPoints       int                    `json:"finalPoints"`
	Rank              int                    `json:"rank"`
	Progress          points.Progress        `json:"progress"`
	RecentReferrals   []ReferralCredit       `json:"recentReferrals"`
}

// ReferralCredit is one credited referral as shown publicly. It carries no
// user identifiers.
type ReferralCredit struct {
	Type          domain.EventType `json:"type"`
	PointsAwarded int              `json:"pointsAwarded"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// ReferralStatsService reads a referrer's counters and recent credits.
type ReferralStatsService struct {
	users     UserStore
	referrals ReferralStore
	schedule  points.Schedule
}

func NewReferralStatsService(users UserStore, referrals ReferralStore, schedule points.Schedule) *ReferralStatsService {
	return &ReferralStatsService{users: users, referrals: referrals, schedule: schedule}
}

// ByCode looks a referrer up by referral code.
func (s *ReferralStatsService) ByCode(ctx context.Context, rawCode string) (*ReferralStats, error) {
	code, err := domain.NormalizeReferralCode(rawCode)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	events, err := s.referrals.ListByReferrer(ctx, u.ID, recentReferralsLimit)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	credits := make([]ReferralCredit, len(events))
	for i, ev := range events {
		credits[i] = ReferralCredit{Type: ev.Type, PointsAwarded: ev.PointsAwarded, CreatedAt: ev.CreatedAt}
	}
	return &ReferralStats{
		ReferralCode:      u.ReferralCode,
		Role:              u.Role,
		Verified:          u.Verified(),
		Counters:          u.Counters,
		RefCount:          u.RefCount,
		EarlyBird:         u.EarlyBird,
		EarlyBirdBonus:    u.EarlyBirdBonus,
		ProvisionalPoints: u.ProvisionalPoints,
		FinalPoints:       u.FinalPoints,
		Rank:              u.Rank,
		Progress:          points.ProgressFor(u.ProvisionalPoints, s.schedule.Milestones),
		RecentReferrals:   credits,
	}, nil
}
