package domain

import (
	"time"

	"github.com/google/uuid"
)

// Counters are the six per-referrer tallies that points are derived from.
type Counters struct {
	WaitlistClients      int `db:"waitlist_clients" json:"waitlist_clients"`
	WaitlistInfluencers  int `db:"waitlist_influencers" json:"waitlist_influencers"`
	WaitlistPros         int `db:"waitlist_pros" json:"waitlist_pros"`
	AppDownloads         int `db:"app_downloads" json:"app_downloads"`
	ValidatedInfluencers int `db:"validated_influencers" json:"validated_influencers"`
	ValidatedPros        int `db:"validated_pros" json:"validated_pros"`
}

// Total is the number of credited referrals across all counters.
func (c Counters) Total() int {
	return nonNeg(c.WaitlistClients) + nonNeg(c.WaitlistInfluencers) + nonNeg(c.WaitlistPros) +
		nonNeg(c.AppDownloads) + nonNeg(c.ValidatedInfluencers) + nonNeg(c.ValidatedPros)
}

// Clamped returns a copy with negative counters replaced by zero.
func (c Counters) Clamped() Counters {
	return Counters{
		WaitlistClients:      nonNeg(c.WaitlistClients),
		WaitlistInfluencers:  nonNeg(c.WaitlistInfluencers),
		WaitlistPros:         nonNeg(c.WaitlistPros),
		AppDownloads:         nonNeg(c.AppDownloads),
		ValidatedInfluencers: nonNeg(c.ValidatedInfluencers),
		ValidatedPros:        nonNeg(c.ValidatedPros),
	}
}

// Incremented returns a copy with the counter behind ev bumped by one.
func (c Counters) Incremented(ev EventType) Counters {
	switch ev {
	case EventWaitlistClient:
		c.WaitlistClients++
	case EventWaitlistInfluencer:
		c.WaitlistInfluencers++
	case EventWaitlistPro:
		c.WaitlistPros++
	case EventAppDownload:
		c.AppDownloads++
	case EventValidatedInfluencer:
		c.ValidatedInfluencers++
	case EventValidatedPro:
		c.ValidatedPros++
	}
	return c
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Role         Role       `db:"role" json:"role"`
	ReferralCode string     `db:"referral_code" json:"referral_code"`
	ReferredBy   *uuid.UUID `db:"referred_by" json:"referred_by,omitempty"`
	VerifiedAt   *time.Time `db:"verified_at" json:"verified_at,omitempty"`

	Counters
	RefCount int `db:"ref_count" json:"ref_count"`

	EarlyBird      bool `db:"early_bird" json:"early_bird"`
	EarlyBirdBonus int  `db:"early_bird_bonus" json:"early_bird_bonus"`

	ProvisionalPoints  int  `db:"provisional_points" json:"provisional_points"`
	Points             int  `db:"points" json:"points"`
	FinalPoints        int  `db:"final_points" json:"final_points"`
	Rank               int  `db:"rank" json:"rank"`
	NextMilestone      int  `db:"next_milestone" json:"next_milestone"`
	EligibleForJackpot bool `db:"eligible_for_jackpot" json:"eligible_for_jackpot"`
	IsTopRank          bool `db:"is_top_rank" json:"is_top_rank"`

	LastRefAt *time.Time `db:"last_ref_at" json:"last_ref_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Verified reports whether the user completed verification.
func (u *User) Verified() bool {
	return u.VerifiedAt != nil
}

// RankResult is what the ranking engine writes back onto a user.
type RankResult struct {
	UserID             uuid.UUID `json:"user_id"`
	FinalPoints        int       `json:"final_points"`
	Rank               int       `json:"rank"`
	EligibleForJackpot bool      `json:"eligible_for_jackpot"`
	IsTopRank          bool      `json:"is_top_rank"`
}

// PointsUpdate is the derived state persisted after a counter changes.
type PointsUpdate struct {
	ProvisionalPoints int
	NextMilestone     int
}

// SignupGrant is decided at signup from the number of existing early birds.
type SignupGrant struct {
	Bonus         int
	NextMilestone int
}
