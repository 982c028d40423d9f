// Package points turns referral counters into point totals.
package points

import (
	"time"

	"waitlist_contest/internal/domain"
)

// Weights holds the points credited per unit of each counter.
type Weights struct {
	WaitlistClient      int `toml:"waitlist_client" json:"waitlist_client"`
	WaitlistInfluencer  int `toml:"waitlist_influencer" json:"waitlist_influencer"`
	WaitlistPro         int `toml:"waitlist_pro" json:"waitlist_pro"`
	AppDownload         int `toml:"app_download" json:"app_download"`
	ValidatedInfluencer int `toml:"validated_influencer" json:"validated_influencer"`
	ValidatedPro        int `toml:"validated_pro" json:"validated_pro"`
}

// For returns the weight applied to one event of type ev.
func (w Weights) For(ev domain.EventType) int {
	switch ev {
	case domain.EventWaitlistClient:
		return w.WaitlistClient
	case domain.EventWaitlistInfluencer:
		return w.WaitlistInfluencer
	case domain.EventWaitlistPro:
		return w.WaitlistPro
	case domain.EventAppDownload:
		return w.AppDownload
	case domain.EventValidatedInfluencer:
		return w.ValidatedInfluencer
	case domain.EventValidatedPro:
		return w.ValidatedPro
	}
	return 0
}

// Calculate returns the point total for counters plus a flat bonus.
// Negative counters, weights and bonus count as zero, so the result is never negative.
func Calculate(c domain.Counters, bonus int, w Weights) int {
	c = c.Clamped()
	return c.WaitlistClients*clamp(w.WaitlistClient) +
		c.WaitlistInfluencers*clamp(w.WaitlistInfluencer) +
		c.WaitlistPros*clamp(w.WaitlistPro) +
		c.AppDownloads*clamp(w.AppDownload) +
		c.ValidatedInfluencers*clamp(w.ValidatedInfluencer) +
		c.ValidatedPros*clamp(w.ValidatedPro) +
		clamp(bonus)
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Schedule is the full reward configuration.
type Schedule struct {
	PreLaunch  Weights
	PostLaunch Weights
	LaunchAt   time.Time

	Milestones       []int
	JackpotThreshold int
	EarlyBirdCap     int
	EarlyBirdBonus   int
}

// PhaseAt reports the contest phase at t.
func (s Schedule) PhaseAt(t time.Time) domain.Phase {
	if !s.LaunchAt.IsZero() && !t.Before(s.LaunchAt) {
		return domain.PhaseLaunched
	}
	return domain.PhaseWaitlist
}

// WeightsFor returns the weight table for phase.
func (s Schedule) WeightsFor(phase domain.Phase) Weights {
	if phase == domain.PhaseLaunched {
		return s.PostLaunch
	}
	return s.PreLaunch
}

// Final returns the weights used for final points.
func (s Schedule) Final() Weights {
	return s.PostLaunch
}

// EligibleForJackpot reports whether finalPoints clears the jackpot threshold.
func (s Schedule) EligibleForJackpot(finalPoints int) bool {
	return finalPoints >= s.JackpotThreshold
}

// EarlyBirdBonusFor returns the bonus for a signup that finds `existing`
// early birds already registered, or 0 once the cap is reached.
func (s Schedule) EarlyBirdBonusFor(existing int) int {
	if existing < 0 {
		existing = 0
	}
	if existing >= s.EarlyBirdCap {
		return 0
	}
	return clamp(s.EarlyBirdBonus)
}
