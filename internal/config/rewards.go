package config

import (
	"errors"
	"fmt"
	"time"

	"waitlist_contest/internal/points"

	"github.com/BurntSushi/toml"
)

// rewardsFile mirrors the TOML layout:
//
//	launch_at = 2026-03-01T12:00:00Z
//	milestones = [100, 250, 500]
//	jackpot_threshold = 100
//	[early_bird]
//	cap = 100
//	bonus = 50
//	[weights.pre_launch]
//	waitlist_client = 10
//	...
type rewardsFile struct {
	LaunchAt         *time.Time `toml:"launch_at"`
	Milestones       []int      `toml:"milestones"`
	JackpotThreshold *int       `toml:"jackpot_threshold"`
	EarlyBird        *struct {
		Cap   int `toml:"cap"`
		Bonus int `toml:"bonus"`
	} `toml:"early_bird"`
	Weights struct {
		PreLaunch  *points.Weights `toml:"pre_launch"`
		PostLaunch *points.Weights `toml:"post_launch"`
	} `toml:"weights"`
}

// DefaultRewards is used when no reward file is configured.
func DefaultRewards() points.Schedule {
	return points.Schedule{
		PreLaunch: points.Weights{
			WaitlistClient:      10,
			WaitlistInfluencer:  25,
			WaitlistPro:         50,
			AppDownload:         10,
			ValidatedInfluencer: 25,
			ValidatedPro:        50,
		},
		PostLaunch: points.Weights{
			WaitlistClient:      10,
			WaitlistInfluencer:  25,
			WaitlistPro:         50,
			AppDownload:         20,
			ValidatedInfluencer: 50,
			ValidatedPro:        100,
		},
		Milestones:       []int{50, 100, 250, 500, 1000, 2500, 5000},
		JackpotThreshold: 100,
		EarlyBirdCap:     100,
		EarlyBirdBonus:   50,
	}
}

// LoadRewards reads a TOML reward file over DefaultRewards.
// An empty path returns the defaults.
func LoadRewards(path string) (points.Schedule, error) {
	s := DefaultRewards()
	if path == "" {
		return s, nil
	}

	var f rewardsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return s, fmt.Errorf("decode %s: %w", path, err)
	}

	if f.LaunchAt != nil {
		s.LaunchAt = *f.LaunchAt
	}
	if f.Milestones != nil {
		s.Milestones = f.Milestones
	}
	if f.JackpotThreshold != nil {
		s.JackpotThreshold = *f.JackpotThreshold
	}
	if f.EarlyBird != nil {
		s.EarlyBirdCap = f.EarlyBird.Cap
		s.EarlyBirdBonus = f.EarlyBird.Bonus
	}
	if f.Weights.PreLaunch != nil {
		s.PreLaunch = *f.Weights.PreLaunch
	}
	if f.Weights.PostLaunch != nil {
		s.PostLaunch = *f.Weights.PostLaunch
	}

	if err := ValidateRewards(s); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ValidateRewards rejects schedules that would break point monotonicity.
func ValidateRewards(s points.Schedule) error {
	for name, w := range map[string]points.Weights{"pre_launch": s.PreLaunch, "post_launch": s.PostLaunch} {
		if w.WaitlistClient < 0 || w.WaitlistInfluencer < 0 || w.WaitlistPro < 0 ||
			w.AppDownload < 0 || w.ValidatedInfluencer < 0 || w.ValidatedPro < 0 {
			return fmt.Errorf("weights.%s: weights must be non-negative", name)
		}
	}
	prev := 0
	for _, m := range s.Milestones {
		if m <= prev {
			return errors.New("milestones must be positive and strictly ascending")
		}
		prev = m
	}
	if s.JackpotThreshold < 0 {
		return errors.New("jackpot_threshold must be non-negative")
	}
	if s.EarlyBirdCap < 0 || s.EarlyBirdBonus < 0 {
		return errors.New("early_bird cap and bonus must be non-negative")
	}
	return nil
}
