package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/logger"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
)

// LeaderboardEntry is one public leaderboard row. Rank is the position in
// the returned page, not the global final rank.
type LeaderboardEntry struct {
	Rank          int         `json:"rank"`
	DisplayName   string      `json:"displayName"`
	ReferralCode  string      `json:"referralCode"`
	Role          domain.Role `json:"role"`
	Points        int         `json:"points"`
	RefCount      int         `json:"refCount"`
	EarlyBird     bool        `json:"earlyBird"`
	NextMilestone int         `json:"nextMilestone"`
}

// LeaderboardService serves the live provisional leaderboard.
type LeaderboardService struct {
	users UserStore
	cache cache.Store
	ttl   time.Duration
}

// NewLeaderboardService caches pages for ttl; a zero ttl disables caching.
func NewLeaderboardService(users UserStore, c cache.Store, ttl time.Duration) *LeaderboardService {
	return &LeaderboardService{users: users, cache: c, ttl: ttl}
}

// ClampLimit maps limit into [1, MaxLeaderboardLimit]; 0 means the default.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLeaderboardLimit
	case limit < 1:
		return 1
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	}
	return limit
}

func leaderboardKey(role domain.Role, limit int) string {
	r := string(role)
	if r == "" {
		r = "all"
	}
	return fmt.Sprintf("leaderboard:%s:%d", r, limit)
}

// Top returns the leaderboard, optionally filtered by role.
func (s *LeaderboardService) Top(ctx context.Context, role domain.Role, limit int) ([]LeaderboardEntry, error) {
	if role != "" && !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	limit = ClampLimit(limit)
	key := leaderboardKey(role, limit)

	if s.ttl > 0 && s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var entries []LeaderboardEntry
			if err := json.Unmarshal([]byte(raw), &entries); err == nil {
				return entries, nil
			}
		}
	}

	users, err := s.users.Leaderboard(ctx, role, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	entries := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = LeaderboardEntry{
			Rank:          i + 1,
			DisplayName:   MaskEmail(u.Email),
			ReferralCode:  u.ReferralCode,
			Role:          u.Role,
			Points:        u.ProvisionalPoints,
			RefCount:      u.RefCount,
			EarlyBird:     u.EarlyBird,
			NextMilestone: u.NextMilestone,
		}
	}

	if s.ttl > 0 && s.cache != nil {
		if raw, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
				logger.WithContext(ctx).Warn("leaderboard cache write failed", "error", err)
			}
		}
	}
	return entries, nil
}

// MaskEmail keeps the first two characters of the local part and the domain.
func MaskEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + host
}
